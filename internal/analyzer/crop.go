package analyzer

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	apperrors "go-lens-sharpness/internal/errors"
)

// CropBox holds the fraction of the frame removed from each edge
type CropBox struct {
	Top, Bottom, Left, Right float64
}

// Region returns the retained rectangle for an image of the given bounds
func (c CropBox) Region(bounds image.Rectangle) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	return image.Rect(
		bounds.Min.X+int(math.Floor(w*c.Left)),
		bounds.Min.Y+int(math.Floor(h*c.Top)),
		bounds.Min.X+int(math.Floor(w*(1-c.Right))),
		bounds.Min.Y+int(math.Floor(h*(1-c.Bottom))),
	)
}

func (c CropBox) validate() error {
	for _, v := range []float64{c.Top, c.Bottom, c.Left, c.Right} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return apperrors.NewConfigurationError(fmt.Sprintf("crop fraction %v outside [0,1]", v), nil)
		}
	}
	return nil
}

// Crop returns a new image holding the retained region of img.
// The source is never modified.
func Crop(img image.Image, box CropBox) (*image.NRGBA, error) {
	if err := box.validate(); err != nil {
		return nil, err
	}

	r := box.Region(img.Bounds())
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("crop leaves no pixels: %dx%d image cropped to %dx%d",
				img.Bounds().Dx(), img.Bounds().Dy(), max(r.Dx(), 0), max(r.Dy(), 0)), nil)
	}
	return imaging.Crop(img, r), nil
}
