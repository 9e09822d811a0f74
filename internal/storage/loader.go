package storage

import (
	"bytes"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"

	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/pkg/models"
	"go-lens-sharpness/pkg/validation"
)

// ImageLoader decodes chart images from disk or memory and rejects
// files that cannot be analyzed.
type ImageLoader struct {
	validator *validation.ImageValidator
}

// NewImageLoader creates a loader checking images against validator.
// A nil validator uses the default thresholds.
func NewImageLoader(validator *validation.ImageValidator) *ImageLoader {
	if validator == nil {
		validator = validation.NewImageValidator()
	}
	return &ImageLoader{validator: validator}
}

// Load reads and decodes the image at path
func (l *ImageLoader) Load(path string) (image.Image, models.ImageMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.ImageMetadata{}, apperrors.NewImageReadError("cannot read "+path, err)
	}
	return l.Decode(bytes.NewReader(data))
}

// Decode validates the header first so undersized or unknown images are
// rejected without decoding pixel data. EXIF orientation is applied.
func (l *ImageLoader) Decode(r io.ReadSeeker) (image.Image, models.ImageMetadata, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return nil, models.ImageMetadata{}, apperrors.NewImageReadError("unsupported or corrupt image", err)
	}
	meta := models.ImageMetadata{Width: cfg.Width, Height: cfg.Height, Format: format}
	if err := l.validator.Validate(meta); err != nil {
		return nil, meta, err
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, meta, apperrors.NewImageReadError("cannot rewind image data", err)
	}
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, meta, apperrors.NewImageReadError("failed to decode image", err)
	}

	// orientation may swap the axes
	b := img.Bounds()
	meta.Width, meta.Height = b.Dx(), b.Dy()
	return img, meta, nil
}
