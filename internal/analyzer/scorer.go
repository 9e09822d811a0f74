package analyzer

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/pkg/models"
)

// Scorer computes the raw sharpness of a grayscale tile.
// A degenerate computation returns 0 together with a computation_degenerate error.
type Scorer interface {
	Method() models.Method
	Score(gray *image.Gray) (float64, error)
}

// NewScorer returns the scorer for m
func NewScorer(m models.Method) (Scorer, error) {
	switch m {
	case models.Laplacian:
		return laplacianScorer{}, nil
	case models.Sobel:
		return sobelScorer{}, nil
	case models.Tenengrad:
		return tenengradScorer{}, nil
	}
	return nil, apperrors.NewConfigurationError(fmt.Sprintf("no scorer for method %q", m), nil)
}

// laplacianScorer: population variance of the 4-neighbour Laplacian response
type laplacianScorer struct{}

func (laplacianScorer) Method() models.Method { return models.Laplacian }

func (laplacianScorer) Score(gray *image.Gray) (float64, error) {
	p, err := newPlane(gray, models.Laplacian)
	if err != nil {
		return 0, err
	}

	response := make([]float64, 0, p.w*p.h)
	for y := 0; y < p.h; y++ {
		up, down := reflect101(y-1, p.h), reflect101(y+1, p.h)
		for x := 0; x < p.w; x++ {
			left, right := reflect101(x-1, p.w), reflect101(x+1, p.w)
			v := p.at(x, up) + p.at(x, down) + p.at(left, y) + p.at(right, y) - 4*p.at(x, y)
			response = append(response, v)
		}
	}
	return finite(models.Laplacian, stat.PopVariance(response, nil))
}

// sobelScorer: mean Euclidean magnitude of the 3x3 Sobel gradients
type sobelScorer struct{}

func (sobelScorer) Method() models.Method { return models.Sobel }

func (sobelScorer) Score(gray *image.Gray) (float64, error) {
	p, err := newPlane(gray, models.Sobel)
	if err != nil {
		return 0, err
	}
	return finite(models.Sobel, stat.Mean(p.gradientMagnitudes(), nil))
}

// tenengradScorer: mean of the gradient magnitudes strictly above a tenth of the maximum
type tenengradScorer struct{}

func (tenengradScorer) Method() models.Method { return models.Tenengrad }

func (tenengradScorer) Score(gray *image.Gray) (float64, error) {
	p, err := newPlane(gray, models.Tenengrad)
	if err != nil {
		return 0, err
	}

	mags := p.gradientMagnitudes()
	threshold := 0.1 * floats.Max(mags)

	strong := mags[:0]
	for _, m := range mags {
		if m > threshold {
			strong = append(strong, m)
		}
	}
	if len(strong) == 0 {
		return 0, apperrors.NewDegenerateError("tenengrad: no gradient above threshold", nil)
	}
	return finite(models.Tenengrad, stat.Mean(strong, nil))
}

// plane is a float copy of a tile with origin at 0,0
type plane struct {
	w, h int
	px   []float64
}

func newPlane(gray *image.Gray, m models.Method) (*plane, error) {
	if gray == nil || gray.Bounds().Empty() {
		return nil, apperrors.NewDegenerateError(fmt.Sprintf("%s: empty tile", m), nil)
	}
	b := gray.Bounds()
	p := &plane{w: b.Dx(), h: b.Dy(), px: make([]float64, 0, b.Dx()*b.Dy())}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[gray.PixOffset(b.Min.X, y):gray.PixOffset(b.Max.X, y)]
		for _, v := range row {
			p.px = append(p.px, float64(v))
		}
	}
	return p, nil
}

func (p *plane) at(x, y int) float64 {
	return p.px[y*p.w+x]
}

// gradientMagnitudes applies the 3x3 Sobel kernels and returns sqrt(gx²+gy²) per pixel
func (p *plane) gradientMagnitudes() []float64 {
	mags := make([]float64, 0, p.w*p.h)
	for y := 0; y < p.h; y++ {
		up, down := reflect101(y-1, p.h), reflect101(y+1, p.h)
		for x := 0; x < p.w; x++ {
			left, right := reflect101(x-1, p.w), reflect101(x+1, p.w)

			gx := (p.at(right, up) + 2*p.at(right, y) + p.at(right, down)) -
				(p.at(left, up) + 2*p.at(left, y) + p.at(left, down))
			gy := (p.at(left, down) + 2*p.at(x, down) + p.at(right, down)) -
				(p.at(left, up) + 2*p.at(x, up) + p.at(right, up))

			mags = append(mags, math.Hypot(gx, gy))
		}
	}
	return mags
}

// reflect101 mirrors an out-of-range index without repeating the edge pixel
// (gfedcb|abcdefgh|gfedcba). A single pixel axis clamps.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	if i < 0 {
		return -i
	}
	if i >= n {
		return 2*n - 2 - i
	}
	return i
}

func finite(m models.Method, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, apperrors.NewDegenerateError(fmt.Sprintf("%s: non-finite score %v", m, v), nil)
	}
	return v, nil
}
