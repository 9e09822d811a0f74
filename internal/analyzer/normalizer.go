package analyzer

import (
	"fmt"
	"math"

	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/pkg/models"
)

const (
	MinScore = 1.0
	MaxScore = 100.0
)

// CalibrationRanges maps each method to the raw value that normalizes to 100.
// The defaults were fitted on the test chart, not derived from the data.
type CalibrationRanges map[models.Method]float64

// DefaultCalibrationRanges returns the calibrated upper bounds
func DefaultCalibrationRanges() CalibrationRanges {
	return CalibrationRanges{
		models.Laplacian: 500,
		models.Sobel:     50,
		models.Tenengrad: 100,
	}
}

// Validate requires a positive finite range for every method
func (r CalibrationRanges) Validate() error {
	for _, m := range models.AllMethods() {
		v, ok := r[m]
		if !ok || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.NewConfigurationError(fmt.Sprintf("invalid calibration range for %s: %v", m, v), nil)
		}
	}
	return nil
}

// Normalize maps raw for method m onto the 1-100 scale
func (r CalibrationRanges) Normalize(m models.Method, raw float64) float64 {
	return Normalize(raw, r[m])
}

// Normalize maps raw linearly onto [1,100] with rangeMax at the top.
// NaN and a non-positive range both map to the minimum.
func Normalize(raw, rangeMax float64) float64 {
	if math.IsNaN(raw) || !(rangeMax > 0) {
		return MinScore
	}
	v := MinScore + (MaxScore-MinScore)*raw/rangeMax
	return math.Min(MaxScore, math.Max(MinScore, v))
}
