package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/arbovm/levenshtein"

	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/pkg/models"
)

const (
	MinHorizontalSections = 1
	MaxHorizontalSections = 20

	// DefaultHorizontalSections matches the chart layout the tool was calibrated on
	DefaultHorizontalSections = 6
)

// AnalysisParams is the raw, unvalidated analysis input.
// Crop values are percentages in [0,100].
type AnalysisParams struct {
	CropTop            float64
	CropBottom         float64
	CropLeft           float64
	CropRight          float64
	HorizontalSections int
	Methods            []string
	Heatmaps           bool
}

// AnalysisConfig is a validated, immutable analysis configuration.
// The zero value is not usable; build one with NewAnalysisConfig.
type AnalysisConfig struct {
	cropTop, cropBottom, cropLeft, cropRight float64
	horizontalSections                       int
	methods                                  []models.Method
	heatmaps                                 bool
}

// NewAnalysisConfig validates params and converts crop percentages to fractions.
// Every failure is a configuration error.
func NewAnalysisConfig(p AnalysisParams) (*AnalysisConfig, error) {
	crops := []struct {
		name  string
		value float64
	}{
		{"crop_top", p.CropTop},
		{"crop_bottom", p.CropBottom},
		{"crop_left", p.CropLeft},
		{"crop_right", p.CropRight},
	}
	for _, c := range crops {
		if math.IsNaN(c.value) || c.value < 0 || c.value > 100 {
			return nil, apperrors.NewConfigurationError(
				fmt.Sprintf("%s must be between 0 and 100 percent (got %v)", c.name, c.value), nil)
		}
	}
	if p.CropTop+p.CropBottom >= 100 {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("crop_top + crop_bottom must be below 100 percent (got %v)", p.CropTop+p.CropBottom), nil)
	}
	if p.CropLeft+p.CropRight >= 100 {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("crop_left + crop_right must be below 100 percent (got %v)", p.CropLeft+p.CropRight), nil)
	}

	if p.HorizontalSections < MinHorizontalSections || p.HorizontalSections > MaxHorizontalSections {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("horizontal_sections must be between %d and %d (got %d)",
				MinHorizontalSections, MaxHorizontalSections, p.HorizontalSections), nil)
	}

	methods, err := ParseMethods(p.Methods)
	if err != nil {
		return nil, err
	}

	return &AnalysisConfig{
		cropTop:            p.CropTop / 100,
		cropBottom:         p.CropBottom / 100,
		cropLeft:           p.CropLeft / 100,
		cropRight:          p.CropRight / 100,
		horizontalSections: p.HorizontalSections,
		methods:            methods,
		heatmaps:           p.Heatmaps,
	}, nil
}

// ParseMethods resolves method names case-insensitively into canonical order.
// Duplicates collapse; an empty selection or an unknown name is rejected.
func ParseMethods(names []string) ([]models.Method, error) {
	selected := make(map[models.Method]bool, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		m := models.Method(name)
		if !m.IsValid() {
			msg := fmt.Sprintf("unknown analysis method %q", raw)
			if s := suggestMethod(name); s != "" {
				msg += fmt.Sprintf(", did you mean %q?", s)
			}
			return nil, apperrors.NewConfigurationError(msg, nil)
		}
		selected[m] = true
	}

	var methods []models.Method
	for _, m := range models.AllMethods() {
		if selected[m] {
			methods = append(methods, m)
		}
	}
	if len(methods) == 0 {
		return nil, apperrors.NewConfigurationError("at least one analysis method must be selected", nil)
	}
	return methods, nil
}

// suggestMethod returns the closest known method within an edit distance of 3
func suggestMethod(name string) string {
	best, bestDist := "", 4
	for _, m := range models.AllMethods() {
		if d := levenshtein.Distance(name, string(m)); d < bestDist {
			best, bestDist = string(m), d
		}
	}
	return best
}

func (c *AnalysisConfig) CropTop() float64        { return c.cropTop }
func (c *AnalysisConfig) CropBottom() float64     { return c.cropBottom }
func (c *AnalysisConfig) CropLeft() float64       { return c.cropLeft }
func (c *AnalysisConfig) CropRight() float64      { return c.cropRight }
func (c *AnalysisConfig) HorizontalSections() int { return c.horizontalSections }
func (c *AnalysisConfig) Heatmaps() bool          { return c.heatmaps }

// Methods returns a copy of the selected methods in canonical order
func (c *AnalysisConfig) Methods() []models.Method {
	out := make([]models.Method, len(c.methods))
	copy(out, c.methods)
	return out
}

// Snapshot echoes the configuration into a result record
func (c *AnalysisConfig) Snapshot() models.ConfigSnapshot {
	return models.ConfigSnapshot{
		CropTop:            c.cropTop,
		CropBottom:         c.cropBottom,
		CropLeft:           c.cropLeft,
		CropRight:          c.cropRight,
		HorizontalSections: c.horizontalSections,
		AnalysisMethods:    models.MethodNames(c.methods),
	}
}
