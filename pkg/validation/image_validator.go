package validation

import (
	"fmt"
	"strings"

	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/pkg/models"
)

// ImageThresholds defines the limits a chart image must satisfy before analysis
type ImageThresholds struct {
	// Resolution thresholds
	MinWidth  int
	MinHeight int
	MaxPixels int

	// Smallest tile edge that still gives meaningful 3x3 kernel responses
	MinTileEdge int
}

// DefaultImageThresholds returns the default thresholds
func DefaultImageThresholds() ImageThresholds {
	return ImageThresholds{
		MinWidth:    64,
		MinHeight:   64,
		MaxPixels:   200_000_000, // medium format sensors stay below this
		MinTileEdge: 8,
	}
}

// ImageValidator handles chart image validation
type ImageValidator struct {
	thresholds ImageThresholds
}

// NewImageValidator creates a validator with default thresholds
func NewImageValidator() *ImageValidator {
	return &ImageValidator{thresholds: DefaultImageThresholds()}
}

// NewImageValidatorWithThresholds creates a validator with custom thresholds
func NewImageValidatorWithThresholds(thresholds ImageThresholds) *ImageValidator {
	return &ImageValidator{thresholds: thresholds}
}

// Thresholds returns the active thresholds
func (v *ImageValidator) Thresholds() ImageThresholds {
	return v.thresholds
}

// QualityIssue represents an image validation issue
type QualityIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"` // "error", "warning"
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// ValidateResolution checks decoded image dimensions
func (v *ImageValidator) ValidateResolution(meta models.ImageMetadata) []QualityIssue {
	var issues []QualityIssue

	if meta.Width < v.thresholds.MinWidth || meta.Height < v.thresholds.MinHeight {
		issues = append(issues, QualityIssue{
			Type: "low_resolution",
			Message: fmt.Sprintf("Image is %dx%d, at least %dx%d is required",
				meta.Width, meta.Height, v.thresholds.MinWidth, v.thresholds.MinHeight),
			Severity:    "error",
			ActualValue: float64(min(meta.Width, meta.Height)),
			Threshold:   float64(min(v.thresholds.MinWidth, v.thresholds.MinHeight)),
		})
	}

	if pixels := meta.Width * meta.Height; v.thresholds.MaxPixels > 0 && pixels > v.thresholds.MaxPixels {
		issues = append(issues, QualityIssue{
			Type:        "too_large",
			Message:     fmt.Sprintf("Image has %d pixels, the limit is %d", pixels, v.thresholds.MaxPixels),
			Severity:    "error",
			ActualValue: float64(pixels),
			Threshold:   float64(v.thresholds.MaxPixels),
		})
	}

	return issues
}

// ValidateTileSize warns when the grid would produce tiles too small for
// the 3x3 kernels to say anything about sharpness.
func (v *ImageValidator) ValidateTileSize(tileWidth, tileHeight int) []QualityIssue {
	edge := min(tileWidth, tileHeight)
	if edge >= v.thresholds.MinTileEdge {
		return nil
	}
	return []QualityIssue{{
		Type:        "small_tiles",
		Message:     fmt.Sprintf("Tiles are %dx%d pixels; use fewer sections or a larger image", tileWidth, tileHeight),
		Severity:    "warning",
		ActualValue: float64(edge),
		Threshold:   float64(v.thresholds.MinTileEdge),
	}}
}

// Validate returns an image_read error listing every error-severity issue
func (v *ImageValidator) Validate(meta models.ImageMetadata) error {
	issues := v.ValidateResolution(meta)
	if !v.HasCriticalIssues(issues) {
		return nil
	}
	var critical []QualityIssue
	for _, issue := range issues {
		if issue.Severity == "error" {
			critical = append(critical, issue)
		}
	}
	return apperrors.NewImageReadError(strings.Join(v.ConvertIssuesToMessages(critical), "; "), nil)
}

// ConvertIssuesToMessages converts quality issues to plain messages
func (v *ImageValidator) ConvertIssuesToMessages(issues []QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasCriticalIssues checks if there are any critical (error severity) issues
func (v *ImageValidator) HasCriticalIssues(issues []QualityIssue) bool {
	for _, issue := range issues {
		if issue.Severity == "error" {
			return true
		}
	}
	return false
}
