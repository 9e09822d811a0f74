package analyzer

import (
	"image"

	"go-lens-sharpness/internal/config"
)

// ImageAnalyzer runs the crop, partition, score and aggregate pipeline
type ImageAnalyzer interface {
	// Analyze scores one decoded image. name is used for log context only.
	Analyze(img image.Image, cfg *config.AnalysisConfig, name string) (*Outcome, error)

	// Lifecycle management
	Close() error
}
