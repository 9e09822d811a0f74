package repository

import (
	"context"

	"go-lens-sharpness/pkg/models"
)

// AnalysisRepository defines the interface for analysis result operations
type AnalysisRepository interface {
	// SaveAnalysisResult stores an analysis result under its ID
	SaveAnalysisResult(ctx context.Context, result *models.AnalysisResult) error

	// GetAnalysisResult retrieves a stored analysis result
	GetAnalysisResult(ctx context.Context, id string) (*models.AnalysisResult, error)

	// GetAnalysisHistory retrieves every result recorded for one original
	// filename, oldest first
	GetAnalysisHistory(ctx context.Context, filename string) ([]*models.AnalysisResult, error)

	Close() error
}
