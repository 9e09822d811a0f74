// Package report turns analysis outcomes into result records and their
// JSON and plain-text renderings. Nothing here touches the filesystem.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-lens-sharpness/internal/analyzer"
	"go-lens-sharpness/internal/config"
	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/pkg/models"
)

// Builder assembles AnalysisResult records
type Builder struct {
	newID func() string
	now   func() time.Time
}

// NewBuilder returns a builder that stamps results with a random id and the current time
func NewBuilder() *Builder {
	return &Builder{
		newID: func() string { return uuid.New().String() },
		now:   time.Now,
	}
}

// Build creates the record for one analysed image. Tile slices and maps are
// copied so the record does not alias the outcome.
func (b *Builder) Build(filename string, cfg *config.AnalysisConfig, outcome *analyzer.Outcome) *models.AnalysisResult {
	tiles := make([]models.TileResult, len(outcome.Tiles))
	for i, t := range outcome.Tiles {
		tiles[i] = models.TileResult{
			Coordinate: t.Coordinate,
			Filename:   t.Filename,
			Scores:     copyScores(t.Scores),
			RawScores:  copyScores(t.RawScores),
		}
	}

	return &models.AnalysisResult{
		ID:               b.newID(),
		OriginalFilename: filename,
		Timestamp:        b.now().UTC(),
		Configuration:    cfg.Snapshot(),
		Tiles:            tiles,
		AverageScores:    copyScores(outcome.Averages),
	}
}

func copyScores(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// JSON renders the record as indented JSON
func JSON(result *models.AnalysisResult) ([]byte, error) {
	data, err := json.MarshalIndent(result, "", "    ")
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode analysis result", err)
	}
	return data, nil
}

// ParseJSON reads a record written by JSON
func ParseJSON(data []byte) (*models.AnalysisResult, error) {
	var result models.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, apperrors.NewValidationError("invalid analysis record", err)
	}
	if len(result.Tiles) == 0 {
		return nil, apperrors.NewValidationError("analysis record has no tiles", nil)
	}
	return &result, nil
}

var methodHeadings = map[models.Method]string{
	models.Laplacian: "Laplacian Variance Method",
	models.Sobel:     "Sobel Gradient Method",
	models.Tenengrad: "Tenengrad Algorithm",
}

// Text renders the human readable report
func Text(result *models.AnalysisResult) string {
	var sb strings.Builder
	cfg := result.Configuration
	methods := cfg.Methods()

	section := func(title string) {
		fmt.Fprintf(&sb, "%s\n%s\n", title, strings.Repeat("-", len(title)))
	}

	sb.WriteString("Lens Test Analysis Report\n")
	sb.WriteString("=========================\n\n")
	fmt.Fprintf(&sb, "Original Image: %s\n", result.OriginalFilename)
	fmt.Fprintf(&sb, "Analysis Date: %s\n", result.Timestamp.Format("2006-01-02 15:04:05 MST"))
	if result.ID != "" {
		fmt.Fprintf(&sb, "Analysis ID: %s\n", result.ID)
	}
	sb.WriteString("\n")

	section("Configuration Settings")
	sb.WriteString("Crop values:\n")
	fmt.Fprintf(&sb, "  - Top: %.1f%%\n", cfg.CropTop*100)
	fmt.Fprintf(&sb, "  - Bottom: %.1f%%\n", cfg.CropBottom*100)
	fmt.Fprintf(&sb, "  - Left: %.1f%%\n", cfg.CropLeft*100)
	fmt.Fprintf(&sb, "  - Right: %.1f%%\n", cfg.CropRight*100)
	fmt.Fprintf(&sb, "Horizontal sections: %d\n", cfg.HorizontalSections)
	fmt.Fprintf(&sb, "Analysis methods: %s\n\n", strings.Join(cfg.AnalysisMethods, ", "))

	section("Analysis Methods Description")
	sb.WriteString("Each analysis method produces a normalized score from 1-100:\n\n")
	for i, m := range methods {
		fmt.Fprintf(&sb, "%d. %s:\n", i+1, methodHeadings[m])
		for _, line := range strings.Split(m.Description(), "\n") {
			fmt.Fprintf(&sb, "   %s\n", line)
		}
		sb.WriteString("\n")
	}

	section("Pre-processing Steps")
	sb.WriteString("1. Image Cropping:\n")
	sb.WriteString("   Applied specified margin crops to focus on the relevant image area.\n\n")

	section("Results Summary")
	for _, m := range methods {
		if avg, ok := result.AverageScores[string(m)]; ok {
			fmt.Fprintf(&sb, "%s - Average score: %.1f\n", m.Title(), avg)
		}
	}

	sb.WriteString("\n")
	section("Detailed Results by Tile")
	for _, tile := range result.Tiles {
		fmt.Fprintf(&sb, "\nTile %s:\n", tile.Coordinate)
		for _, m := range methods {
			if score, ok := tile.Score(m); ok {
				fmt.Fprintf(&sb, "  - %s: %.1f\n", m, score)
			}
		}
	}
	return sb.String()
}
