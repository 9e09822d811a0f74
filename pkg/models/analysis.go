package models

import "time"

// AnalysisResult represents the complete sharpness analysis of one test-chart image.
// It is the unit persisted as a report and the source of heatmap grids.
type AnalysisResult struct {
	ID               string             `json:"id,omitempty"`
	OriginalFilename string             `json:"original_filename"`
	Timestamp        time.Time          `json:"timestamp"`
	Configuration    ConfigSnapshot     `json:"configuration"`
	Tiles            []TileResult       `json:"tiles"`
	AverageScores    map[string]float64 `json:"average_scores"`
}

// ConfigSnapshot echoes the analysis configuration a result was produced with.
// Crop values are fractions in [0,1].
type ConfigSnapshot struct {
	CropTop            float64  `json:"crop_top"`
	CropBottom         float64  `json:"crop_bottom"`
	CropLeft           float64  `json:"crop_left"`
	CropRight          float64  `json:"crop_right"`
	HorizontalSections int      `json:"horizontal_sections"`
	AnalysisMethods    []string `json:"analysis_methods"`
}

// TileResult holds the normalized scores of one grid tile
type TileResult struct {
	Coordinate string             `json:"coordinate"`
	Filename   string             `json:"filename,omitempty"`
	Scores     map[string]float64 `json:"scores"`
	RawScores  map[string]float64 `json:"raw_scores,omitempty"`
}

// ScoreResult is the outcome of one scorer on one tile
type ScoreResult struct {
	Method     Method  `json:"method"`
	Raw        float64 `json:"raw"`
	Normalized float64 `json:"normalized"`
	Degenerate bool    `json:"degenerate,omitempty"`
}

// Methods returns the configured methods of the snapshot in canonical order.
// Unknown names are skipped.
func (c ConfigSnapshot) Methods() []Method {
	selected := make(map[Method]bool, len(c.AnalysisMethods))
	for _, name := range c.AnalysisMethods {
		selected[Method(name)] = true
	}
	var out []Method
	for _, m := range AllMethods() {
		if selected[m] {
			out = append(out, m)
		}
	}
	return out
}

// Score returns the normalized score of a method for the tile
func (t TileResult) Score(m Method) (float64, bool) {
	v, ok := t.Scores[string(m)]
	return v, ok
}
