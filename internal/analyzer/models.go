package analyzer

import (
	"image"
	"time"

	"go-lens-sharpness/pkg/models"
)

// Outcome is everything the pipeline produced for one image.
// Tiles, Scores and Grid.Tiles share the same row-major order.
type Outcome struct {
	Cropped  *image.NRGBA
	Grid     *Grid
	Tiles    []models.TileResult
	Scores   [][]models.ScoreResult
	Averages map[string]float64
	Duration time.Duration
}

// DegenerateCount returns how many tile scores fell back to 0
func (o *Outcome) DegenerateCount() int {
	n := 0
	for _, tile := range o.Scores {
		for _, s := range tile {
			if s.Degenerate {
				n++
			}
		}
	}
	return n
}

// MethodGrid returns the normalized scores of method m as rows x cols
func (o *Outcome) MethodGrid(m models.Method) [][]float64 {
	values := make([][]float64, o.Grid.Rows)
	for r := range values {
		values[r] = make([]float64, o.Grid.Cols)
		for c := range values[r] {
			values[r][c], _ = o.Tiles[r*o.Grid.Cols+c].Score(m)
		}
	}
	return values
}
