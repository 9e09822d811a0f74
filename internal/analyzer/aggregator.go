package analyzer

import (
	"gonum.org/v1/gonum/stat"

	"go-lens-sharpness/pkg/models"
)

// AverageScores returns the unweighted mean normalized score per method.
// Methods with no tile scores are left out.
func AverageScores(tiles []models.TileResult, methods []models.Method) map[string]float64 {
	averages := make(map[string]float64, len(methods))
	for _, m := range methods {
		values := make([]float64, 0, len(tiles))
		for _, t := range tiles {
			if v, ok := t.Score(m); ok {
				values = append(values, v)
			}
		}
		if len(values) > 0 {
			averages[string(m)] = stat.Mean(values, nil)
		}
	}
	return averages
}
