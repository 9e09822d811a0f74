package analyzer

import (
	"math"
	"testing"

	"go-lens-sharpness/pkg/models"
)

func TestNormalize_Bounds(t *testing.T) {
	ranges := DefaultCalibrationRanges()
	raws := []float64{-1e9, -5, 0, 1e-9, 0.5, 10, 49.9, 50, 99, 100, 250, 499, 500, 501, 1e6, math.Inf(1), math.Inf(-1), math.NaN()}

	for _, m := range models.AllMethods() {
		for _, raw := range raws {
			got := ranges.Normalize(m, raw)
			if got < MinScore || got > MaxScore || math.IsNaN(got) {
				t.Errorf("%s: Normalize(%v) = %v, outside [1,100]", m, raw, got)
			}
		}
	}
}

func TestNormalize_Monotonic(t *testing.T) {
	ranges := DefaultCalibrationRanges()
	for _, m := range models.AllMethods() {
		prev := ranges.Normalize(m, 0)
		for raw := 0.0; raw <= 1000; raw += 0.75 {
			got := ranges.Normalize(m, raw)
			if got < prev {
				t.Fatalf("%s: Normalize(%v)=%v decreased from %v", m, raw, got, prev)
			}
			prev = got
		}
	}
}

func TestNormalize_KnownValues(t *testing.T) {
	testCases := []struct {
		name     string
		raw      float64
		rangeMax float64
		expected float64
	}{
		{"Zero", 0, 500, 1},
		{"Half range", 250, 500, 50.5},
		{"Full range", 50, 50, 100},
		{"Above range clamps", 300, 100, 100},
		{"Negative clamps", -10, 100, 1},
		{"NaN", math.NaN(), 100, 1},
		{"Zero range", 10, 0, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.raw, tc.rangeMax); math.Abs(got-tc.expected) > 1e-9 {
				t.Errorf("Expected %f, got %f", tc.expected, got)
			}
		})
	}
}

func TestAverageScores(t *testing.T) {
	tiles := []models.TileResult{
		{Coordinate: "A1", Scores: map[string]float64{"laplacian": 10, "sobel": 3}},
		{Coordinate: "A2", Scores: map[string]float64{"laplacian": 20, "sobel": 5}},
		{Coordinate: "B1", Scores: map[string]float64{"laplacian": 33, "sobel": 7}},
	}

	avg := AverageScores(tiles, []models.Method{models.Laplacian, models.Sobel, models.Tenengrad})

	if math.Abs(avg["laplacian"]-21) > 1e-6 {
		t.Errorf("Expected laplacian average 21, got %f", avg["laplacian"])
	}
	if math.Abs(avg["sobel"]-5) > 1e-6 {
		t.Errorf("Expected sobel average 5, got %f", avg["sobel"])
	}
	if _, ok := avg["tenengrad"]; ok {
		t.Error("Expected no tenengrad average without scores")
	}
}
