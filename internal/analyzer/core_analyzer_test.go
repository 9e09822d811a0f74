package analyzer

import (
	"image"
	"image/color"
	"math"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"go-lens-sharpness/internal/config"
	"go-lens-sharpness/pkg/models"
)

func mustConfig(t *testing.T, p config.AnalysisParams) *config.AnalysisConfig {
	t.Helper()
	cfg, err := config.NewAnalysisConfig(p)
	if err != nil {
		t.Fatalf("Failed to build config: %v", err)
	}
	return cfg
}

func newTestAnalyzer(t *testing.T) ImageAnalyzer {
	t.Helper()
	a, err := NewImageAnalyzerWithOptions(DefaultOptions().WithWorkers(4))
	if err != nil {
		t.Fatalf("Failed to create image analyzer: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewImageAnalyzer(t *testing.T) {
	analyzer, err := NewImageAnalyzer()
	if err != nil {
		t.Fatalf("Failed to create image analyzer: %v", err)
	}
	if analyzer == nil {
		t.Fatal("Expected non-nil analyzer")
	}
	if err := analyzer.Close(); err != nil {
		t.Errorf("Unexpected close error: %v", err)
	}
}

func TestAnalyze_UniformGrayEndToEnd(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	img := createTestImage(1000, 1000, color.RGBA{128, 128, 128, 255})
	cfg := mustConfig(t, config.AnalysisParams{HorizontalSections: 5, Methods: []string{"laplacian"}})

	outcome, err := analyzer.Analyze(img, cfg, "gray.jpg")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if outcome.Grid.Rows != 5 {
		t.Errorf("Expected 5 vertical sections, got %d", outcome.Grid.Rows)
	}
	if len(outcome.Tiles) != 25 {
		t.Fatalf("Expected 25 tiles, got %d", len(outcome.Tiles))
	}
	for _, tile := range outcome.Tiles {
		if tile.RawScores["laplacian"] != 0 {
			t.Errorf("%s: expected raw variance 0, got %f", tile.Coordinate, tile.RawScores["laplacian"])
		}
		if tile.Scores["laplacian"] != 1 {
			t.Errorf("%s: expected normalized score 1, got %f", tile.Coordinate, tile.Scores["laplacian"])
		}
		if _, ok := tile.Scores["sobel"]; ok {
			t.Errorf("%s: unselected method was scored", tile.Coordinate)
		}
	}
	if outcome.Averages["laplacian"] != 1.0 {
		t.Errorf("Expected average 1.0, got %f", outcome.Averages["laplacian"])
	}
	if outcome.DegenerateCount() != 0 {
		t.Errorf("Expected no degenerate scores, got %d", outcome.DegenerateCount())
	}
}

func TestAnalyze_SharpLineEndToEnd(t *testing.T) {
	analyzer := newTestAnalyzer(t)

	// A white vertical line through the middle column of a 3x3 grid
	img := createTestImage(300, 300, color.RGBA{40, 40, 40, 255})
	for y := 0; y < 300; y++ {
		for x := 148; x < 152; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	cfg := mustConfig(t, config.AnalysisParams{
		HorizontalSections: 3,
		Methods:            []string{"laplacian", "sobel", "tenengrad"},
	})

	outcome, err := analyzer.Analyze(img, cfg, "line.jpg")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for row := 0; row < outcome.Grid.Rows; row++ {
		line := outcome.Tiles[row*3+1]
		for _, neighbour := range []models.TileResult{outcome.Tiles[row*3], outcome.Tiles[row*3+2]} {
			for _, m := range models.AllMethods() {
				if line.Scores[string(m)] <= neighbour.Scores[string(m)] {
					t.Errorf("%s: %s scored %f, not above %s at %f", m, line.Coordinate,
						line.Scores[string(m)], neighbour.Coordinate, neighbour.Scores[string(m)])
				}
			}
		}
	}
	// uniform neighbours fall back to 0 for tenengrad
	if outcome.DegenerateCount() != 6 {
		t.Errorf("Expected 6 degenerate tenengrad scores, got %d", outcome.DegenerateCount())
	}
}

func TestAnalyze_ZeroCropMatchesUncropped(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	img := createGradientImage(240, 160)
	params := config.AnalysisParams{HorizontalSections: 4, Methods: []string{"laplacian", "sobel", "tenengrad"}}

	outcome, err := analyzer.Analyze(img, mustConfig(t, params), "gradient.png")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	grid, err := Partition(img, 4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	ranges := DefaultCalibrationRanges()
	for i, tile := range grid.Tiles {
		for _, m := range models.AllMethods() {
			s, _ := NewScorer(m)
			raw, _ := s.Score(tile.Gray)
			expected := ranges.Normalize(m, raw)
			if got := outcome.Tiles[i].Scores[string(m)]; math.Abs(got-expected) > 1e-12 {
				t.Errorf("%s %s: expected %f, got %f", tile.Label, m, expected, got)
			}
		}
	}
}

func TestAnalyze_AverageIsMeanOfTiles(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	img := createGradientImage(300, 200)
	cfg := mustConfig(t, config.AnalysisParams{CropTop: 5, CropLeft: 10, HorizontalSections: 6, Methods: []string{"sobel", "laplacian"}})

	outcome, err := analyzer.Analyze(img, cfg, "gradient.png")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, m := range cfg.Methods() {
		sum := 0.0
		for _, tile := range outcome.Tiles {
			sum += tile.Scores[string(m)]
		}
		mean := sum / float64(len(outcome.Tiles))
		if math.Abs(outcome.Averages[string(m)]-mean) > 1e-6 {
			t.Errorf("%s: average %f differs from mean %f", m, outcome.Averages[string(m)], mean)
		}
	}
}

func TestAnalyze_CroppedDimensions(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	img := createTestImage(400, 200, color.RGBA{90, 90, 90, 255})
	cfg := mustConfig(t, config.AnalysisParams{CropTop: 10, CropBottom: 10, CropLeft: 25, CropRight: 25, HorizontalSections: 2, Methods: []string{"sobel"}})

	outcome, err := analyzer.Analyze(img, cfg, "crop.png")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if b := outcome.Cropped.Bounds(); b.Dx() != 200 || b.Dy() != 160 {
		t.Errorf("Expected 200x160 crop, got %v", b)
	}
	if len(outcome.MethodGrid(models.Sobel)) != outcome.Grid.Rows {
		t.Error("Expected one method grid row per grid row")
	}
}

func TestAnalyze_NilInput(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	cfg := mustConfig(t, config.AnalysisParams{HorizontalSections: 2, Methods: []string{"sobel"}})

	if _, err := analyzer.Analyze(nil, cfg, "none"); err == nil {
		t.Error("Expected an error for a nil image")
	}
	if _, err := analyzer.Analyze(image.NewGray(image.Rect(0, 0, 4, 4)), nil, "none"); err == nil {
		t.Error("Expected an error for a nil config")
	}
}

func TestAnalyze_SharedPoolConcurrentImages(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Close()

	analyzer, err := NewImageAnalyzerWithOptions(DefaultOptions().WithPool(pool))
	if err != nil {
		t.Fatalf("Failed to create analyzer: %v", err)
	}
	defer analyzer.Close()

	cfg := mustConfig(t, config.AnalysisParams{HorizontalSections: 4, Methods: []string{"laplacian", "sobel"}})

	var wg sync.WaitGroup
	results := make([]*Outcome, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := analyzer.Analyze(createGradientImage(200+i*10, 150), cfg, "concurrent")
			if err != nil {
				t.Errorf("Analyze %d failed: %v", i, err)
				return
			}
			results[i] = out
		}(i)
	}
	wg.Wait()

	for i, out := range results {
		if out == nil {
			continue
		}
		for j, tile := range out.Tiles {
			if tile.Coordinate != out.Grid.Tiles[j].Label {
				t.Errorf("Image %d: tile %d has coordinate %s, expected %s", i, j, tile.Coordinate, out.Grid.Tiles[j].Label)
			}
		}
	}
	if pool.GetStats().CompletedJobs == 0 {
		t.Error("Expected jobs to run on the shared pool")
	}
}

func TestAnalyze_Sequential(t *testing.T) {
	analyzer, err := NewImageAnalyzerWithOptions(SequentialOptions())
	if err != nil {
		t.Fatalf("Failed to create analyzer: %v", err)
	}
	defer analyzer.Close()

	cfg := mustConfig(t, config.AnalysisParams{HorizontalSections: 2, Methods: []string{"tenengrad"}})
	outcome, err := analyzer.Analyze(createTestImage(100, 100, color.RGBA{1, 2, 3, 255}), cfg, "flat")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, tile := range outcome.Tiles {
		if tile.Scores["tenengrad"] != 1 {
			t.Errorf("%s: expected degenerate tile to normalize to 1, got %f", tile.Coordinate, tile.Scores["tenengrad"])
		}
	}
	if outcome.DegenerateCount() != len(outcome.Tiles) {
		t.Errorf("Expected every tile to be degenerate, got %d", outcome.DegenerateCount())
	}
}

func TestAnalyze_DegenerateWarnsOncePerImage(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	a, err := NewImageAnalyzerWithOptions(DefaultOptions().WithWorkers(2).WithLogger(log))
	if err != nil {
		t.Fatalf("Failed to create image analyzer: %v", err)
	}
	defer a.Close()

	img := createTestImage(200, 200, color.RGBA{90, 90, 90, 255})
	cfg := mustConfig(t, config.AnalysisParams{HorizontalSections: 10, Methods: []string{"tenengrad"}})
	outcome, err := a.Analyze(img, cfg, "flat.jpg")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outcome.DegenerateCount() != 100 {
		t.Fatalf("Expected 100 degenerate scores, got %d", outcome.DegenerateCount())
	}

	var warnings, debug int
	for _, entry := range hook.AllEntries() {
		switch entry.Level {
		case logrus.WarnLevel:
			warnings++
			if entry.Data["degenerate"] != 100 {
				t.Errorf("Expected degenerate=100, got %v", entry.Data["degenerate"])
			}
			coords, _ := entry.Data["coordinates"].([]string)
			if len(coords) != 100 || coords[0] != "A1" || coords[99] != "J10" {
				t.Errorf("Unexpected coordinates: %v", coords)
			}
		case logrus.DebugLevel:
			if entry.Message == "Degenerate sharpness score, using 0" {
				debug++
			}
		}
	}
	if warnings != 1 {
		t.Errorf("Expected one warning per image, got %d", warnings)
	}
	if debug != 100 {
		t.Errorf("Expected 100 per-tile debug entries, got %d", debug)
	}
}
