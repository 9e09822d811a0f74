package analyzer

import (
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-lens-sharpness/internal/config"
	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/internal/logger"
	"go-lens-sharpness/pkg/models"
)

// coreAnalyzer implements ImageAnalyzer and orchestrates the pipeline stages
type coreAnalyzer struct {
	workerPool *WorkerPool
	ownsPool   bool
	scorers    map[models.Method]Scorer
	ranges     CalibrationRanges
	log        logrus.FieldLogger
}

// NewImageAnalyzer creates an analyzer with default options
func NewImageAnalyzer() (ImageAnalyzer, error) {
	return NewImageAnalyzerWithOptions(DefaultOptions())
}

// NewImageAnalyzerWithOptions creates an analyzer from explicit options
func NewImageAnalyzerWithOptions(opts AnalysisOptions) (ImageAnalyzer, error) {
	if opts.Ranges == nil {
		opts.Ranges = DefaultCalibrationRanges()
	}
	if err := opts.Ranges.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logger.Logger
	}

	ca := &coreAnalyzer{
		scorers: make(map[models.Method]Scorer, len(models.AllMethods())),
		ranges:  opts.Ranges,
		log:     opts.Logger,
	}
	for _, m := range models.AllMethods() {
		s, err := NewScorer(m)
		if err != nil {
			return nil, err
		}
		ca.scorers[m] = s
	}

	if opts.UseWorkerPool {
		if opts.Pool != nil {
			ca.workerPool = opts.Pool
		} else {
			ca.workerPool = NewWorkerPool(opts.MaxWorkers)
			ca.workerPool.Start()
			ca.ownsPool = true
		}
	}
	return ca, nil
}

// Analyze crops img, partitions it and scores every tile with every selected method
func (ca *coreAnalyzer) Analyze(img image.Image, cfg *config.AnalysisConfig, name string) (*Outcome, error) {
	if img == nil || cfg == nil {
		return nil, apperrors.NewInternalError("analyze requires an image and a configuration", nil)
	}
	start := time.Now()

	cropped, err := Crop(img, CropBox{
		Top:    cfg.CropTop(),
		Bottom: cfg.CropBottom(),
		Left:   cfg.CropLeft(),
		Right:  cfg.CropRight(),
	})
	if err != nil {
		return nil, err
	}

	grid, err := Partition(cropped, cfg.HorizontalSections())
	if err != nil {
		return nil, err
	}

	methods := cfg.Methods()
	scores := make([][]models.ScoreResult, len(grid.Tiles))

	var wg sync.WaitGroup
	for i := range grid.Tiles {
		i := i
		job := func() {
			defer wg.Done()
			scores[i] = ca.scoreTile(grid.Tiles[i], methods)
		}
		wg.Add(1)
		if ca.workerPool == nil || !ca.workerPool.Submit(job) {
			job()
		}
	}
	wg.Wait()

	tiles := make([]models.TileResult, len(grid.Tiles))
	var degenerateTiles []string
	for i, tile := range grid.Tiles {
		tr := models.TileResult{
			Coordinate: tile.Label,
			Scores:     make(map[string]float64, len(methods)),
			RawScores:  make(map[string]float64, len(methods)),
		}
		degenerate := false
		for _, s := range scores[i] {
			tr.Scores[string(s.Method)] = s.Normalized
			tr.RawScores[string(s.Method)] = s.Raw
			if s.Degenerate {
				degenerate = true
				ca.log.WithFields(logrus.Fields{
					"image":      name,
					"coordinate": tile.Label,
					"method":     s.Method,
				}).Debug("Degenerate sharpness score, using 0")
			}
		}
		if degenerate {
			degenerateTiles = append(degenerateTiles, tile.Label)
		}
		tiles[i] = tr
	}

	outcome := &Outcome{
		Cropped:  cropped,
		Grid:     grid,
		Tiles:    tiles,
		Scores:   scores,
		Averages: AverageScores(tiles, methods),
		Duration: time.Since(start),
	}

	if n := outcome.DegenerateCount(); n > 0 {
		ca.log.WithFields(logrus.Fields{
			"image":       name,
			"degenerate":  n,
			"coordinates": degenerateTiles,
		}).Warn("Degenerate sharpness scores, using 0")
	}

	ca.log.WithFields(logrus.Fields{
		"image":       name,
		"rows":        grid.Rows,
		"cols":        grid.Cols,
		"tile_width":  grid.TileWidth,
		"tile_height": grid.TileHeight,
		"duration_ms": outcome.Duration.Milliseconds(),
	}).Debug("Image analyzed")

	return outcome, nil
}

// scoreTile runs each method on one tile. Only the caller's slot is written.
func (ca *coreAnalyzer) scoreTile(tile Tile, methods []models.Method) []models.ScoreResult {
	results := make([]models.ScoreResult, 0, len(methods))
	for _, m := range methods {
		raw, err := ca.scorers[m].Score(tile.Gray)
		degenerate := false
		if err != nil {
			// scorers only fail with degenerate results; anything else is still reported as 0
			raw, degenerate = 0, true
		}
		results = append(results, models.ScoreResult{
			Method:     m,
			Raw:        raw,
			Normalized: ca.ranges.Normalize(m, raw),
			Degenerate: degenerate,
		})
	}
	return results
}

// Close releases the private worker pool
func (ca *coreAnalyzer) Close() error {
	if ca.workerPool != nil && ca.ownsPool {
		ca.workerPool.Close()
	}
	return nil
}
