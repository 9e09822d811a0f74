package analyzer

import (
	"github.com/sirupsen/logrus"

	"go-lens-sharpness/internal/logger"
)

// AnalysisOptions configures an analyzer instance
type AnalysisOptions struct {
	// Calibration upper bounds per method
	Ranges CalibrationRanges

	// Performance options
	UseWorkerPool bool
	MaxWorkers    int
	// Pool, when set, is used instead of a private pool and is not closed by the analyzer
	Pool *WorkerPool

	Logger logrus.FieldLogger
}

// DefaultOptions returns default analysis options
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		Ranges:        DefaultCalibrationRanges(),
		UseWorkerPool: true,
		MaxWorkers:    0, // Use default CPU count
		Logger:        logger.Logger,
	}
}

// SequentialOptions scores tiles on the calling goroutine
func SequentialOptions() AnalysisOptions {
	opts := DefaultOptions()
	opts.UseWorkerPool = false
	return opts
}

// WithRanges overrides the calibration ranges
func (opts AnalysisOptions) WithRanges(ranges CalibrationRanges) AnalysisOptions {
	opts.Ranges = ranges
	return opts
}

// WithWorkers sets the size of the private worker pool
func (opts AnalysisOptions) WithWorkers(n int) AnalysisOptions {
	opts.UseWorkerPool = true
	opts.MaxWorkers = n
	return opts
}

// WithPool shares an existing pool
func (opts AnalysisOptions) WithPool(pool *WorkerPool) AnalysisOptions {
	opts.UseWorkerPool = true
	opts.Pool = pool
	return opts
}

// WithLogger sets the logger used for degenerate score warnings
func (opts AnalysisOptions) WithLogger(l logrus.FieldLogger) AnalysisOptions {
	opts.Logger = l
	return opts
}
