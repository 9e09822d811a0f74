package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"path"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go-lens-sharpness/internal/analyzer"
	"go-lens-sharpness/internal/config"
	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/internal/heatmap"
	"go-lens-sharpness/internal/observer"
	"go-lens-sharpness/internal/render"
	"go-lens-sharpness/internal/report"
	"go-lens-sharpness/internal/repository"
	"go-lens-sharpness/internal/storage"
	"go-lens-sharpness/pkg/models"
	"go-lens-sharpness/pkg/validation"
)

// TimestampFormat stamps every artifact of one run
const TimestampFormat = "20060102150405"

const workingFileQuality = 95

// BatchOptions controls one batch run
type BatchOptions struct {
	Root string
	// Images analyzed concurrently; <= 0 means one at a time
	ImageWorkers int
	WorkingFiles bool
}

// BatchSummary reports what a run did
type BatchSummary struct {
	RunID            string        `json:"run_id"`
	Timestamp        string        `json:"timestamp"`
	Lenses           int           `json:"lenses"`
	ImagesFound      int           `json:"images_found"`
	ImagesProcessed  int64         `json:"images_processed"`
	ImagesSkipped    int64         `json:"images_skipped"`
	ArtifactsWritten int64         `json:"artifacts_written"`
	ArtifactsFailed  int64         `json:"artifacts_failed"`
	TileJobs         int64         `json:"tile_jobs,omitempty"`
	Duration         time.Duration `json:"duration"`
}

// BatchDeps are the collaborators of a BatchService. History, Observers
// and Pool are optional.
type BatchDeps struct {
	Loader   *storage.ImageLoader
	Analyzer analyzer.ImageAnalyzer
	// Pool is the analyzer's shared tile pool, read for the run summary
	Pool      *analyzer.WorkerPool
	Store     storage.ArtifactStore
	History   repository.AnalysisRepository
	Builder   *report.Builder
	Renderer  *heatmap.Renderer
	Validator *validation.ImageValidator
	Observers []observer.Observer
	Logger    logrus.FieldLogger
}

// BatchService analyzes every chart image of a lens directory tree and
// writes reports, heatmaps and working files through an ArtifactStore.
type BatchService struct {
	deps BatchDeps
	log  logrus.FieldLogger
	now  func() time.Time
}

// NewBatchService creates a batch service. Missing builder, renderer,
// validator or logger are replaced with defaults.
func NewBatchService(deps BatchDeps) *BatchService {
	if deps.Builder == nil {
		deps.Builder = report.NewBuilder()
	}
	if deps.Renderer == nil {
		deps.Renderer = heatmap.NewRenderer(0)
	}
	if deps.Validator == nil {
		deps.Validator = validation.NewImageValidator()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &BatchService{deps: deps, log: deps.Logger, now: time.Now}
}

// run carries the per-run state shared by image goroutines
type run struct {
	cfg       *config.AnalysisConfig
	opts      BatchOptions
	timestamp string
	events    *observer.EventPublisher
}

// Run processes every lens below opts.Root. Per-image failures are logged
// and counted; the returned error is non-nil only for configuration
// problems or cancellation.
func (s *BatchService) Run(ctx context.Context, cfg *config.AnalysisConfig, opts BatchOptions) (*BatchSummary, error) {
	if cfg == nil {
		return nil, apperrors.NewConfigurationError("analysis configuration is required", nil)
	}
	if s.deps.Loader == nil || s.deps.Analyzer == nil || s.deps.Store == nil {
		return nil, apperrors.NewInternalError("batch service is missing a loader, analyzer or store", nil)
	}

	start := s.now()
	summary := &BatchSummary{
		RunID:     uuid.New().String(),
		Timestamp: start.Format(TimestampFormat),
	}
	log := s.log.WithField("run_id", summary.RunID)

	lenses, err := DiscoverLenses(opts.Root)
	if err != nil {
		return summary, err
	}
	if len(lenses) == 0 {
		return summary, apperrors.NewConfigurationError("no lens directories found in "+opts.Root, nil)
	}
	summary.Lenses = len(lenses)
	log.WithFields(logrus.Fields{
		"root":    opts.Root,
		"lenses":  len(lenses),
		"methods": models.MethodNames(cfg.Methods()),
	}).Info("Starting lens analysis")

	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher(log)
	events.Subscribe(metrics)
	for _, obs := range s.deps.Observers {
		events.Subscribe(obs)
	}
	r := &run{cfg: cfg, opts: opts, timestamp: summary.Timestamp, events: events}

	var jobsBefore int64
	if s.deps.Pool != nil {
		jobsBefore = s.deps.Pool.GetStats().TotalJobs
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.ImageWorkers))

	for _, lens := range lenses {
		if len(lens.Images) == 0 {
			log.WithField("lens", lens.Name).Warn("No chart images found in lens directory")
			continue
		}
		log.WithField("lens", lens.Name).Info("Processing lens")
		summary.ImagesFound += len(lens.Images)

		for _, imagePath := range lens.Images {
			lens, imagePath := lens, imagePath
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				s.processImage(gctx, r, lens.Name, imagePath)
				return nil
			})
		}
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	m := metrics.GetMetrics()
	summary.ImagesProcessed = m.ImagesProcessed
	summary.ImagesSkipped = m.ImagesSkipped
	summary.ArtifactsWritten = m.ArtifactsWritten
	summary.ArtifactsFailed = m.ArtifactsFailed
	summary.Duration = s.now().Sub(start)

	fields := logrus.Fields{
		"images_found":      summary.ImagesFound,
		"images_processed":  summary.ImagesProcessed,
		"images_skipped":    summary.ImagesSkipped,
		"artifacts_written": summary.ArtifactsWritten,
		"artifacts_failed":  summary.ArtifactsFailed,
		"duration":          summary.Duration.String(),
	}
	if s.deps.Pool != nil {
		stats := s.deps.Pool.GetStats()
		summary.TileJobs = stats.TotalJobs - jobsBefore
		fields["tile_jobs"] = summary.TileJobs
		fields["pool_workers"] = stats.Workers
	}
	log.WithFields(fields).Info("Analysis complete")

	if runErr != nil {
		return summary, apperrors.NewInternalError("batch run interrupted", runErr)
	}
	return summary, nil
}

// processImage runs one image end to end. Nothing it does can fail the batch.
func (s *BatchService) processImage(ctx context.Context, r *run, lens, imagePath string) {
	name := filepath.Base(imagePath)
	stem := Stem(imagePath)
	started := time.Now()

	r.events.NotifyObservers(ctx, observer.AnalysisEvent{
		EventType: observer.ImageStarted,
		Lens:      lens,
		Image:     name,
		Metadata:  map[string]interface{}{"aperture": ParseAperture(stem)},
	})
	skip := func(err error) {
		r.events.NotifyObservers(ctx, observer.AnalysisEvent{
			EventType:    observer.ImageSkipped,
			Lens:         lens,
			Image:        name,
			ErrorMessage: err.Error(),
		})
	}

	img, _, err := s.deps.Loader.Load(imagePath)
	if err != nil {
		skip(err)
		return
	}

	outcome, err := s.deps.Analyzer.Analyze(img, r.cfg, name)
	if err != nil {
		skip(err)
		return
	}
	for _, issue := range s.deps.Validator.ValidateTileSize(outcome.Grid.TileWidth, outcome.Grid.TileHeight) {
		s.log.WithFields(logrus.Fields{"lens": lens, "image": name}).Warn(issue.Message)
	}
	if r.opts.WorkingFiles {
		for i := range outcome.Tiles {
			outcome.Tiles[i].Filename = fmt.Sprintf("%s_%s_%s.jpg", stem, outcome.Tiles[i].Coordinate, r.timestamp)
		}
	}

	result := s.deps.Builder.Build(name, r.cfg, outcome)
	a := artifacts{svc: s, run: r, lens: lens, image: name}

	if data, err := report.JSON(result); err != nil {
		a.failed(ctx, "report", err)
	} else {
		a.save(ctx, path.Join(ReportsDir, lens, fmt.Sprintf("%s_analysis_%s.json", stem, r.timestamp)), data, storage.ContentTypeJSON)
	}
	a.save(ctx, path.Join(ReportsDir, lens, fmt.Sprintf("%s_report_%s.txt", stem, r.timestamp)),
		[]byte(report.Text(result)), storage.ContentTypeText)

	if r.cfg.Heatmaps() {
		for _, m := range r.cfg.Methods() {
			key := path.Join(HeatmapsDir, lens, fmt.Sprintf("%s_%s_heatmap.png", stem, m))
			data, err := s.heatmapPNG(result, m, name)
			if err != nil {
				a.failed(ctx, key, err)
				continue
			}
			a.save(ctx, key, data, storage.ContentTypePNG)
		}
	}

	if r.opts.WorkingFiles {
		s.saveWorkingFiles(ctx, a, stem, outcome, r.cfg.Methods())
	}

	if s.deps.History != nil {
		if err := s.deps.History.SaveAnalysisResult(ctx, result); err != nil {
			a.failed(ctx, "history", err)
		}
	}

	r.events.NotifyObservers(ctx, observer.AnalysisEvent{
		EventType:      observer.ImageCompleted,
		Lens:           lens,
		Image:          name,
		ProcessingTime: time.Since(started),
		Metadata: map[string]interface{}{
			"tiles":          len(result.Tiles),
			"degenerate":     outcome.DegenerateCount(),
			"average_scores": result.AverageScores,
		},
	})
}

func (s *BatchService) heatmapPNG(result *models.AnalysisResult, m models.Method, source string) ([]byte, error) {
	g, err := heatmap.FromResult(result, m)
	if err != nil {
		return nil, err
	}
	return s.deps.Renderer.RenderPNG(g, source)
}

func (s *BatchService) saveWorkingFiles(ctx context.Context, a artifacts, stem string, outcome *analyzer.Outcome, methods []models.Method) {
	dir := path.Join(WorkingFilesDir, a.lens)

	a.saveJPEG(ctx, path.Join(dir, stem+"_cropped.jpg"), outcome.Cropped)

	for i, tile := range outcome.Grid.Tiles {
		if tile.Empty() {
			continue
		}
		overlay := render.TileOverlay(outcome.Cropped.SubImage(tile.Rect), outcome.Tiles[i], methods)
		a.saveJPEG(ctx, path.Join(dir, "tiles", outcome.Tiles[i].Filename), overlay)
	}

	overview := render.Overview(outcome.Cropped, outcome.Grid.Rows, outcome.Grid.Cols, outcome.Tiles, methods)
	a.saveJPEG(ctx, path.Join(dir, fmt.Sprintf("%s_overview_%s.jpg", stem, a.run.timestamp)), overview)
}

// artifacts saves files of one image and reports each outcome as an event
type artifacts struct {
	svc   *BatchService
	run   *run
	lens  string
	image string
}

func (a artifacts) save(ctx context.Context, key string, data []byte, contentType string) {
	if err := a.svc.deps.Store.Save(ctx, key, data, contentType); err != nil {
		a.failed(ctx, key, err)
		return
	}
	a.run.events.NotifyObservers(ctx, observer.AnalysisEvent{
		EventType: observer.ArtifactWritten,
		Lens:      a.lens,
		Image:     a.image,
		Artifact:  a.svc.deps.Store.Location(key),
	})
}

func (a artifacts) saveJPEG(ctx context.Context, key string, img image.Image) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(workingFileQuality)); err != nil {
		a.failed(ctx, key, apperrors.NewPersistenceError("cannot encode "+key, err))
		return
	}
	a.save(ctx, key, buf.Bytes(), storage.ContentTypeJPEG)
}

func (a artifacts) failed(ctx context.Context, key string, err error) {
	a.run.events.NotifyObservers(ctx, observer.AnalysisEvent{
		EventType:    observer.ArtifactFailed,
		Lens:         a.lens,
		Image:        a.image,
		Artifact:     key,
		ErrorMessage: err.Error(),
	})
}
