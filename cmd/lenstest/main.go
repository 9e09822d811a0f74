// Command lenstest analyzes a directory of lens test-chart photographs.
//
// The root holds one sub-directory per lens. Reports, heatmaps and working
// files are written next to them:
//
//	lenstest -root ./charts -sections 6 -methods laplacian,sobel
//	lenstest -config run.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"go-lens-sharpness/internal/analyzer"
	"go-lens-sharpness/internal/config"
	"go-lens-sharpness/internal/factory"
	"go-lens-sharpness/internal/heatmap"
	"go-lens-sharpness/internal/logger"
	"go-lens-sharpness/internal/observer"
	"go-lens-sharpness/internal/repository"
	"go-lens-sharpness/internal/service"
	"go-lens-sharpness/internal/storage"
	"go-lens-sharpness/pkg/validation"
)

// options is the merged result of defaults, the run file and flags
type options struct {
	params config.AnalysisParams

	root           string
	workers        int
	imageWorkers   int
	workingFiles   bool
	logLevel       string
	logFile        string
	minWidth       int
	minHeight      int
	heatmapWidth   int
	storage        string
	azureContainer string
	history        string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg, err := config.NewAnalysisConfig(opts.params)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	log, logFile := logger.New(logger.Options{Level: opts.logLevel, File: opts.logFile})
	defer logFile.Close()
	log.WithFields(logrus.Fields{"root": opts.root, "log_file": opts.logFile}).Info("Starting lens analysis application")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := runBatch(ctx, opts, cfg, log)
	if err != nil {
		log.WithError(err).Error("Lens analysis failed")
		return 1
	}

	log.WithField("reports", filepath.Join(opts.root, service.ReportsDir)).Info("Reports written")
	if cfg.Heatmaps() {
		log.WithField("heatmaps", filepath.Join(opts.root, service.HeatmapsDir)).Info("Heatmaps written")
	}
	if summary.ImagesSkipped > 0 || summary.ArtifactsFailed > 0 {
		return 1
	}
	return 0
}

func runBatch(ctx context.Context, opts *options, cfg *config.AnalysisConfig, log *logrus.Logger) (*service.BatchSummary, error) {
	pool := analyzer.NewWorkerPool(opts.workers)
	pool.Start()
	defer func() {
		pool.Close()
		pool.Wait()
	}()

	components := factory.NewComponentFactory(factory.StorageSettings{
		Root:             opts.root,
		AzureAccountName: os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureAccountKey:  os.Getenv("AZURE_STORAGE_KEY"),
		AzureContainer:   opts.azureContainer,
		AzurePrefix:      filepath.Base(opts.root),
	}, pool, log)

	a, err := components.AnalyzerFactory.CreateAnalyzer()
	if err != nil {
		return nil, err
	}
	defer a.Close()

	store, err := components.StorageFactory.CreateStorage(factory.StorageType(opts.storage))
	if err != nil {
		return nil, err
	}

	deps := service.BatchDeps{
		Loader: storage.NewImageLoader(validation.NewImageValidatorWithThresholds(validation.ImageThresholds{
			MinWidth:    opts.minWidth,
			MinHeight:   opts.minHeight,
			MaxPixels:   validation.DefaultImageThresholds().MaxPixels,
			MinTileEdge: validation.DefaultImageThresholds().MinTileEdge,
		})),
		Analyzer:  a,
		Pool:      pool,
		Store:     store,
		Renderer:  heatmap.NewRenderer(opts.heatmapWidth),
		Observers: []observer.Observer{observer.NewLoggingObserver(log)},
		Logger:    log,
	}
	if opts.history != "" {
		repo, err := repository.NewBoltAnalysisRepository(opts.history)
		if err != nil {
			return nil, err
		}
		defer repo.Close()
		deps.History = repo
	}

	return service.NewBatchService(deps).Run(ctx, cfg, service.BatchOptions{
		Root:         opts.root,
		ImageWorkers: opts.imageWorkers,
		WorkingFiles: opts.workingFiles,
	})
}

// parseOptions applies defaults, then the run file named by -config, then
// every flag given explicitly.
func parseOptions(args []string, output io.Writer) (*options, error) {
	fs := flag.NewFlagSet("lenstest", flag.ContinueOnError)
	fs.SetOutput(output)

	var (
		runFile      = fs.String("config", "", "YAML run file")
		root         = fs.String("root", "", "directory with one sub-directory per lens")
		cropTop      = fs.Float64("crop-top", 0, "top margin to crop, percent")
		cropBottom   = fs.Float64("crop-bottom", 0, "bottom margin to crop, percent")
		cropLeft     = fs.Float64("crop-left", 0, "left margin to crop, percent")
		cropRight    = fs.Float64("crop-right", 0, "right margin to crop, percent")
		sections     = fs.Int("sections", config.DefaultHorizontalSections, "horizontal sections (1-20)")
		methods      = fs.String("methods", "laplacian,sobel,tenengrad", "comma separated analysis methods")
		heatmaps     = fs.Bool("heatmaps", true, "render a heatmap per method")
		workingFiles = fs.Bool("working-files", true, "write cropped image, tile overlays and overview")
		workers      = fs.Int("workers", runtime.NumCPU(), "tile scoring workers")
		imageWorkers = fs.Int("image-workers", 2, "images analyzed concurrently")
		logLevel     = fs.String("log-level", "info", "debug, info, warn or error")
		logFile      = fs.String("log-file", "", "log file (default <root>/lens_analysis.log)")
		minWidth     = fs.Int("min-width", 64, "minimum image width")
		minHeight    = fs.Int("min-height", 64, "minimum image height")
		heatmapWidth = fs.Int("heatmap-width", heatmap.DefaultWidth, "heatmap width in pixels, height is 2/3 of it")
		backend      = fs.String("storage", config.StorageLocal, "artifact storage: local or azure")
		container    = fs.String("azure-container", "lens-analysis", "Azure Blob container for -storage azure")
		history      = fs.String("history", "", "bbolt database recording every result")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	opts := &options{
		params: config.AnalysisParams{
			HorizontalSections: *sections,
			Methods:            splitList(*methods),
			Heatmaps:           *heatmaps,
		},
		workers:        *workers,
		imageWorkers:   *imageWorkers,
		workingFiles:   *workingFiles,
		logLevel:       *logLevel,
		minWidth:       *minWidth,
		minHeight:      *minHeight,
		heatmapWidth:   *heatmapWidth,
		storage:        *backend,
		azureContainer: *container,
	}

	if *runFile != "" {
		rf, err := config.LoadFile(*runFile)
		if err != nil {
			return nil, err
		}
		opts.params = rf.Analysis.Params()
		applyRunSection(opts, rf.Run)
	}

	// explicit flags win over the run file
	if set["root"] || opts.root == "" {
		opts.root = *root
	}
	overrideFloat(set, "crop-top", &opts.params.CropTop, *cropTop)
	overrideFloat(set, "crop-bottom", &opts.params.CropBottom, *cropBottom)
	overrideFloat(set, "crop-left", &opts.params.CropLeft, *cropLeft)
	overrideFloat(set, "crop-right", &opts.params.CropRight, *cropRight)
	overrideInt(set, "sections", &opts.params.HorizontalSections, *sections)
	if set["methods"] {
		opts.params.Methods = splitList(*methods)
	}
	if set["heatmaps"] {
		opts.params.Heatmaps = *heatmaps
	}
	if set["working-files"] {
		opts.workingFiles = *workingFiles
	}
	overrideInt(set, "workers", &opts.workers, *workers)
	overrideInt(set, "image-workers", &opts.imageWorkers, *imageWorkers)
	overrideInt(set, "min-width", &opts.minWidth, *minWidth)
	overrideInt(set, "min-height", &opts.minHeight, *minHeight)
	overrideInt(set, "heatmap-width", &opts.heatmapWidth, *heatmapWidth)
	overrideString(set, "log-level", &opts.logLevel, *logLevel)
	overrideString(set, "log-file", &opts.logFile, *logFile)
	overrideString(set, "storage", &opts.storage, *backend)
	overrideString(set, "azure-container", &opts.azureContainer, *container)
	overrideString(set, "history", &opts.history, *history)

	if opts.root == "" {
		return nil, fmt.Errorf("-root (or run.root in the run file) is required")
	}
	if info, err := os.Stat(opts.root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("invalid directory path: %s", opts.root)
	}
	if opts.logFile == "" {
		opts.logFile = filepath.Join(opts.root, "lens_analysis.log")
	}
	if opts.workers <= 0 {
		return nil, fmt.Errorf("-workers must be > 0 (got %d)", opts.workers)
	}
	return opts, nil
}

func applyRunSection(opts *options, r config.RunSection) {
	if r.Root != "" {
		opts.root = r.Root
	}
	if r.Workers > 0 {
		opts.workers = r.Workers
	}
	if r.ImageWorkers > 0 {
		opts.imageWorkers = r.ImageWorkers
	}
	if r.WorkingFiles != nil {
		opts.workingFiles = *r.WorkingFiles
	}
	if r.LogLevel != "" {
		opts.logLevel = r.LogLevel
	}
	if r.LogFile != "" {
		opts.logFile = r.LogFile
	}
	if r.MinImageWidth > 0 {
		opts.minWidth = r.MinImageWidth
	}
	if r.MinImageHeight > 0 {
		opts.minHeight = r.MinImageHeight
	}
	if r.HeatmapWidth > 0 {
		opts.heatmapWidth = r.HeatmapWidth
	}
	if r.StorageBackend != "" {
		opts.storage = r.StorageBackend
	}
	if r.AzureContainer != "" {
		opts.azureContainer = r.AzureContainer
	}
	if r.HistoryDatabase != "" {
		opts.history = r.HistoryDatabase
	}
}

func overrideFloat(set map[string]bool, name string, dst *float64, v float64) {
	if set[name] {
		*dst = v
	}
}

func overrideInt(set map[string]bool, name string, dst *int, v int) {
	if set[name] {
		*dst = v
	}
}

func overrideString(set map[string]bool, name string, dst *string, v string) {
	if set[name] {
		*dst = v
	}
}

func splitList(value string) []string {
	var out []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
