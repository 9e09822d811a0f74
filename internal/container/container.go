package container

import (
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"go-lens-sharpness/internal/analyzer"
	"go-lens-sharpness/internal/config"
	"go-lens-sharpness/internal/factory"
	"go-lens-sharpness/internal/logger"
	"go-lens-sharpness/internal/repository"
	"go-lens-sharpness/internal/service"
	"go-lens-sharpness/internal/storage"
	"go-lens-sharpness/internal/transport"
	"go-lens-sharpness/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config               *config.Config
	logger               *logrus.Logger
	logCloser            io.Closer
	pool                 *analyzer.WorkerPool
	imageAnalyzer        analyzer.ImageAnalyzer
	repository           repository.AnalysisRepository
	imageAnalysisService service.ImageAnalysisService
	handler              http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	log, logCloser := logger.New(logger.Options{Level: cfg.LogLevel})

	pool := analyzer.NewWorkerPool(cfg.Workers)
	pool.Start()

	components := factory.NewComponentFactory(factory.StorageSettings{
		Root:             cfg.ArtifactDir,
		AzureAccountName: cfg.AzureAccountName,
		AzureAccountKey:  cfg.AzureAccountKey,
		AzureContainer:   cfg.AzureContainer,
	}, pool, log)

	imageAnalyzer, err := components.AnalyzerFactory.CreateAnalyzer()
	if err != nil {
		pool.Close()
		return nil, err
	}
	store, err := components.StorageFactory.CreateStorage(factory.StorageType(cfg.StorageBackend))
	if err != nil {
		pool.Close()
		return nil, err
	}
	repo, err := repository.NewBoltAnalysisRepository(cfg.DatabasePath)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to open result database: %w", err)
	}

	loader := storage.NewImageLoader(validation.NewImageValidatorWithThresholds(validation.ImageThresholds{
		MinWidth:    cfg.MinImageWidth,
		MinHeight:   cfg.MinImageHeight,
		MaxPixels:   validation.DefaultImageThresholds().MaxPixels,
		MinTileEdge: validation.DefaultImageThresholds().MinTileEdge,
	}))
	svc := service.NewImageAnalysisService(service.AnalysisDeps{
		Fetcher:  storage.NewHTTPImageFetcher(loader, cfg.ImageFetchTimeout, cfg.MaxRequestBodySize),
		Loader:   loader,
		Analyzer: imageAnalyzer,
		Repo:     repo,
		Store:    store,
		Logger:   log,

		AnalysisTimeout: cfg.AnalysisTimeout,
	})

	return &Container{
		config:               cfg,
		logger:               log,
		logCloser:            logCloser,
		pool:                 pool,
		imageAnalyzer:        imageAnalyzer,
		repository:           repo,
		imageAnalysisService: svc,
		handler:              transport.NewHandler(svc, cfg, log),
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the service logger
func (c *Container) Logger() *logrus.Logger {
	return c.logger
}

// Close drains the worker pool and releases the result database
func (c *Container) Close() error {
	c.imageAnalyzer.Close()
	c.pool.Close()
	c.pool.Wait()
	err := c.repository.Close()
	if cerr := c.logCloser.Close(); err == nil {
		err = cerr
	}
	return err
}
