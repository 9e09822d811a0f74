package factory

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"go-lens-sharpness/internal/analyzer"
	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/internal/storage"
)

// StorageType represents different artifact storage backends
type StorageType string

const (
	// LocalStorage writes artifacts below a directory
	LocalStorage StorageType = "local"
	// AzureStorage uploads artifacts to an Azure Blob container
	AzureStorage StorageType = "azure"
)

// StorageSettings carries what the backends need
type StorageSettings struct {
	// Root directory for the local backend
	Root string

	AzureAccountName string
	AzureAccountKey  string
	AzureContainer   string
	// Blob name prefix, usually the run id or lens root name
	AzurePrefix string
}

// StorageFactory creates artifact stores
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ArtifactStore, error)
}

type storageFactory struct {
	settings StorageSettings
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(settings StorageSettings) StorageFactory {
	return &storageFactory{settings: settings}
}

// CreateStorage creates a storage implementation based on the specified type.
// An empty type selects the local backend.
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ArtifactStore, error) {
	switch StorageType(strings.ToLower(string(storageType))) {
	case LocalStorage, "":
		if f.settings.Root == "" {
			return nil, apperrors.NewConfigurationError("local storage needs a root directory", nil)
		}
		return storage.NewLocalArtifactStore(f.settings.Root), nil
	case AzureStorage:
		s := f.settings
		if s.AzureAccountName == "" || s.AzureAccountKey == "" || s.AzureContainer == "" {
			return nil, apperrors.NewConfigurationError("azure storage needs account name, key and container", nil)
		}
		store, err := storage.NewAzureArtifactStore(s.AzureAccountName, s.AzureAccountKey, s.AzureContainer, s.AzurePrefix)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("unsupported storage type: %s", storageType), nil)
	}
}

// AnalyzerFactory creates image analyzers
type AnalyzerFactory interface {
	CreateAnalyzer() (analyzer.ImageAnalyzer, error)
}

type analyzerFactory struct {
	pool   *analyzer.WorkerPool
	logger logrus.FieldLogger
}

// NewAnalyzerFactory creates analyzers that share pool. A nil pool gives
// each analyzer its own.
func NewAnalyzerFactory(pool *analyzer.WorkerPool, logger logrus.FieldLogger) AnalyzerFactory {
	return &analyzerFactory{pool: pool, logger: logger}
}

// CreateAnalyzer creates an analyzer with the default calibration ranges
func (f *analyzerFactory) CreateAnalyzer() (analyzer.ImageAnalyzer, error) {
	opts := analyzer.DefaultOptions()
	if f.pool != nil {
		opts = opts.WithPool(f.pool)
	}
	if f.logger != nil {
		opts = opts.WithLogger(f.logger)
	}
	return analyzer.NewImageAnalyzerWithOptions(opts)
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	AnalyzerFactory AnalyzerFactory
	StorageFactory  StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(settings StorageSettings, pool *analyzer.WorkerPool, logger logrus.FieldLogger) *ComponentFactory {
	return &ComponentFactory{
		AnalyzerFactory: NewAnalyzerFactory(pool, logger),
		StorageFactory:  NewStorageFactory(settings),
	}
}
