package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	apperrors "go-lens-sharpness/internal/errors"
)

// Content types of the artifacts written by the analysis runs
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypePNG  = "image/png"
	ContentTypeJPEG = "image/jpeg"
)

// ArtifactStore persists reports, heatmaps and working files under
// slash-separated keys such as "reports/lens_a/chart_f4_analysis_<ts>.json".
type ArtifactStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	// Location returns where a key is stored, for logging
	Location(key string) string
}

// LocalArtifactStore writes artifacts below a root directory
type LocalArtifactStore struct {
	root string
}

// NewLocalArtifactStore creates a filesystem store rooted at root
func NewLocalArtifactStore(root string) *LocalArtifactStore {
	return &LocalArtifactStore{root: root}
}

// Save writes data to root/key, creating parent directories
func (s *LocalArtifactStore) Save(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewPersistenceError("save cancelled", err)
	}
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.NewPersistenceError("cannot create directory for "+key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.NewPersistenceError("cannot write "+key, err)
	}
	return nil
}

// Location returns the filesystem path of key
func (s *LocalArtifactStore) Location(key string) string {
	path, err := s.path(key)
	if err != nil {
		return key
	}
	return path
}

func (s *LocalArtifactStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", apperrors.NewPersistenceError("invalid artifact key "+key, nil)
	}
	return filepath.Join(s.root, clean), nil
}
