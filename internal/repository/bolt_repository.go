package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/pkg/models"
)

var (
	resultsBucket = []byte("results")
	historyBucket = []byte("history")
)

// BoltAnalysisRepository keeps analysis results in a bbolt file.
// Results are JSON encoded by ID; the history bucket holds one nested
// bucket per original filename mapping result IDs to nothing.
type BoltAnalysisRepository struct {
	db *bolt.DB
}

// NewBoltAnalysisRepository opens (or creates) the database at path
func NewBoltAnalysisRepository(path string) (*BoltAnalysisRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.NewPersistenceError("cannot create database directory", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, apperrors.NewPersistenceError("cannot open result database "+path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{resultsBucket, historyBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, apperrors.NewPersistenceError("cannot initialise result database", err)
	}

	return &BoltAnalysisRepository{db: db}, nil
}

// SaveAnalysisResult stores result, replacing any record with the same ID
func (r *BoltAnalysisRepository) SaveAnalysisResult(ctx context.Context, result *models.AnalysisResult) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewPersistenceError("save cancelled", err)
	}
	if result == nil || result.ID == "" || result.OriginalFilename == "" {
		return apperrors.NewValidationError("result must have an id and a filename", ErrInvalidResult)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return apperrors.NewPersistenceError("cannot encode result", err)
	}

	err = r.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(resultsBucket).Put([]byte(result.ID), data); err != nil {
			return err
		}
		files, err := tx.Bucket(historyBucket).CreateBucketIfNotExists([]byte(result.OriginalFilename))
		if err != nil {
			return err
		}
		return files.Put([]byte(result.ID), nil)
	})
	if err != nil {
		return r.wrap("cannot store result "+result.ID, err)
	}
	return nil
}

// GetAnalysisResult retrieves the result stored under id
func (r *BoltAnalysisRepository) GetAnalysisResult(ctx context.Context, id string) (*models.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewPersistenceError("lookup cancelled", err)
	}

	var result *models.AnalysisResult
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		result, err = decode(tx.Bucket(resultsBucket).Get([]byte(id)))
		return err
	})
	if errors.Is(err, ErrAnalysisNotFound) {
		return nil, apperrors.NewNotFoundError("no analysis result with id "+id, err)
	}
	if err != nil {
		return nil, r.wrap("cannot read result "+id, err)
	}
	return result, nil
}

// GetAnalysisHistory returns results for filename sorted by timestamp.
// An unknown filename yields an empty slice.
func (r *BoltAnalysisRepository) GetAnalysisHistory(ctx context.Context, filename string) ([]*models.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewPersistenceError("lookup cancelled", err)
	}

	history := []*models.AnalysisResult{}
	err := r.db.View(func(tx *bolt.Tx) error {
		files := tx.Bucket(historyBucket).Bucket([]byte(filename))
		if files == nil {
			return nil
		}
		results := tx.Bucket(resultsBucket)
		return files.ForEach(func(id, _ []byte) error {
			result, err := decode(results.Get(id))
			if err != nil {
				return fmt.Errorf("result %s: %w", id, err)
			}
			history = append(history, result)
			return nil
		})
	})
	if err != nil {
		return nil, r.wrap("cannot read history for "+filename, err)
	}

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})
	return history, nil
}

// Close releases the database file lock
func (r *BoltAnalysisRepository) Close() error {
	return r.db.Close()
}

func (r *BoltAnalysisRepository) wrap(message string, err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		err = fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	return apperrors.NewPersistenceError(message, err)
}

func decode(data []byte) (*models.AnalysisResult, error) {
	if data == nil {
		return nil, ErrAnalysisNotFound
	}
	var result models.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
