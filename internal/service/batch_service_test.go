package service

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-lens-sharpness/internal/analyzer"
	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/internal/observer"
	"go-lens-sharpness/internal/storage"
	"go-lens-sharpness/pkg/models"
)

func newBatch(t *testing.T, store storage.ArtifactStore, deps BatchDeps) *BatchService {
	t.Helper()
	deps.Loader = storage.NewImageLoader(nil)
	if deps.Analyzer == nil {
		deps.Analyzer = newAnalyzer(t)
	}
	deps.Store = store
	deps.Renderer = smallRenderer()
	deps.Logger = quietLogger()
	s := NewBatchService(deps)
	s.now = fixedNow
	return s
}

func TestBatchService_Run(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{
		"lens_a/chart_f2.8.png": checkerPNG(t, 240, 160, 10),
		"lens_a/chart_f4.jpg":   []byte("this is not a jpeg"),
		"lens_b/notes.txt":      []byte("no charts here"),
	})
	history := openHistory(t)
	s := newBatch(t, storage.NewLocalArtifactStore(root), BatchDeps{History: history})

	summary, err := s.Run(context.Background(), analysisConfig(t, true), BatchOptions{
		Root:         root,
		ImageWorkers: 2,
		WorkingFiles: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "20240309143005", summary.Timestamp)
	assert.Equal(t, 2, summary.Lenses)
	assert.Equal(t, 2, summary.ImagesFound)
	assert.Equal(t, int64(1), summary.ImagesProcessed)
	assert.Equal(t, int64(1), summary.ImagesSkipped)
	assert.Zero(t, summary.ArtifactsFailed)
	// 2 reports + 3 heatmaps + cropped + 6 tiles + overview
	assert.Equal(t, int64(13), summary.ArtifactsWritten)

	files := listFiles(t, root)
	assert.ElementsMatch(t, []string{
		"reports/lens_a/chart_f2.8_analysis_20240309143005.json",
		"reports/lens_a/chart_f2.8_report_20240309143005.txt",
	}, withPrefix(files, "reports/"))
	assert.ElementsMatch(t, []string{
		"heatmaps/lens_a/chart_f2.8_laplacian_heatmap.png",
		"heatmaps/lens_a/chart_f2.8_sobel_heatmap.png",
		"heatmaps/lens_a/chart_f2.8_tenengrad_heatmap.png",
	}, withPrefix(files, "heatmaps/"))
	assert.Contains(t, files, "working_files/lens_a/chart_f2.8_cropped.jpg")
	assert.Contains(t, files, "working_files/lens_a/chart_f2.8_overview_20240309143005.jpg")
	assert.Contains(t, files, "working_files/lens_a/tiles/chart_f2.8_B3_20240309143005.jpg")
	assert.Len(t, withPrefix(files, "working_files/lens_a/tiles/"), 6)

	data, err := os.ReadFile(filepath.Join(root, "reports", "lens_a", "chart_f2.8_analysis_20240309143005.json"))
	require.NoError(t, err)
	var result models.AnalysisResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "chart_f2.8.png", result.OriginalFilename)
	require.Len(t, result.Tiles, 6)
	assert.Equal(t, "A1", result.Tiles[0].Coordinate)
	assert.Equal(t, "chart_f2.8_A1_20240309143005.jpg", result.Tiles[0].Filename)
	for _, tile := range result.Tiles {
		for _, v := range tile.Scores {
			assert.GreaterOrEqual(t, v, 1.0)
			assert.LessOrEqual(t, v, 100.0)
		}
	}

	heat, err := os.ReadFile(filepath.Join(root, "heatmaps", "lens_a", "chart_f2.8_sobel_heatmap.png"))
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(heat))
	require.NoError(t, err)
	assert.Equal(t, 300, decoded.Bounds().Dx())
	assert.Equal(t, 200, decoded.Bounds().Dy())

	stored, err := history.GetAnalysisHistory(context.Background(), "chart_f2.8.png")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, result.ID, stored[0].ID)

	// a second run skips the output directories it created
	again, err := s.Run(context.Background(), analysisConfig(t, false), BatchOptions{Root: root})
	require.NoError(t, err)
	assert.Equal(t, 2, again.Lenses)
	assert.Equal(t, int64(2), again.ArtifactsWritten)
}

func TestBatchService_ArtifactFailureIsIsolated(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{
		"lens_a/chart_f2.png": checkerPNG(t, 128, 128, 8),
		"lens_a/chart_f4.png": checkerPNG(t, 128, 128, 16),
	})
	store := failingStore{LocalArtifactStore: storage.NewLocalArtifactStore(root), suffix: "_heatmap.png"}
	metrics := observer.NewMetricsObserver()
	s := newBatch(t, store, BatchDeps{Observers: []observer.Observer{metrics}})

	summary, err := s.Run(context.Background(), analysisConfig(t, true), BatchOptions{Root: root})
	require.NoError(t, err)

	assert.Equal(t, int64(2), summary.ImagesProcessed)
	assert.Equal(t, int64(6), summary.ArtifactsFailed)
	assert.Equal(t, int64(4), summary.ArtifactsWritten)
	assert.Equal(t, summary.ArtifactsFailed, metrics.GetMetrics().ArtifactsFailed)

	files := listFiles(t, root)
	assert.Len(t, withPrefix(files, "reports/lens_a/"), 4)
	assert.Empty(t, withPrefix(files, "heatmaps/"))
}

func TestBatchService_Errors(t *testing.T) {
	s := newBatch(t, storage.NewLocalArtifactStore(t.TempDir()), BatchDeps{})

	_, err := s.Run(context.Background(), nil, BatchOptions{Root: t.TempDir()})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))

	_, err = s.Run(context.Background(), analysisConfig(t, false), BatchOptions{Root: t.TempDir()})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))

	_, err = NewBatchService(BatchDeps{}).Run(context.Background(), analysisConfig(t, false), BatchOptions{Root: t.TempDir()})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}

func TestBatchService_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{
		"lens_a/chart_f2.png": checkerPNG(t, 128, 128, 8),
	})
	s := newBatch(t, storage.NewLocalArtifactStore(root), BatchDeps{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := s.Run(ctx, analysisConfig(t, true), BatchOptions{Root: root})
	require.Error(t, err)
	assert.Zero(t, summary.ImagesProcessed)
	assert.Empty(t, withPrefix(listFiles(t, root), "reports/"))
}

func TestBatchService_RunCountsTileJobs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{
		"lens_a/chart_f2.8.png": checkerPNG(t, 240, 160, 10),
		"lens_a/chart_f5.6.png": checkerPNG(t, 240, 160, 20),
	})

	pool := analyzer.NewWorkerPool(2)
	pool.Start()
	t.Cleanup(pool.Close)
	a, err := analyzer.NewImageAnalyzerWithOptions(analyzer.DefaultOptions().WithPool(pool).WithLogger(quietLogger()))
	require.NoError(t, err)

	s := newBatch(t, storage.NewLocalArtifactStore(root), BatchDeps{Analyzer: a, Pool: pool})
	summary, err := s.Run(context.Background(), analysisConfig(t, false), BatchOptions{Root: root, ImageWorkers: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(2), summary.ImagesProcessed)
	// one pool job per tile, 6 tiles per image
	assert.Equal(t, int64(12), summary.TileJobs)
}
