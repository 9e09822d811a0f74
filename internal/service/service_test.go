package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"go-lens-sharpness/internal/analyzer"
	"go-lens-sharpness/internal/config"
	"go-lens-sharpness/internal/heatmap"
	"go-lens-sharpness/internal/repository"
	"go-lens-sharpness/internal/storage"
)

// checkerPNG encodes a w x h black and white checkerboard with square size cell
func checkerPNG(t *testing.T, w, h, cell int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(&bytes.Buffer{})
	return l
}

func analysisConfig(t *testing.T, heatmaps bool) *config.AnalysisConfig {
	t.Helper()
	cfg, err := config.NewAnalysisConfig(config.AnalysisParams{
		HorizontalSections: 3,
		Methods:            []string{"laplacian", "sobel", "tenengrad"},
		Heatmaps:           heatmaps,
	})
	require.NoError(t, err)
	return cfg
}

func newAnalyzer(t *testing.T) analyzer.ImageAnalyzer {
	t.Helper()
	a, err := analyzer.NewImageAnalyzerWithOptions(analyzer.DefaultOptions().WithWorkers(2).WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func openHistory(t *testing.T) repository.AnalysisRepository {
	t.Helper()
	repo, err := repository.NewBoltAnalysisRepository(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func smallRenderer() *heatmap.Renderer {
	return heatmap.NewRenderer(300)
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC)
}

// writeTree creates files relative to root
func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for name, data := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(root, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func withPrefix(files []string, prefix string) []string {
	var out []string
	for _, f := range files {
		if strings.HasPrefix(f, prefix) {
			out = append(out, f)
		}
	}
	return out
}

// failingStore rejects keys with a given suffix and stores everything else locally
type failingStore struct {
	*storage.LocalArtifactStore
	suffix string
}

func (s failingStore) Save(ctx context.Context, key string, data []byte, contentType string) error {
	if strings.HasSuffix(key, s.suffix) {
		return os.ErrPermission
	}
	return s.LocalArtifactStore.Save(ctx, key, data, contentType)
}
