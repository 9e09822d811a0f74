package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("ANALYSIS_WORKERS", "3")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress())
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, StorageLocal, cfg.StorageBackend)
	assert.Equal(t, 15*time.Second, cfg.ImageFetchTimeout)
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"PORT": "http"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"zero workers", map[string]string{"ANALYSIS_WORKERS": "0"}},
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "s3"}},
		{"azure without credentials", map[string]string{
			"STORAGE_BACKEND": "azure", "AZURE_STORAGE_ACCOUNT": "", "AZURE_STORAGE_KEY": "",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	content := `
analysis:
  crop_top: 10
  crop_bottom: 5
  horizontal_sections: 8
  methods: [sobel]
  heatmaps: false
run:
  root: ./charts
  workers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rf, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "./charts", rf.Run.Root)
	assert.Equal(t, 2, rf.Run.Workers)

	cfg, err := NewAnalysisConfig(rf.Analysis.Params())
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.HorizontalSections())
	assert.False(t, cfg.Heatmaps())
	assert.InDelta(t, 0.05, cfg.CropBottom(), 1e-12)
}

func TestParseRunFile_Defaults(t *testing.T) {
	rf, err := ParseRunFile([]byte(""))
	require.NoError(t, err)

	p := rf.Analysis.Params()
	assert.Equal(t, DefaultHorizontalSections, p.HorizontalSections)
	assert.True(t, p.Heatmaps)
	assert.Equal(t, []string{"laplacian", "sobel", "tenengrad"}, p.Methods)
}

func TestParseRunFile_UnknownKey(t *testing.T) {
	_, err := ParseRunFile([]byte("analysis:\n  crop_middle: 3\n"))
	assert.Error(t, err)
}
