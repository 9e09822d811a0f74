package service

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/pkg/validation"
)

// Output directories created under the run root; never treated as lenses
const (
	ReportsDir      = "reports"
	HeatmapsDir     = "heatmaps"
	WorkingFilesDir = "working_files"
)

var outputDirs = map[string]bool{
	ReportsDir:      true,
	HeatmapsDir:     true,
	WorkingFilesDir: true,
}

// LensDir is one lens sub-directory and its chart images in sorted order
type LensDir struct {
	Name   string
	Path   string
	Images []string
}

// DiscoverLenses lists the lens directories below root. Output and hidden
// directories are skipped; a lens without chart images is still returned
// so the caller can warn about it.
func DiscoverLenses(root string) ([]LensDir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, apperrors.NewConfigurationError("cannot access root directory "+root, err)
	}
	if !info.IsDir() {
		return nil, apperrors.NewConfigurationError(root+" is not a directory", nil)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, apperrors.NewConfigurationError("cannot list root directory "+root, err)
	}

	var lenses []LensDir
	for _, e := range entries {
		if !e.IsDir() || outputDirs[e.Name()] || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, e.Name())
		images, err := chartImages(dir)
		if err != nil {
			return nil, apperrors.NewConfigurationError("cannot list lens directory "+dir, err)
		}
		lenses = append(lenses, LensDir{Name: e.Name(), Path: dir, Images: images})
	}

	sort.Slice(lenses, func(i, j int) bool { return lenses[i].Name < lenses[j].Name })
	return lenses, nil
}

func chartImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var images []string
	for _, e := range entries {
		if e.Type().IsRegular() && validation.IsChartExtension(filepath.Ext(e.Name())) {
			images = append(images, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(images)
	return images, nil
}

// Stem returns the file name without directory and extension
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseAperture returns the part of the stem after the last underscore,
// e.g. "f2.8" for "summicron_50_f2.8". Stems without one are returned whole.
func ParseAperture(stem string) string {
	if i := strings.LastIndex(stem, "_"); i >= 0 && i < len(stem)-1 {
		return stem[i+1:]
	}
	return stem
}
