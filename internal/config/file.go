package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// RunFile is the on-disk description of a batch run.
//
//	analysis:
//	  crop_top: 10
//	  crop_bottom: 10
//	  horizontal_sections: 6
//	  methods: [laplacian, tenengrad]
//	  heatmaps: true
//	run:
//	  root: ./charts
//	  workers: 4
type RunFile struct {
	Analysis AnalysisSection `yaml:"analysis"`
	Run      RunSection      `yaml:"run"`
}

// AnalysisSection mirrors AnalysisParams. Pointers distinguish unset keys from zero.
type AnalysisSection struct {
	CropTop            float64  `yaml:"crop_top"`
	CropBottom         float64  `yaml:"crop_bottom"`
	CropLeft           float64  `yaml:"crop_left"`
	CropRight          float64  `yaml:"crop_right"`
	HorizontalSections *int     `yaml:"horizontal_sections"`
	Methods            []string `yaml:"methods"`
	Heatmaps           *bool    `yaml:"heatmaps"`
}

// RunSection holds batch runner overrides
type RunSection struct {
	Root            string `yaml:"root"`
	Workers         int    `yaml:"workers"`
	ImageWorkers    int    `yaml:"image_workers"`
	WorkingFiles    *bool  `yaml:"working_files"`
	LogLevel        string `yaml:"log_level"`
	LogFile         string `yaml:"log_file"`
	MinImageWidth   int    `yaml:"min_image_width"`
	MinImageHeight  int    `yaml:"min_image_height"`
	HeatmapWidth    int    `yaml:"heatmap_width"`
	StorageBackend  string `yaml:"storage_backend"`
	AzureContainer  string `yaml:"azure_container"`
	HistoryDatabase string `yaml:"history_database"`
}

// LoadFile reads and parses a YAML run file
func LoadFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}
	return ParseRunFile(data)
}

// ParseRunFile parses run file contents. Unknown keys are rejected.
func ParseRunFile(data []byte) (*RunFile, error) {
	var rf RunFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse run file: %w", err)
	}
	return &rf, nil
}

// Params converts the analysis section into factory input, applying defaults
// for keys the file leaves out.
func (a AnalysisSection) Params() AnalysisParams {
	p := AnalysisParams{
		CropTop:            a.CropTop,
		CropBottom:         a.CropBottom,
		CropLeft:           a.CropLeft,
		CropRight:          a.CropRight,
		HorizontalSections: DefaultHorizontalSections,
		Methods:            a.Methods,
		Heatmaps:           true,
	}
	if a.HorizontalSections != nil {
		p.HorizontalSections = *a.HorizontalSections
	}
	if a.Heatmaps != nil {
		p.Heatmaps = *a.Heatmaps
	}
	if len(p.Methods) == 0 {
		p.Methods = []string{"laplacian", "sobel", "tenengrad"}
	}
	return p
}
