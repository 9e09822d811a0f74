package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"go-lens-sharpness/internal/analyzer"
	"go-lens-sharpness/internal/config"
	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/internal/heatmap"
	"go-lens-sharpness/internal/report"
	"go-lens-sharpness/internal/repository"
	"go-lens-sharpness/internal/storage"
	"go-lens-sharpness/pkg/models"
	"go-lens-sharpness/pkg/validation"
)

// ImageAnalysisService analyzes single charts on request and serves stored results
type ImageAnalysisService interface {
	// AnalyzeUpload analyzes an uploaded image
	AnalyzeUpload(ctx context.Context, filename string, data []byte, params config.AnalysisParams) (*models.AnalysisResult, error)
	// AnalyzeURL fetches and analyzes a remote image
	AnalyzeURL(ctx context.Context, request models.AnalysisRequest) (*models.AnalysisResult, error)

	GetResult(ctx context.Context, id string) (*models.AnalysisResult, error)
	GetHistory(ctx context.Context, filename string) ([]*models.AnalysisResult, error)
	// Report returns the plain-text report of a stored result
	Report(ctx context.Context, id string) (string, error)
	// Heatmap returns the PNG heatmap of one method of a stored result
	Heatmap(ctx context.Context, id string, method string) ([]byte, error)

	// Common validation
	ValidateImageURL(imageURL string) error
}

// AnalysisDeps are the collaborators of the analysis service.
// Repo and Store are optional.
type AnalysisDeps struct {
	Fetcher  storage.ImageFetcher
	Loader   *storage.ImageLoader
	Analyzer analyzer.ImageAnalyzer
	Repo     repository.AnalysisRepository
	Store    storage.ArtifactStore
	Renderer *heatmap.Renderer
	Logger   logrus.FieldLogger
	// AnalysisTimeout bounds one Analyze call; zero means no limit
	AnalysisTimeout time.Duration
}

// imageAnalysisService implements ImageAnalysisService with a single analyzer
type imageAnalysisService struct {
	fetcher      storage.ImageFetcher
	loader       *storage.ImageLoader
	analyzer     analyzer.ImageAnalyzer
	repo         repository.AnalysisRepository
	store        storage.ArtifactStore
	builder      *report.Builder
	renderer     *heatmap.Renderer
	urlValidator *validation.URLValidator
	log          logrus.FieldLogger
	timeout      time.Duration
}

// NewImageAnalysisService creates a new image analysis service
func NewImageAnalysisService(deps AnalysisDeps) ImageAnalysisService {
	if deps.Loader == nil {
		deps.Loader = storage.NewImageLoader(nil)
	}
	if deps.Renderer == nil {
		deps.Renderer = heatmap.NewRenderer(0)
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &imageAnalysisService{
		fetcher:      deps.Fetcher,
		loader:       deps.Loader,
		analyzer:     deps.Analyzer,
		repo:         deps.Repo,
		store:        deps.Store,
		builder:      report.NewBuilder(),
		renderer:     deps.Renderer,
		urlValidator: validation.NewURLValidator(),
		log:          deps.Logger,
		timeout:      deps.AnalysisTimeout,
	}
}

// AnalyzeUpload analyzes an uploaded image
func (s *imageAnalysisService) AnalyzeUpload(ctx context.Context, filename string, data []byte, params config.AnalysisParams) (*models.AnalysisResult, error) {
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("uploaded image is empty", nil)
	}
	params.HorizontalSections = sectionsOrDefault(params.HorizontalSections)
	params.Methods = methodsOrDefault(params.Methods)
	cfg, err := config.NewAnalysisConfig(params)
	if err != nil {
		return nil, err
	}

	img, _, err := s.loader.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, withImageDetails(err, path.Base(filename))
	}
	return s.analyze(ctx, img, path.Base(filename), cfg)
}

// AnalyzeURL fetches and analyzes a remote image
func (s *imageAnalysisService) AnalyzeURL(ctx context.Context, request models.AnalysisRequest) (*models.AnalysisResult, error) {
	if err := s.ValidateImageURL(request.URL); err != nil {
		return nil, err
	}
	cfg, err := config.NewAnalysisConfig(config.AnalysisParams{
		CropTop:            request.CropTop,
		CropBottom:         request.CropBottom,
		CropLeft:           request.CropLeft,
		CropRight:          request.CropRight,
		HorizontalSections: sectionsOrDefault(request.HorizontalSections),
		Methods:            methodsOrDefault(request.Methods),
	})
	if err != nil {
		return nil, err
	}

	img, _, err := s.fetcher.FetchImage(ctx, request.URL)
	if err != nil {
		return nil, withImageDetails(err, request.URL)
	}
	return s.analyze(ctx, img, filenameFromURL(request.URL), cfg)
}

func (s *imageAnalysisService) analyze(ctx context.Context, img image.Image, filename string, cfg *config.AnalysisConfig) (*models.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewNetworkError("request cancelled", err)
	}

	outcome, err := s.runAnalysis(ctx, img, filename, cfg)
	if err != nil {
		return nil, err
	}
	result := s.builder.Build(filename, cfg, outcome)

	if s.repo != nil {
		if err := s.repo.SaveAnalysisResult(ctx, result); err != nil {
			// the result is still returned
			s.log.WithError(err).WithField("id", result.ID).Error("Failed to store analysis result")
		}
	}
	s.saveReports(ctx, result)

	s.log.WithFields(logrus.Fields{
		"id":             result.ID,
		"image":          filename,
		"tiles":          len(result.Tiles),
		"degenerate":     outcome.DegenerateCount(),
		"average_scores": result.AverageScores,
		"duration_ms":    outcome.Duration.Milliseconds(),
	}).Info("Image analysis completed")
	return result, nil
}

// runAnalysis stops waiting once ctx or the analysis timeout expires.
// The tile jobs already queued still run to completion.
func (s *imageAnalysisService) runAnalysis(ctx context.Context, img image.Image, filename string, cfg *config.AnalysisConfig) (*analyzer.Outcome, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	type analysis struct {
		outcome *analyzer.Outcome
		err     error
	}
	done := make(chan analysis, 1)
	go func() {
		outcome, err := s.analyzer.Analyze(img, cfg, filename)
		done <- analysis{outcome, err}
	}()

	select {
	case a := <-done:
		return a.outcome, a.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewInternalError("analysis did not finish in time", ctx.Err())
		}
		return nil, apperrors.NewNetworkError("request cancelled", ctx.Err())
	}
}

// saveReports writes the JSON and text report under reports/api/
func (s *imageAnalysisService) saveReports(ctx context.Context, result *models.AnalysisResult) {
	if s.store == nil {
		return
	}
	stem := strings.TrimSuffix(result.OriginalFilename, path.Ext(result.OriginalFilename))
	base := path.Join(ReportsDir, "api", fmt.Sprintf("%s_%s", stem, result.ID))

	data, err := report.JSON(result)
	if err == nil {
		err = s.store.Save(ctx, base+"_analysis.json", data, storage.ContentTypeJSON)
	}
	if err == nil {
		err = s.store.Save(ctx, base+"_report.txt", []byte(report.Text(result)), storage.ContentTypeText)
	}
	if err != nil {
		s.log.WithError(err).WithField("id", result.ID).Error("Failed to save analysis report")
	}
}

// GetResult returns a stored result
func (s *imageAnalysisService) GetResult(ctx context.Context, id string) (*models.AnalysisResult, error) {
	if s.repo == nil {
		return nil, apperrors.NewNotFoundError("result history is disabled", nil)
	}
	return s.repo.GetAnalysisResult(ctx, id)
}

// GetHistory returns every stored result of one original filename
func (s *imageAnalysisService) GetHistory(ctx context.Context, filename string) ([]*models.AnalysisResult, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, apperrors.NewValidationError("filename is required", nil)
	}
	if s.repo == nil {
		return []*models.AnalysisResult{}, nil
	}
	return s.repo.GetAnalysisHistory(ctx, filename)
}

// Report renders the text report of a stored result
func (s *imageAnalysisService) Report(ctx context.Context, id string) (string, error) {
	result, err := s.GetResult(ctx, id)
	if err != nil {
		return "", err
	}
	return report.Text(result), nil
}

// Heatmap renders one method's heatmap of a stored result
func (s *imageAnalysisService) Heatmap(ctx context.Context, id string, method string) ([]byte, error) {
	m := models.Method(strings.ToLower(method))
	if !m.IsValid() {
		return nil, apperrors.NewValidationError("unknown analysis method "+method, nil)
	}
	result, err := s.GetResult(ctx, id)
	if err != nil {
		return nil, err
	}
	g, err := heatmap.FromResult(result, m)
	if err != nil {
		return nil, err
	}
	return s.renderer.RenderPNG(g, result.OriginalFilename)
}

// ValidateImageURL validates the image URL
func (s *imageAnalysisService) ValidateImageURL(imageURL string) error {
	return s.urlValidator.ValidateImageURL(imageURL)
}

// withImageDetails names the offending image on application errors
func withImageDetails(err error, image string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.WithDetails("image: " + image)
	}
	return err
}

func sectionsOrDefault(n int) int {
	if n == 0 {
		return config.DefaultHorizontalSections
	}
	return n
}

func methodsOrDefault(methods []string) []string {
	if len(methods) == 0 {
		return models.MethodNames(models.AllMethods())
	}
	return methods
}

// filenameFromURL uses the last path segment of the URL as the original filename
func filenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || path.Base(u.Path) == "/" || path.Base(u.Path) == "." {
		return raw
	}
	return path.Base(u.Path)
}
