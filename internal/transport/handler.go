package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-lens-sharpness/internal/config"
	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/internal/service"
	"go-lens-sharpness/pkg/models"
)

type handler struct {
	svc service.ImageAnalysisService
	cfg *config.Config
	log logrus.FieldLogger
}

// NewHandler builds the gin engine serving the analysis API
func NewHandler(svc service.ImageAnalysisService, cfg *config.Config, log logrus.FieldLogger) http.Handler {
	h := &handler{svc: svc, cfg: cfg, log: log}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		requestLogger(log),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(log),
	)

	r.GET("/health", healthCheck)
	r.POST("/analyze", h.analyze)
	r.GET("/results/:id", h.getResult)
	r.GET("/results/:id/report", h.getReport)
	r.GET("/results/:id/heatmap/:method", h.getHeatmap)
	r.GET("/history", h.getHistory)

	return r
}

// analyze accepts either a multipart upload with an "image" file or a JSON body with a URL
func (h *handler) analyze(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	var (
		result *models.AnalysisResult
		err    error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		result, err = h.analyzeUpload(ctx, c)
	} else {
		var req models.AnalysisRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			respondError(c, h.log, http.StatusBadRequest, "invalid request format", bindErr)
			return
		}
		h.log.WithField("url", req.URL).Debug("Fetching image")
		result, err = h.svc.AnalyzeURL(ctx, req)
	}

	if err != nil {
		respondError(c, h.log, determineStatusCode(err), "image analysis failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) analyzeUpload(ctx context.Context, c *gin.Context) (*models.AnalysisResult, error) {
	var form models.UploadRequest
	if err := c.ShouldBind(&form); err != nil {
		return nil, apperrors.NewValidationError("invalid form fields", err)
	}

	header, err := c.FormFile("image")
	if err != nil {
		return nil, apperrors.NewValidationError(`multipart field "image" is required`, err)
	}
	file, err := header.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("cannot open uploaded image", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.NewValidationError("cannot read uploaded image", err)
	}

	return h.svc.AnalyzeUpload(ctx, header.Filename, data, config.AnalysisParams{
		CropTop:            form.CropTop,
		CropBottom:         form.CropBottom,
		CropLeft:           form.CropLeft,
		CropRight:          form.CropRight,
		HorizontalSections: form.HorizontalSections,
		Methods:            splitMethods(form.Methods),
	})
}

func (h *handler) getResult(c *gin.Context) {
	result, err := h.svc.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, determineStatusCode(err), "cannot load result", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) getReport(c *gin.Context) {
	text, err := h.svc.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, determineStatusCode(err), "cannot render report", err)
		return
	}
	c.String(http.StatusOK, text)
}

func (h *handler) getHeatmap(c *gin.Context) {
	data, err := h.svc.Heatmap(c.Request.Context(), c.Param("id"), c.Param("method"))
	if err != nil {
		respondError(c, h.log, determineStatusCode(err), "cannot render heatmap", err)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

func (h *handler) getHistory(c *gin.Context) {
	history, err := h.svc.GetHistory(c.Request.Context(), c.Query("filename"))
	if err != nil {
		respondError(c, h.log, determineStatusCode(err), "cannot load history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": history})
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// splitMethods turns the "sobel,tenengrad" form value into names
func splitMethods(value string) []string {
	var methods []string
	for _, m := range strings.Split(value, ",") {
		if m = strings.TrimSpace(m); m != "" {
			methods = append(methods, m)
		}
	}
	return methods
}

// Middleware and helper functions
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"ip":          c.ClientIP(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err
			respondError(c, log, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return apperrors.GetStatusCode(err)
}

func respondError(c *gin.Context, log logrus.FieldLogger, code int, message string, err error) {
	entry := log.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	resp := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Details = appErr.Details
	}
	c.AbortWithStatusJSON(code, resp)
}
