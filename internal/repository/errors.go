package repository

import "errors"

var (
	// ErrAnalysisNotFound indicates the analysis result was not found
	ErrAnalysisNotFound = errors.New("analysis result not found")

	// ErrRepositoryUnavailable indicates the repository is closed or unreachable
	ErrRepositoryUnavailable = errors.New("repository unavailable")

	// ErrInvalidResult indicates a result that cannot be stored
	ErrInvalidResult = errors.New("invalid analysis result")
)
