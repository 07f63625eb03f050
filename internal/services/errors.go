package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidConfiguration  = errors.New("invalid configuration")
	ErrExtraction            = errors.New("extraction error")
	ErrTransientService      = errors.New("transient service error")
	ErrMalformedResponse     = errors.New("malformed response")
	ErrChunkAnalysisFailed   = errors.New("chunk analysis failed")
	ErrCacheCorruption       = errors.New("cache corruption")
	ErrComputationInProgress = errors.New("computation in progress")
	ErrExternalTool          = errors.New("external tool error")
	ErrNotFound              = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransientService
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorClassifier lets errors outside this package declare their taxonomy kind.
type ErrorClassifier interface {
	ErrorKind() string
}

// Kind returns the stable taxonomy name for err. Markers are checked from the
// most to the least specific so a demoted transient error reports as
// chunk_analysis_failed.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidConfiguration):
		return "invalid_configuration"
	case errors.Is(err, ErrChunkAnalysisFailed):
		return "chunk_analysis_failed"
	case errors.Is(err, ErrExtraction):
		return "extraction_error"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrTransientService):
		return "transient_service_error"
	case errors.Is(err, ErrCacheCorruption):
		return "cache_corruption"
	case errors.Is(err, ErrComputationInProgress):
		return "computation_in_progress"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExternalTool):
		return "external_tool_error"
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		if kind := strings.TrimSpace(classifier.ErrorKind()); kind != "" {
			return kind
		}
	}
	return "unknown"
}

// IsRetryable reports whether err carries the transient marker and has not
// already been demoted to a terminal chunk failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrChunkAnalysisFailed) {
		return false
	}
	return errors.Is(err, ErrTransientService)
}

// IsChunkScoped reports whether err only invalidates a single chunk. Anything
// else aborts the run.
func IsChunkScoped(err error) bool {
	return errors.Is(err, ErrExtraction) ||
		errors.Is(err, ErrChunkAnalysisFailed) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrTransientService)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
