package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidReference   = errors.New("invalid video reference")
	ErrSubmissionRejected = errors.New("submission rejected")
	ErrNoCaptions         = errors.New("no captions available")
	ErrJobFailed          = errors.New("transcript job failed")
	ErrPollTimeout        = errors.New("poll timeout")
	ErrUploadRejected     = errors.New("upload rejected")
	ErrNoIndex            = errors.New("no index provided")
	ErrGenerationFailed   = errors.New("generation failed")
	ErrNetworkExhausted   = errors.New("network exhausted")
	ErrValidation         = errors.New("validation error")
	ErrConfiguration      = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrNetworkExhausted
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind reduces a wrapped error to a stable classification token used in logs
// and run records. Unrecognized errors classify as "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidReference):
		return "invalid_reference"
	case errors.Is(err, ErrSubmissionRejected):
		return "submission_rejected"
	case errors.Is(err, ErrNoCaptions):
		return "no_captions"
	case errors.Is(err, ErrJobFailed):
		return "job_failed"
	case errors.Is(err, ErrPollTimeout):
		return "poll_timeout"
	case errors.Is(err, ErrUploadRejected):
		return "upload_rejected"
	case errors.Is(err, ErrNoIndex):
		return "no_index"
	case errors.Is(err, ErrGenerationFailed):
		return "generation_failed"
	case errors.Is(err, ErrNetworkExhausted):
		return "network_exhausted"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "internal"
	}
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
