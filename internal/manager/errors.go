package manager

import (
	"errors"
	"net/http"
	"strings"

	"diffusiond/internal/pipeline"
	"diffusiond/pkg/types"
)

// ErrPipelineNotLoaded is returned by Generate before Load succeeds or after Close.
var ErrPipelineNotLoaded = errors.New("Pipeline not loaded")

// IsPipelineNotLoaded reports whether err indicates a missing pipeline (return 503).
func IsPipelineNotLoaded(err error) bool { return errors.Is(err, ErrPipelineNotLoaded) }

// IsContentFiltered reports whether the safety filter blocked the output.
func IsContentFiltered(err error) bool { return errors.Is(err, pipeline.ErrContentFiltered) }

// tooBusyError signals queue overflow for 429 mapping.
type tooBusyError struct{ depth int }

func (e tooBusyError) Error() string { return "too busy: generation queue full" }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// ValidationError lists invalid request fields.
type ValidationError struct {
	Fields []types.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Msg)
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// GenerationError wraps an unexpected inference failure.
type GenerationError struct{ Err error }

func (e *GenerationError) Error() string   { return "Image generation failed: " + e.Err.Error() }
func (e *GenerationError) Unwrap() error   { return e.Err }
func (e *GenerationError) StatusCode() int { return http.StatusInternalServerError }
