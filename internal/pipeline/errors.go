package pipeline

import (
	"errors"
	"strings"
)

// ErrContentFiltered is returned when the runtime's safety filter suppressed
// the output, or when the output was a blank frame.
var ErrContentFiltered = errors.New("image generation failed safety check")

// ErrClosed is returned by Generate after Close.
var ErrClosed = errors.New("pipeline closed")

// ModelNotFoundError reports a model identifier the runtime does not carry.
type ModelNotFoundError struct {
	Model     string
	Available []string
}

func (e ModelNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return "model not found: " + e.Model
	}
	return "model not found: " + e.Model + " (available: " + joinShort(e.Available, 8) + ")"
}

// IsModelNotFound reports whether err is a ModelNotFoundError.
func IsModelNotFound(err error) bool {
	var e ModelNotFoundError
	return errors.As(err, &e)
}

func joinShort(items []string, n int) string {
	if len(items) > n {
		return strings.Join(items[:n], ", ") + ", ..."
	}
	return strings.Join(items, ", ")
}
