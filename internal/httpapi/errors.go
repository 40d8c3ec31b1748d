package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"diffusiond/internal/manager"
	"diffusiond/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

const msgContentFiltered = "Image generation failed safety check. Please modify your prompt."

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps service errors to status codes and writes the
// payload. It returns the status written.
func writeServiceError(w http.ResponseWriter, err error) int {
	var ve *manager.ValidationError
	var he HTTPError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "invalid request", Code: http.StatusBadRequest, Detail: ve.Fields})
		return http.StatusBadRequest
	case manager.IsContentFiltered(err):
		writeJSONError(w, http.StatusBadRequest, msgContentFiltered)
		return http.StatusBadRequest
	case manager.IsPipelineNotLoaded(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return http.StatusServiceUnavailable
	case manager.IsTooBusy(err):
		IncrementBackpressure("queue_full")
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
		return http.StatusTooManyRequests
	case errors.As(err, &he):
		writeJSONError(w, he.StatusCode(), he.Error())
		return he.StatusCode()
	default:
		writeJSONError(w, http.StatusInternalServerError, "Image generation failed: "+err.Error())
		return http.StatusInternalServerError
	}
}
