package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"lensd/internal/capture"
	"lensd/internal/daemon"
	"lensd/internal/inference"
	"lensd/internal/session"
	"lensd/internal/store"
	"lensd/internal/textdetect"
	"lensd/internal/transcribe"
	"lensd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusFor maps well-known service errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case session.IsModelNotFound(err), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case inference.IsNotReady(err), session.IsDependencyUnavailable(err),
		errors.Is(err, session.ErrNoModelAssets), errors.Is(err, inference.ErrClosed),
		errors.Is(err, inference.ErrNoTranscriber), errors.Is(err, daemon.ErrNoCamera),
		errors.Is(err, capture.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, inference.ErrEmptyInput), errors.Is(err, textdetect.ErrInvalidImage),
		errors.Is(err, transcribe.ErrNoAudio), errors.Is(err, transcribe.ErrEmptyTranscript):
		return http.StatusBadRequest
	case errors.Is(err, inference.ErrNoThread), errors.Is(err, daemon.ErrCameraStopped),
		errors.Is(err, daemon.ErrNoPhoto), errors.Is(err, context.Canceled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status and returns the status.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) int {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logError(r, "request failed", err)
	}
	writeJSONError(w, status, err.Error())
	return status
}
