package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/autoscore/internal/job"
)

// HTTPStatus returns the appropriate HTTP status code for an error
// surfaced by the job layer.
func HTTPStatus(err error) int {
	var cerr *job.ConfigError
	if errors.As(err, &cerr) {
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, job.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, job.ErrNotReady),
		errors.Is(err, job.ErrStillRunning),
		errors.Is(err, job.ErrTaskNotRetryable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
