package job

import (
	"errors"
	"fmt"
)

// ConfigError indicates invalid job parameters, fatal at creation and
// surfaced immediately to the caller.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid job config: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid job config: %s", e.Message)
}

// ErrNotFound indicates an unknown or expired job id.
var ErrNotFound = errors.New("job not found")

// ErrNotReady indicates the job has not reached a terminal state yet.
var ErrNotReady = errors.New("job is not completed yet")

// ErrStillRunning indicates an operation that requires a finished job.
var ErrStillRunning = errors.New("job is still running")

// ErrTaskNotRetryable indicates a retry request for a task that is not in a
// terminal error state.
var ErrTaskNotRetryable = errors.New("task is not in an error state")
