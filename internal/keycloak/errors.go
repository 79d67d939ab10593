package keycloak

import (
	"errors"
	"fmt"
	"time"
)

// StartError indicates that a server instance could not be brought up: the
// distribution is missing, a pinned port is busy, preparation of the
// instance directory failed, or the process terminated right after spawning.
type StartError struct {
	// Port is the HTTP port involved, if the failure is port related.
	Port int

	// LogPath points at the captured server output, when a process got far
	// enough to produce any.
	LogPath string

	// Reason is a short human-readable cause.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface for StartError.
func (e *StartError) Error() string {
	msg := "failed to start Keycloak"
	if e.Port != 0 {
		msg = fmt.Sprintf("%s on port %d", msg, e.Port)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.LogPath != "" {
		msg = fmt.Sprintf("%s (check logs at %s)", msg, e.LogPath)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *StartError) Unwrap() error {
	return e.Err
}

// IsStart checks if an error is a StartError using error unwrapping.
func IsStart(err error) bool {
	var startErr *StartError
	return errors.As(err, &startErr)
}

// ReadyTimeoutError indicates that a spawned server process did not answer
// its readiness probes before the budget ran out, or died while being
// polled. The two cases are distinguished by Died.
type ReadyTimeoutError struct {
	// Timeout is the readiness budget that was exhausted.
	Timeout time.Duration

	// HealthURL is the probe that never succeeded.
	HealthURL string

	// LogPath points at the captured server output.
	LogPath string

	// Died is true when the process exited during polling rather than
	// merely staying unready.
	Died bool
}

// Error implements the error interface for ReadyTimeoutError.
func (e *ReadyTimeoutError) Error() string {
	if e.Died {
		return fmt.Sprintf("Keycloak process died while waiting for readiness (check logs at %s)", e.LogPath)
	}
	return fmt.Sprintf("Keycloak did not become ready within %s at %s (check logs at %s)",
		e.Timeout, e.HealthURL, e.LogPath)
}

// IsReadyTimeout checks if an error is a ReadyTimeoutError using error
// unwrapping.
func IsReadyTimeout(err error) bool {
	var timeoutErr *ReadyTimeoutError
	return errors.As(err, &timeoutErr)
}
