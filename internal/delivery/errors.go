package delivery

import (
	"context"
	"errors"
	"net"
)

// Error taxonomy for delivery attempts. Transient errors and timeouts retry;
// a rejection is permanent and abandons the event; a storage failure breaks
// the offline guarantee and must surface to the caller.
var (
	ErrTransientNetwork   = errors.New("transient network error")
	ErrTimeout            = errors.New("delivery attempt timed out")
	ErrServerRejected     = errors.New("ingest rejected event")
	ErrStorageFailure     = errors.New("local event store failure")
	ErrDuplicateSuppressed = errors.New("acknowledgment already recorded")
)

// Retryable reports whether the error should re-enter the retry loop rather
// than abandon the event.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrServerRejected) {
		return false
	}
	if errors.Is(err, ErrTransientNetwork) || errors.Is(err, ErrTimeout) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Unknown failures retry; only an explicit rejection is permanent.
	return true
}
