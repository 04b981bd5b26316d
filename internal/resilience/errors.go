package resilience

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"

	"github.com/LavishGent/holdfast/internal/types"
)

func IsCircuitOpen(err error) bool {
	return errors.Is(err, types.ErrCircuitOpen)
}

// IsRetryable is the default retry classifier for cache levels. Local
// admission failures, misses and caller cancellation are final; network
// timeouts and refused or reset connections are not.
func IsRetryable(err error) bool {
	if err == nil || !types.IsRetryable(err) {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, os.ErrDeadlineExceeded):
		return true
	}

	// Anything else is bounded by the attempt cap.
	return true
}
