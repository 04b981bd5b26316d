package holdfast

import (
	"github.com/LavishGent/holdfast/internal/types"
)

type (
	// CircuitOpenError is returned without running the operation while its
	// breaker is open.
	CircuitOpenError = types.CircuitOpenError
	// BulkheadRejectedError is returned when a pool's queue is full.
	BulkheadRejectedError = types.BulkheadRejectedError
	// BulkheadTimeoutError is returned when no pool slot freed up in time.
	BulkheadTimeoutError = types.BulkheadTimeoutError
	// OperationTimeoutError is returned when an operation outlives its
	// breaker's timeout.
	OperationTimeoutError = types.OperationTimeoutError
	// OperationFailedError wraps the error an operation returned.
	OperationFailedError = types.OperationFailedError
	// CacheBackendError reports a failure of one cache level.
	CacheBackendError = types.CacheBackendError
)

var (
	// ErrCacheMiss indicates that a requested key was not found in any level.
	ErrCacheMiss = types.ErrCacheMiss
	// ErrBackendUnavailable indicates that a cache level could not be reached.
	ErrBackendUnavailable = types.ErrBackendUnavailable
	// ErrCircuitOpen indicates that a circuit breaker is open.
	ErrCircuitOpen = types.ErrCircuitOpen
	// ErrClosed indicates that the orchestrator has been closed.
	ErrClosed = types.ErrClosed
	// ErrBulkheadFull indicates that a pool and its queue are at capacity.
	ErrBulkheadFull = types.ErrBulkheadFull
	// ErrBulkheadTimeout indicates that waiting for a pool slot timed out.
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
	// ErrOperationTimeout indicates that an operation timed out.
	ErrOperationTimeout = types.ErrOperationTimeout
	// ErrOperationFailed indicates that an operation returned an error.
	ErrOperationFailed = types.ErrOperationFailed
	// ErrSerializationFailed indicates that a value could not be encoded.
	ErrSerializationFailed = types.ErrSerializationFailed
	// ErrInvalidKey indicates that a cache key is invalid.
	ErrInvalidKey = types.ErrInvalidKey
	// ErrShutdownTimeout indicates that Stop or Close ran out of time.
	ErrShutdownTimeout = types.ErrShutdownTimeout
)

// IsCacheMiss returns true if the error is a cache miss.
func IsCacheMiss(err error) bool {
	return types.IsCacheMiss(err)
}

// IsCircuitOpen returns true if the error indicates an open circuit.
func IsCircuitOpen(err error) bool {
	return types.IsCircuitOpen(err)
}

// IsBulkheadError returns true for pool rejections and pool timeouts.
func IsBulkheadError(err error) bool {
	return types.IsBulkheadError(err)
}

// IsOperationTimeout returns true if the operation outlived its timeout.
func IsOperationTimeout(err error) bool {
	return types.IsOperationTimeout(err)
}

// IsBackendUnavailable returns true if a cache level could not be reached.
func IsBackendUnavailable(err error) bool {
	return types.IsBackendUnavailable(err)
}

// IsInvalidKey returns true if the error is a key validation failure.
func IsInvalidKey(err error) bool {
	return types.IsInvalidKey(err)
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	return types.IsRetryable(err)
}
