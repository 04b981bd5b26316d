package types

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrCacheMiss           = errors.New("holdfast: key not found")
	ErrBackendUnavailable  = errors.New("holdfast: cache backend unavailable")
	ErrCircuitOpen         = errors.New("holdfast: circuit breaker open")
	ErrClosed              = errors.New("holdfast: orchestrator closed")
	ErrBulkheadFull        = errors.New("holdfast: bulkhead at capacity")
	ErrBulkheadTimeout     = errors.New("holdfast: bulkhead timeout")
	ErrOperationTimeout    = errors.New("holdfast: operation timed out")
	ErrOperationFailed     = errors.New("holdfast: operation failed")
	ErrSerializationFailed = errors.New("holdfast: serialization failed")
	ErrInvalidKey          = errors.New("holdfast: invalid key")
	ErrShutdownTimeout     = errors.New("holdfast: shutdown timeout waiting for background operations")
)

// CircuitOpenError is returned without invoking the operation while its
// breaker is OPEN.
type CircuitOpenError struct {
	NextAttempt time.Time
	Operation   string
}

func (e *CircuitOpenError) Error() string {
	if e.NextAttempt.IsZero() {
		return fmt.Sprintf("circuit %q open", e.Operation)
	}
	return fmt.Sprintf("circuit %q open until %s", e.Operation, e.NextAttempt.Format(time.RFC3339Nano))
}

func (e *CircuitOpenError) Unwrap() error {
	return ErrCircuitOpen
}

// BulkheadRejectedError means the pool queue was full; the caller never waited.
type BulkheadRejectedError struct {
	Pool     string
	Queued   int
	MaxQueue int
}

func (e *BulkheadRejectedError) Error() string {
	return fmt.Sprintf("bulkhead %q rejected: queue %d/%d", e.Pool, e.Queued, e.MaxQueue)
}

func (e *BulkheadRejectedError) Unwrap() error {
	return ErrBulkheadFull
}

// BulkheadTimeoutError means no slot freed up within the effective wait.
type BulkheadTimeoutError struct {
	Pool   string
	Waited time.Duration
}

func (e *BulkheadTimeoutError) Error() string {
	return fmt.Sprintf("bulkhead %q: no slot after %s", e.Pool, e.Waited)
}

func (e *BulkheadTimeoutError) Unwrap() error {
	return ErrBulkheadTimeout
}

type OperationTimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *OperationTimeoutError) Error() string {
	return fmt.Sprintf("operation %q exceeded %s", e.Operation, e.Timeout)
}

func (e *OperationTimeoutError) Unwrap() error {
	return ErrOperationTimeout
}

// OperationFailedError preserves the cause returned by the wrapped operation.
// errors.Is matches both ErrOperationFailed and the cause.
type OperationFailedError struct {
	Cause     error
	Operation string
}

func (e *OperationFailedError) Error() string {
	return fmt.Sprintf("operation %q failed: %v", e.Operation, e.Cause)
}

func (e *OperationFailedError) Unwrap() []error {
	return []error{ErrOperationFailed, e.Cause}
}

// CacheBackendError reports a failure of a single cache level. It never
// reaches callers of the cache manager's read path.
type CacheBackendError struct {
	Err   error
	Op    string
	Key   string
	Level string
}

func (e *CacheBackendError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache %s on %s [%s]: %v", e.Op, e.Level, e.Key, e.Err)
	}
	return fmt.Sprintf("cache %s on %s: %v", e.Op, e.Level, e.Err)
}

func (e *CacheBackendError) Unwrap() []error {
	return []error{ErrBackendUnavailable, e.Err}
}

func NewCacheBackendError(op, key, level string, err error) *CacheBackendError {
	return &CacheBackendError{
		Op:    op,
		Key:   key,
		Level: level,
		Err:   err,
	}
}

func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

func IsBulkheadError(err error) bool {
	return errors.Is(err, ErrBulkheadFull) || errors.Is(err, ErrBulkheadTimeout)
}

func IsOperationTimeout(err error) bool {
	return errors.Is(err, ErrOperationTimeout)
}

func IsBackendUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// The key doesn't exist; asking again won't change that
	if IsCacheMiss(err) {
		return false
	}

	// Need to wait for recovery
	if IsCircuitOpen(err) {
		return false
	}

	// Local admission decisions
	if IsBulkheadError(err) {
		return false
	}

	if errors.Is(err, ErrClosed) {
		return false
	}

	if errors.Is(err, ErrInvalidKey) || errors.Is(err, ErrSerializationFailed) {
		return false
	}

	return true
}
