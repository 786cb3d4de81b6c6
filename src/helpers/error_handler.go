package helpers

import (
	"context"
	"fmt"
	"time"

	"lod-engine/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type EngineError struct {
	Message string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As checks
type ConfigurationError struct{ EngineError }
type DatabaseError struct{ EngineError }
type ValidationError struct{ EngineError }
type LoaderError struct{ EngineError }

// -----------------------------------------------------------------------------

// NewDatabaseError wraps a storage failure
func NewDatabaseError(op string, cause error) error {
	return &DatabaseError{EngineError{Message: op + " failed", Cause: cause}}
}

// NewValidationError reports bad input from a caller
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{EngineError{Message: fmt.Sprintf(format, args...)}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
// It stops early when ctx is cancelled.
func RetryWithBackoff[T any](ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	if maxRetries <= 0 {
		maxRetries = 1
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		}
		select {
		case <-ctx.Done():
			return zero, &LoaderError{EngineError{Message: operation + " cancelled", Cause: ctx.Err()}}
		case <-time.After(delay):
		}
	}

	return zero, &LoaderError{EngineError{Message: fmt.Sprintf("%s failed after %d attempts", operation, maxRetries), Cause: lastErr}}
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler counts consecutive failures of a background component.
type ErrorHandler struct {
	Logger         *logger.Logger
	ErrorCount     int
	MaxErrorsInRow int
}

func NewErrorHandler(name string) *ErrorHandler {
	return &ErrorHandler{
		Logger:         logger.NewLogger(nil, name),
		MaxErrorsInRow: 10,
	}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.ErrorCount = 0
}

// -----------------------------------------------------------------------------

// Handle logs err and reports whether the component exceeded its error budget.
func (e *ErrorHandler) Handle(err error, context string) bool {
	if err == nil {
		if e.ErrorCount > 0 {
			e.ErrorCount--
		}
		return false
	}
	e.ErrorCount++
	e.Logger.Error("Error in %s: %v", context, err)
	return e.ErrorCount >= e.MaxErrorsInRow
}
