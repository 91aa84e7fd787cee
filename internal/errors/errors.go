package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/dayjot/internal/logger"
)

// Sentinels for errors.Is checks at the gateway boundary.
var (
	ErrValidation       = stderrors.New("validation failed")
	ErrNotFound         = stderrors.New("not found")
	ErrTransientStorage = stderrors.New("transient storage failure")
	ErrInvalidSchedule  = stderrors.New("invalid schedule")
)

// ValidationError reports malformed input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError is returned for unknown ids and for ids owned by a different user;
// the two cases are indistinguishable to the caller.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// TransientStorageError wraps an I/O failure that may succeed when retried.
type TransientStorageError struct {
	Op  string
	Err error
}

func (e *TransientStorageError) Error() string {
	return fmt.Sprintf("transient storage failure during %s: %v", e.Op, e.Err)
}

func (e *TransientStorageError) Unwrap() error { return e.Err }

func (e *TransientStorageError) Is(target error) bool { return target == ErrTransientStorage }

// Transient marks err as retryable. A nil err stays nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientStorageError{Op: op, Err: err}
}

// InvalidScheduleError is a ValidationError raised for an unparseable schedule
// or an unknown timezone.
type InvalidScheduleError struct {
	Schedule string
	Timezone string
	Err      error
}

func (e *InvalidScheduleError) Error() string {
	if e.Timezone != "" && e.Schedule == "" {
		return fmt.Sprintf("invalid schedule: unknown timezone %q: %v", e.Timezone, e.Err)
	}
	return fmt.Sprintf("invalid schedule %q: %v", e.Schedule, e.Err)
}

func (e *InvalidScheduleError) Unwrap() error { return e.Err }

func (e *InvalidScheduleError) Is(target error) bool {
	return target == ErrInvalidSchedule || target == ErrValidation
}

// IsRetryable reports whether err should be retried by the storage retry loop.
func IsRetryable(err error) bool {
	return stderrors.Is(err, ErrTransientStorage)
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}
