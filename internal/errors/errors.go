// Package errors provides error handling for agentflow.
//
// It re-exports github.com/cockroachdb/errors so that every package wraps,
// marks and inspects errors the same way, and it defines the sentinel errors
// that make up the execution error taxonomy. Callers classify an error with
// Is against a sentinel, or map it to a stable wire code with Code.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New        = crdb.New
	Newf       = crdb.Newf
	Wrap       = crdb.Wrap
	Wrapf      = crdb.Wrapf
	Mark       = crdb.Mark
	WithDetail = crdb.WithDetail
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	GetAllDetails = crdb.GetAllDetails
)

// Taxonomy sentinels. Wrap or Mark these to add context while keeping the
// classification visible to Is.
var (
	// ErrInvalidWorkflow indicates a structurally invalid workflow payload.
	ErrInvalidWorkflow = New("invalid workflow")

	// ErrUnsupportedFramework indicates the framework type was never registered.
	ErrUnsupportedFramework = New("unsupported framework")

	// ErrAdapterNotFound indicates a registered framework has no bound adapter.
	ErrAdapterNotFound = New("framework adapter not found")

	// ErrExecutionTimeout indicates the execution deadline fired before the work finished.
	ErrExecutionTimeout = New("execution timed out")

	// ErrExecution indicates an adapter-internal failure while running a step.
	ErrExecution = New("execution failed")

	// ErrCancelled indicates a user or operator stopped the execution.
	ErrCancelled = New("execution cancelled")

	// ErrNotFound indicates the requested execution record does not exist.
	ErrNotFound = New("not found")

	// ErrAlreadyRegistered indicates a second adapter for the same framework type.
	ErrAlreadyRegistered = New("framework adapter already registered")

	// ErrDuplicateExecution indicates an execution id that is already tracked.
	ErrDuplicateExecution = New("execution already exists")
)

// Stable error codes surfaced to callers in ExecutionResult.Error.Code.
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeUnsupportedFramework = "UNSUPPORTED_FRAMEWORK"
	CodeAdapterNotFound      = "ADAPTER_NOT_FOUND"
	CodeTimeout              = "EXECUTION_TIMEOUT"
	CodeExecution            = "EXECUTION_ERROR"
	CodeCancelled            = "EXECUTION_CANCELLED"
	CodeNotFound             = "NOT_FOUND"
	CodeDuplicateExecution   = "DUPLICATE_EXECUTION"
	CodeFramework            = "FRAMEWORK_ERROR"
)

// Code maps err onto the taxonomy. Errors outside the taxonomy map to
// CodeExecution.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrExecutionTimeout):
		return CodeTimeout
	case Is(err, ErrCancelled):
		return CodeCancelled
	case Is(err, ErrInvalidWorkflow):
		return CodeValidation
	case Is(err, ErrUnsupportedFramework):
		return CodeUnsupportedFramework
	case Is(err, ErrAdapterNotFound):
		return CodeAdapterNotFound
	case Is(err, ErrNotFound):
		return CodeNotFound
	case Is(err, ErrDuplicateExecution):
		return CodeDuplicateExecution
	default:
		return CodeExecution
	}
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// NewNotFoundError creates a not-found error with a formatted message.
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}
