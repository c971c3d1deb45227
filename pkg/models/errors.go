package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies why an experiment run failed. Kinds are stable
// strings persisted in experiments.last_error.
type ErrorKind string

const (
	// ErrorKindConfigMissing means required configuration was absent at admission or first use
	ErrorKindConfigMissing ErrorKind = "CONFIG_MISSING"
	// ErrorKindToolDispatchFailed means a tool handler failed (database error, dispatch bug)
	ErrorKindToolDispatchFailed ErrorKind = "TOOL_DISPATCH_FAILED"
	// ErrorKindToolInvalidInput means the model supplied a malformed arguments object
	ErrorKindToolInvalidInput ErrorKind = "TOOL_INVALID_INPUT"
	// ErrorKindTransportTimeout means a chat request exceeded its per-request timeout
	ErrorKindTransportTimeout ErrorKind = "TRANSPORT_TIMEOUT"
	// ErrorKindTransportError means a network failure or non-success HTTP from the chat backend
	ErrorKindTransportError ErrorKind = "TRANSPORT_ERROR"
	// ErrorKindRateLimited means the backend explicitly signaled a rate limit; never retried
	ErrorKindRateLimited ErrorKind = "RATE_LIMITED"
	// ErrorKindSchemaError means the chat response did not match the expected envelope
	ErrorKindSchemaError ErrorKind = "SCHEMA_ERROR"
	// ErrorKindAgentStalled means a turn yielded with zero actions
	ErrorKindAgentStalled ErrorKind = "AGENT_STALLED"
	// ErrorKindBudgetMoves means max_moves was exceeded
	ErrorKindBudgetMoves ErrorKind = "BUDGET_MOVES"
	// ErrorKindBudgetTime means max_duration_minutes was exceeded
	ErrorKindBudgetTime ErrorKind = "BUDGET_TIME"
	// ErrorKindInternal is an unclassified failure
	ErrorKindInternal ErrorKind = "INTERNAL"
)

// IsValid checks if the error kind is valid
func (k ErrorKind) IsValid() bool {
	switch k {
	case ErrorKindConfigMissing,
		ErrorKindToolDispatchFailed,
		ErrorKindToolInvalidInput,
		ErrorKindTransportTimeout,
		ErrorKindTransportError,
		ErrorKindRateLimited,
		ErrorKindSchemaError,
		ErrorKindAgentStalled,
		ErrorKindBudgetMoves,
		ErrorKindBudgetTime,
		ErrorKindInternal:
		return true
	default:
		return false
	}
}

// ClassifiedError tags an underlying cause with an ErrorKind from the
// taxonomy. Classified errors are never retried; they propagate to the
// scheduler which finalizes the experiment.
type ClassifiedError struct {
	Kind  ErrorKind
	Cause error
}

func (e *ClassifiedError) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

// Unwrap exposes the underlying cause for errors.Is/As
func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// NewClassified wraps cause with the given kind
func NewClassified(kind ErrorKind, cause error) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Cause: cause}
}

// Classifiedf builds a classified error from a format string
func Classifiedf(kind ErrorKind, format string, args ...any) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// KindOf extracts the ErrorKind from an error chain, defaulting to
// ErrorKindInternal for unclassified errors
func KindOf(err error) ErrorKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrorKindInternal
}

// LastError is the structured failure record persisted at finalization
type LastError struct {
	Kind      ErrorKind `json:"error_kind"`
	Cause     string    `json:"cause"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLastError captures err as a LastError stamped with now
func NewLastError(err error) *LastError {
	le := &LastError{Kind: KindOf(err), Timestamp: time.Now().UTC()}
	var ce *ClassifiedError
	if errors.As(err, &ce) && ce.Cause != nil {
		le.Cause = ce.Cause.Error()
	} else if err != nil {
		le.Cause = err.Error()
	}
	return le
}
