package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedErrorMessage(t *testing.T) {
	err := NewClassified(ErrorKindTransportError, errors.New("HTTP 500: boom"))
	assert.Equal(t, "TRANSPORT_ERROR: HTTP 500: boom", err.Error())

	bare := &ClassifiedError{Kind: ErrorKindAgentStalled}
	assert.Equal(t, "AGENT_STALLED", bare.Error())
}

func TestClassifiedErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewClassified(ErrorKindTransportError, fmt.Errorf("chat request: %w", cause))
	assert.True(t, errors.Is(err, cause))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"direct", NewClassified(ErrorKindBudgetMoves, errors.New("m")), ErrorKindBudgetMoves},
		{"wrapped", fmt.Errorf("turn 3: %w", Classifiedf(ErrorKindRateLimited, "429")), ErrorKindRateLimited},
		{"unclassified", errors.New("plain"), ErrorKindInternal},
		{"nil", nil, ErrorKindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestNewLastError(t *testing.T) {
	err := NewClassified(ErrorKindTransportError, errors.New("HTTP 500: upstream"))
	le := NewLastError(err)
	require.NotNil(t, le)
	assert.Equal(t, ErrorKindTransportError, le.Kind)
	assert.Equal(t, "HTTP 500: upstream", le.Cause)
	assert.False(t, le.Timestamp.IsZero())
}

func TestNewLastErrorUnclassified(t *testing.T) {
	le := NewLastError(errors.New("nil pointer"))
	assert.Equal(t, ErrorKindInternal, le.Kind)
	assert.Equal(t, "nil pointer", le.Cause)
}

func TestErrorKindIsValid(t *testing.T) {
	kinds := []ErrorKind{
		ErrorKindConfigMissing,
		ErrorKindToolDispatchFailed,
		ErrorKindToolInvalidInput,
		ErrorKindTransportTimeout,
		ErrorKindTransportError,
		ErrorKindRateLimited,
		ErrorKindSchemaError,
		ErrorKindAgentStalled,
		ErrorKindBudgetMoves,
		ErrorKindBudgetTime,
		ErrorKindInternal,
	}
	for _, k := range kinds {
		assert.True(t, k.IsValid(), "kind %s", k)
	}
	assert.False(t, ErrorKind("OOPS").IsValid())
}
