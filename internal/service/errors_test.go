package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransErrorFormat(t *testing.T) {
	err := NewError(ErrFileNotFound, "missing input")
	assert.Equal(t, "[FileNotFound] missing input", err.Error())

	withCtx := NewError(ErrConfig, "bad value").WithContext("key", "MAX_TOKEN")
	assert.Contains(t, withCtx.Error(), "[Config] bad value")
	assert.Contains(t, withCtx.Error(), "key=MAX_TOKEN")

	cause := errors.New("disk full")
	wrapped := WrapError(cause, ErrFileWrite, "save failed")
	assert.Contains(t, wrapped.Error(), "cause: disk full")
}

func TestTransErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewErrorWithCause(ErrTranslation, "call failed", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, err.Unwrap())
}

func TestIsErrorType(t *testing.T) {
	err := NewError(ErrStopped, "stopped")

	assert.True(t, IsErrorType(err, ErrStopped))
	assert.False(t, IsErrorType(err, ErrTranslation))
	assert.False(t, IsErrorType(errors.New("plain"), ErrStopped))
	assert.False(t, IsErrorType(nil, ErrStopped))

	// Type detection survives further wrapping.
	outer := fmt.Errorf("outer: %w", err)
	assert.True(t, IsErrorType(outer, ErrStopped))
}

func TestErrorTypeString(t *testing.T) {
	assert.Equal(t, "Stopped", ErrStopped.String())
	assert.Equal(t, "Translation", ErrTranslation.String())
	assert.Equal(t, "Unknown", ErrorType(999).String())
}
