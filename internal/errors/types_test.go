package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoError_Error(t *testing.T) {
	err := NewValidationError("ownership_mismatch", "only the responsible individual may revise this package")
	assert.Contains(t, err.Error(), "[ownership_mismatch]")
	assert.Contains(t, err.Error(), "only the responsible individual")

	err = err.WithPackage("Widget.3")
	assert.Contains(t, err.Error(), "package:Widget.3")
}

func TestRepoError_ErrorIncludesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewStorageError("manifest_write", "failed to persist manifest", cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRepoError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewConnectError("dial_failed", "could not reach client endpoint", cause)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestRepoError_Is(t *testing.T) {
	a := NewNotFoundError("package_missing", "package not found")
	b := NewNotFoundError("package_missing", "different message")
	c := NewNotFoundError("manifest_missing", "manifest not found")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestRepoError_WithContext(t *testing.T) {
	err := NewValidationError("wrong_status", "only open packages may be cancelled").
		WithContext("status", "closed").
		WithContext("user", "alice")

	assert.Equal(t, "closed", err.Context["status"])
	assert.Equal(t, "alice", err.Context["user"])
}

func TestRepoError_UserMessage(t *testing.T) {
	err := NewValidationError("wrong_status", "only open packages may be cancelled")
	assert.Equal(t, "only open packages may be cancelled", err.UserMessage())

	err = err.WithPackage("Widget.2")
	assert.Equal(t, "Widget.2: only open packages may be cancelled", err.UserMessage())
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFoundError("x", "y")))
	assert.False(t, IsNotFound(NewValidationError("x", "y")))
	assert.True(t, IsValidation(NewValidationError("x", "y")))
	assert.True(t, IsKind(NewParseError("x", "y"), KindParse))
	assert.False(t, IsKind(fmt.Errorf("plain"), KindParse))
}

func TestKindPredicates_WrappedErrors(t *testing.T) {
	inner := NewStorageError("manifest_read", "failed to read manifest", nil)
	wrapped := fmt.Errorf("loading latest version: %w", inner)
	assert.True(t, IsKind(wrapped, KindStorage))
}

func TestAsRepoError(t *testing.T) {
	re := NewTransportError("post_failed", "failed to post message", nil)
	assert.Equal(t, re, AsRepoError(re))

	wrapped := fmt.Errorf("handling checkin: %w", re)
	assert.Equal(t, re, AsRepoError(wrapped))

	plain := fmt.Errorf("something unexpected")
	converted := AsRepoError(plain)
	require.NotNil(t, converted)
	assert.Equal(t, KindInternal, converted.Kind)
	assert.Equal(t, plain, converted.Cause)
}
