package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(CodeNotFound, "insured person not found")

	assert.Equal(t, CodeNotFound, err.Code)
	assert.Equal(t, "insured person not found", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "storage unavailable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage unavailable: connection refused", err.Error())
}

func TestNewValidationFormatsFieldsInOrder(t *testing.T) {
	fields := FieldErrors{}
	fields.Add("phone", "is required")
	fields.Add("email", "is required")
	fields.Add("email", "must be a valid email address")

	err := NewValidation("invalid insured person", fields)

	assert.Equal(t, CodeValidation, err.Code)
	assert.Equal(t, []string{"email", "phone"}, fields.Fields())
	assert.Equal(t,
		"invalid insured person (email: is required; must be a valid email address, phone: is required)",
		err.Error())
}

func TestCodeOf(t *testing.T) {
	t.Run("coded error", func(t *testing.T) {
		assert.Equal(t, CodeDuplicateIdentity, CodeOf(New(CodeDuplicateIdentity, "exists")))
	})
	t.Run("wrapped coded error", func(t *testing.T) {
		err := fmt.Errorf("create: %w", New(CodeConcurrencyConflict, "stale version"))
		assert.Equal(t, CodeConcurrencyConflict, CodeOf(err))
		assert.True(t, HasCode(err, CodeConcurrencyConflict))
		assert.True(t, Is(err, CodeConcurrencyConflict))
	})
	t.Run("plain error defaults to internal", func(t *testing.T) {
		err := errors.New("boom")
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.False(t, HasCode(err, CodeNotFound))
	})
}

func TestFieldsOf(t *testing.T) {
	fields := FieldErrors{}
	fields.Add("first_name", "is required")

	got := FieldsOf(fmt.Errorf("wrapped: %w", NewValidation("invalid", fields)))
	require.NotNil(t, got)
	assert.Equal(t, []string{"is required"}, got["first_name"])

	assert.Nil(t, FieldsOf(errors.New("plain")))
	assert.Nil(t, FieldsOf(New(CodeNotFound, "missing")))
}
