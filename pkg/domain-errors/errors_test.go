package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(New(CodeConflict, "email taken"), CodeInternal, "register failed")

	assert.True(t, HasCode(err, CodeInternal))
	assert.True(t, HasCode(err, CodeConflict))
	assert.False(t, HasCode(err, CodeValidation))
	assert.False(t, HasCode(cause, CodeInternal))
	assert.True(t, HasCode(fmt.Errorf("handler: %w", err), CodeConflict))
}

func TestIsComparesCodeAndMessage(t *testing.T) {
	err := New(CodeUnauthorized, "invalid token")

	assert.ErrorIs(t, err, New(CodeUnauthorized, "invalid token"))
	assert.NotErrorIs(t, err, New(CodeUnauthorized, "token has expired"))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "nothing"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeValidation, CodeOf(New(CodeValidation, "bad")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}
