package errcode

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := Errorf(ParamMismatch, "header.decode", "missing field %q", "iv")

	assert.ErrorIs(t, err, ErrParamMismatch)
	assert.NotErrorIs(t, err, ErrAADMismatch)

	wrapped := fmt.Errorf("loading record: %w", err)
	assert.ErrorIs(t, wrapped, ErrParamMismatch)
	assert.Equal(t, ParamMismatch, CodeOf(wrapped))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := New(DataCorrupted, "engine.decrypt", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "engine.decrypt: DATA_CORRUPTED: boom", err.Error())
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "INVALID_KEY", ErrInvalidKey.Error())
	assert.Equal(t, "session.iv: IV_REUSE_BLOCKED", (&Error{Code: IVReuseBlocked, Op: "session.iv"}).Error())
	assert.Equal(t, "AAD_MISMATCH: x", (&Error{Code: AADMismatch, Err: errors.New("x")}).Error())
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(context.Canceled))
	assert.Equal(t, Code(""), CodeOf(nil))
}
