// Package errcode defines the closed set of error kinds the record engine
// returns to its callers.
//
// Every engine error is an *Error carrying one Code. Match on the kind with
// errors.Is against the sentinel values:
//
//	_, err := eng.Decrypt(ctx, sess, blob, secret)
//	if errors.Is(err, errcode.ErrInvalidKey) {
//	    // prompt for the secret again
//	}
//
// Messages never include secrets, key material or plaintext.
package errcode

import (
	"errors"
	"fmt"
)

// Code is a stable, caller-facing error kind.
type Code string

const (
	InvalidKey     Code = "INVALID_KEY"
	DataCorrupted  Code = "DATA_CORRUPTED"
	IVReuseBlocked Code = "IV_REUSE_BLOCKED"
	ParamMismatch  Code = "PARAM_MISMATCH"
	AADMismatch    Code = "AAD_MISMATCH"
)

var (
	// ErrInvalidKey means the secret is almost certainly wrong. Only reported
	// after an AEAD attempt has failed.
	ErrInvalidKey = &Error{Code: InvalidKey}
	// ErrDataCorrupted means the ciphertext or tag failed verification under a
	// key that is otherwise known to be correct, or was truncated.
	ErrDataCorrupted = &Error{Code: DataCorrupted}
	// ErrIVReuseBlocked means an encryption would have reused an IV for a key.
	ErrIVReuseBlocked = &Error{Code: IVReuseBlocked}
	// ErrParamMismatch means validation failed before any primitive ran.
	ErrParamMismatch = &Error{Code: ParamMismatch}
	// ErrAADMismatch means the header differs from the one bound at encryption.
	ErrAADMismatch = &Error{Code: AADMismatch}
)

// Error is the engine's error type.
type Error struct {
	Code Code
	// Op names the failing operation, e.g. "header.decode".
	Op  string
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New returns an *Error wrapping err.
func New(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Errorf returns an *Error with a formatted cause.
func Errorf(code Code, op string, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

// CodeOf returns the Code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
