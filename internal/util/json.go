package util

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var (
	// ErrDuplicateKey is returned when a JSON object repeats a member name.
	ErrDuplicateKey = errors.New("duplicate object key")
	// ErrNumberFormat is returned for numbers that are not plain unsigned decimals.
	ErrNumberFormat = errors.New("number is not a plain unsigned decimal")
)

// DecodeObject splits a single JSON object into its members without
// interpreting the values. Duplicate keys and trailing data are rejected.
func DecodeObject(b []byte) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	out := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		out[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after object")
	}
	return out, nil
}

// ParseUint parses a raw JSON number that must be written as a plain decimal
// integer with no sign, fraction, exponent or leading zeros.
func ParseUint(raw json.RawMessage, bitSize int) (uint64, error) {
	s := string(raw)
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, fmt.Errorf("%w: %q", ErrNumberFormat, s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("%w: %q", ErrNumberFormat, s)
		}
	}
	n, err := strconv.ParseUint(s, 10, bitSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNumberFormat, err)
	}
	return n, nil
}

// ParseString decodes a raw JSON string.
func ParseString(raw json.RawMessage) (string, error) {
	var s string
	if len(raw) == 0 || raw[0] != '"' {
		return "", errors.New("expected string")
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}
