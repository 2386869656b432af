package util

import (
	"crypto/rand"
	"fmt"
	"io"
)

// RandomBytes reads n bytes from r, or from crypto/rand when r is nil.
func RandomBytes(r io.Reader, n int) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}
