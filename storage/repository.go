// Package storage defines where serialized records live. Repositories hold
// opaque blobs by id and never parse them.
package storage

import (
	"errors"
	"fmt"

	"github.com/jmcleod/ironseal/internal/uuid"
)

var (
	// ErrNotFound is returned when no blob exists under the given id.
	ErrNotFound = errors.New("blob not found")
	// ErrCASFailed is returned when Replace finds a different blob than expected.
	ErrCASFailed = errors.New("stored blob changed")
	// ErrInvalidKey is returned for an empty namespace or id.
	ErrInvalidKey = errors.New("namespace and id must not be empty")
)

// Repository stores opaque record blobs grouped by namespace.
type Repository interface {
	Put(namespace, id string, blob []byte) error
	Get(namespace, id string) ([]byte, error)
	List(namespace string) ([]string, error)
	Delete(namespace, id string) error
	// Replace swaps the blob under id only if it still equals expected.
	Replace(namespace, id string, expected, blob []byte) error
}

// NewID returns a fresh blob id.
func NewID() string {
	return uuid.New()
}

// ValidID reports whether id looks like one NewID produced.
func ValidID(id string) bool {
	return uuid.Valid(id)
}

// CheckKey validates a namespace and id pair.
func CheckKey(namespace, id string) error {
	if namespace == "" || id == "" {
		return fmt.Errorf("%q/%q: %w", namespace, id, ErrInvalidKey)
	}
	return nil
}
