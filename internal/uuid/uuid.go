// Package uuid generates opaque blob identifiers.
package uuid

import "github.com/google/uuid"

func New() string {
	return uuid.NewString()
}

// Valid reports whether s parses as a UUID.
func Valid(s string) bool {
	return uuid.Validate(s) == nil
}
