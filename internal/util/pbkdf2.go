package util

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	MinPBKDF2Iterations = 100_000
	MaxPBKDF2Iterations = 2_000_000
	PBKDF2HashSHA256    = "sha256"
)

func ValidatePBKDF2Iterations(n uint32) error {
	if n < MinPBKDF2Iterations || n > MaxPBKDF2Iterations {
		return fmt.Errorf("pbkdf2 iterations %d outside [%d, %d]", n, MinPBKDF2Iterations, MaxPBKDF2Iterations)
	}
	return nil
}

// DerivePBKDF2Key derives a 32-byte key with PBKDF2-HMAC-SHA256. The range is
// not checked here so calibration can time small counts.
func DerivePBKDF2Key(secret, salt []byte, iterations uint32) []byte {
	return pbkdf2.Key(secret, salt, int(iterations), DerivedKeyLen, sha256.New)
}
