package util

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Bounds for accepted Argon2id parameters. Anything outside is treated as a
// corrupted or hostile header.
const (
	MinArgon2Time      = 2
	MaxArgon2Time      = 10
	MinArgon2MemoryKiB = 19 * 1024
	MaxArgon2MemoryKiB = 1024 * 1024
	MinArgon2Parallel  = 1
	MaxArgon2Parallel  = 16
	DerivedKeyLen      = 32
)

type Argon2idParams struct {
	Time        uint32
	MemoryKiB   uint32
	Parallelism uint8
}

func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:        3,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
	}
}

// ValidateArgon2idParams checks p against the accepted bounds.
func ValidateArgon2idParams(p Argon2idParams) error {
	if p.Time < MinArgon2Time || p.Time > MaxArgon2Time {
		return fmt.Errorf("argon2id time %d outside [%d, %d]", p.Time, MinArgon2Time, MaxArgon2Time)
	}
	if p.MemoryKiB < MinArgon2MemoryKiB || p.MemoryKiB > MaxArgon2MemoryKiB {
		return fmt.Errorf("argon2id memory %d KiB outside [%d, %d]", p.MemoryKiB, MinArgon2MemoryKiB, MaxArgon2MemoryKiB)
	}
	if p.Parallelism < MinArgon2Parallel || p.Parallelism > MaxArgon2Parallel {
		return fmt.Errorf("argon2id parallelism %d outside [%d, %d]", p.Parallelism, MinArgon2Parallel, MaxArgon2Parallel)
	}
	return nil
}

func DeriveArgon2idKey(secret, salt []byte, params Argon2idParams) ([]byte, error) {
	if err := ValidateArgon2idParams(params); err != nil {
		return nil, err
	}
	return argon2.IDKey(secret, salt, params.Time, params.MemoryKiB, params.Parallelism, DerivedKeyLen), nil
}
