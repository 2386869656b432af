// Package kdf provides the two key-derivation strategies used by the record
// engine (memory-hard Argon2id and iteration-based PBKDF2), the named
// parameter profiles selected by device class, and a Manager that probes
// which strategy the runtime can use.
package kdf

import (
	"fmt"

	"github.com/jmcleod/ironseal/errcode"
	"github.com/jmcleod/ironseal/internal/util"
)

// Argon2idParams configures Argon2id key derivation.
type Argon2idParams = util.Argon2idParams

// Algorithm names a KDF strategy as recorded in the header.
type Algorithm string

const (
	Argon2id Algorithm = "argon2id"
	PBKDF2   Algorithm = "pbkdf2"
)

// DeviceClass selects a profile by device capability.
type DeviceClass string

const (
	Mobile  DeviceClass = "mobile"
	Desktop DeviceClass = "desktop"
	Server  DeviceClass = "server"
)

// HashSHA256 is the only hash accepted for the iteration strategy.
const HashSHA256 = util.PBKDF2HashSHA256

// IterationStep is the granularity calibrated iteration counts are rounded to.
const IterationStep = 1000

// MinSaltLen is the shortest salt any strategy accepts.
const (
	MinSaltLen = 16
	MaxSaltLen = 64
)

// Profile is a named, immutable parameter set. Exactly one of Argon2 or
// Iterations/Hash is meaningful, depending on Algorithm.
type Profile struct {
	Name       string
	Algorithm  Algorithm
	Argon2     Argon2idParams
	Iterations uint32
	Hash       string
}

func defaultArgon2Profiles() map[DeviceClass]Argon2idParams {
	return map[DeviceClass]Argon2idParams{
		Mobile:  {Time: 4, MemoryKiB: 32 * 1024, Parallelism: 2},
		Desktop: util.DefaultArgon2idParams(),
		Server:  {Time: 4, MemoryKiB: 128 * 1024, Parallelism: 4},
	}
}

// Argon2idProfile returns the built-in memory-hard profile for class.
func Argon2idProfile(class DeviceClass) (Profile, error) {
	params, ok := defaultArgon2Profiles()[class]
	if !ok {
		return Profile{}, errcode.Errorf(errcode.ParamMismatch, "kdf.profile", "unknown device class %q", class)
	}
	return Profile{Name: string(class), Algorithm: Argon2id, Argon2: params}, nil
}

// Builtin reports whether p carries the parameters a manager with no
// registered overrides expects for its name.
func (p Profile) Builtin() bool {
	switch p.Algorithm {
	case Argon2id:
		params, ok := defaultArgon2Profiles()[DeviceClass(p.Name)]
		return ok && params == p.Argon2
	case PBKDF2:
		return p.Hash == HashSHA256 && p.Iterations%IterationStep == 0 && ValidName(p.Name)
	default:
		return false
	}
}

// PBKDF2Profile returns an iteration-based profile named after class.
func PBKDF2Profile(class DeviceClass, iterations uint32) Profile {
	return Profile{Name: string(class), Algorithm: PBKDF2, Iterations: iterations, Hash: HashSHA256}
}

// ValidName reports whether s is usable as a profile name: 1 to 32 lowercase
// ASCII letters.
func ValidName(s string) bool {
	if len(s) == 0 || len(s) > 32 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}

// Validate checks p against the bounded safe ranges. It runs before any
// derivation so hostile headers cannot request absurd work.
func (p Profile) Validate() error {
	if !ValidName(p.Name) {
		return errcode.Errorf(errcode.ParamMismatch, "kdf.validate", "invalid profile name")
	}
	switch p.Algorithm {
	case Argon2id:
		if err := util.ValidateArgon2idParams(p.Argon2); err != nil {
			return errcode.New(errcode.ParamMismatch, "kdf.validate", err)
		}
	case PBKDF2:
		if p.Hash != HashSHA256 {
			return errcode.Errorf(errcode.ParamMismatch, "kdf.validate", "unsupported hash %q", p.Hash)
		}
		if err := util.ValidatePBKDF2Iterations(p.Iterations); err != nil {
			return errcode.New(errcode.ParamMismatch, "kdf.validate", err)
		}
	default:
		return errcode.Errorf(errcode.ParamMismatch, "kdf.validate", "unknown algorithm %q", p.Algorithm)
	}
	return nil
}

func validateSalt(salt []byte) error {
	if len(salt) < MinSaltLen || len(salt) > MaxSaltLen {
		return errcode.Errorf(errcode.ParamMismatch, "kdf.validate", "salt length %d outside [%d, %d]", len(salt), MinSaltLen, MaxSaltLen)
	}
	return nil
}

func (p Profile) String() string {
	switch p.Algorithm {
	case Argon2id:
		return fmt.Sprintf("%s/%s(t=%d,m=%dKiB,p=%d)", p.Name, p.Algorithm, p.Argon2.Time, p.Argon2.MemoryKiB, p.Argon2.Parallelism)
	case PBKDF2:
		return fmt.Sprintf("%s/%s-%s(i=%d)", p.Name, p.Algorithm, p.Hash, p.Iterations)
	default:
		return fmt.Sprintf("%s/%s", p.Name, p.Algorithm)
	}
}
