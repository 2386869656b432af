package kdf

import (
	"github.com/jmcleod/ironseal/errcode"
	"github.com/jmcleod/ironseal/internal/util"
	"golang.org/x/crypto/argon2"
)

// Strategy derives a 32-byte key from a secret and salt.
type Strategy interface {
	Algorithm() Algorithm
	Derive(secret, salt []byte, p Profile) ([]byte, error)
}

// Argon2idStrategy is the memory-hard strategy.
type Argon2idStrategy struct{}

func (Argon2idStrategy) Algorithm() Algorithm { return Argon2id }

func (Argon2idStrategy) Derive(secret, salt []byte, p Profile) ([]byte, error) {
	if p.Algorithm != Argon2id {
		return nil, errcode.Errorf(errcode.ParamMismatch, "kdf.argon2id", "profile algorithm %q", p.Algorithm)
	}
	key, err := util.DeriveArgon2idKey(secret, salt, p.Argon2)
	if err != nil {
		return nil, errcode.New(errcode.ParamMismatch, "kdf.argon2id", err)
	}
	return key, nil
}

// PBKDF2Strategy is the iteration-based baseline strategy.
type PBKDF2Strategy struct{}

func (PBKDF2Strategy) Algorithm() Algorithm { return PBKDF2 }

func (PBKDF2Strategy) Derive(secret, salt []byte, p Profile) ([]byte, error) {
	if p.Algorithm != PBKDF2 || p.Hash != HashSHA256 {
		return nil, errcode.Errorf(errcode.ParamMismatch, "kdf.pbkdf2", "profile %s", p)
	}
	if err := util.ValidatePBKDF2Iterations(p.Iterations); err != nil {
		return nil, errcode.New(errcode.ParamMismatch, "kdf.pbkdf2", err)
	}
	return util.DerivePBKDF2Key(secret, salt, p.Iterations), nil
}

// probeArgon2id runs a minimal Argon2id derivation. A panic or a wrong-sized
// result means the primitive is unusable here.
func probeArgon2id() (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return len(argon2.IDKey([]byte("probe"), make([]byte, MinSaltLen), 1, 64, 1, util.DerivedKeyLen)) == util.DerivedKeyLen
}

// pbkdf2KAT is PBKDF2-HMAC-SHA256("password", "salt", 1, 32).
var pbkdf2KAT = []byte{
	0x12, 0x0f, 0xb6, 0xcf, 0xfc, 0xf8, 0xb3, 0x2c, 0x43, 0xe7, 0x22, 0x52, 0x56, 0xc4, 0xf8, 0x37,
	0xa8, 0x65, 0x48, 0xc9, 0x2c, 0xcc, 0x35, 0x48, 0x08, 0x05, 0x98, 0x7c, 0xb7, 0x0b, 0xe1, 0x7b,
}

func probePBKDF2() bool {
	got := util.DerivePBKDF2Key([]byte("password"), []byte("salt"), 1)
	if len(got) != len(pbkdf2KAT) {
		return false
	}
	for i := range got {
		if got[i] != pbkdf2KAT[i] {
			return false
		}
	}
	return true
}
