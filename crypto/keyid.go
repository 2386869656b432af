package crypto

import (
	"crypto/subtle"

	"github.com/jmcleod/ironseal/errcode"
	"github.com/jmcleod/ironseal/internal/util"
)

// Mode is the identity domain a key was derived for.
type Mode string

const (
	ModeWallet  Mode = "wallet"
	ModeAccount Mode = "account"
	ModeGuest   Mode = "guest"
)

// KeyIDSize is the length in bytes of a key identifier.
const KeyIDSize = 16

var keyIDSalt = []byte("ironseal:keyid:salt:v1")

const keyIDInfoPrefix = "scope:v1:"

// Modes returns every identity domain in a fixed order.
func Modes() []Mode {
	return []Mode{ModeWallet, ModeAccount, ModeGuest}
}

// Valid reports whether m is a known identity domain.
func (m Mode) Valid() bool {
	switch m {
	case ModeWallet, ModeAccount, ModeGuest:
		return true
	default:
		return false
	}
}

// KeyID is a non-reversible identifier for key material within one identity
// domain. It is bookkeeping only: IV-reuse tracking and decrypt-failure
// classification. Do not use it to correlate records across domains.
type KeyID [KeyIDSize]byte

// DeriveKeyID returns the first 128 bits of
// HKDF-SHA256(key, salt = app constant, info = "scope:v1:" + mode).
func DeriveKeyID(key *KeyMaterial, mode Mode) (KeyID, error) {
	if !mode.Valid() {
		return KeyID{}, errcode.Errorf(errcode.ParamMismatch, "crypto.keyid", "unknown mode %q", mode)
	}
	if key == nil || len(key.b) != KeySize {
		return KeyID{}, errcode.Errorf(errcode.ParamMismatch, "crypto.keyid", "key material missing")
	}
	out, err := util.HKDF(key.b, keyIDSalt, []byte(keyIDInfoPrefix+string(mode)), KeyIDSize)
	if err != nil {
		return KeyID{}, err
	}
	var id KeyID
	copy(id[:], out)
	return id, nil
}

// ParseKeyID converts raw bytes into a KeyID.
func ParseKeyID(b []byte) (KeyID, error) {
	if len(b) != KeyIDSize {
		return KeyID{}, errcode.Errorf(errcode.ParamMismatch, "crypto.keyid", "key id length %d, want %d", len(b), KeyIDSize)
	}
	var id KeyID
	copy(id[:], b)
	return id, nil
}

// Equal compares in constant time.
func (id KeyID) Equal(other KeyID) bool {
	return subtle.ConstantTimeCompare(id[:], other[:]) == 1
}

func (id KeyID) String() string {
	return util.EncodeB64(id[:])
}
