// Package header implements the versioned encryption header that accompanies
// every record, and its canonical byte encoding. The canonical bytes are the
// AEAD additional data, so two headers with the same field values always
// encode identically regardless of how they were built.
package header

import (
	"time"

	"github.com/jmcleod/ironseal/crypto"
	"github.com/jmcleod/ironseal/errcode"
	"github.com/jmcleod/ironseal/internal/util"
	"github.com/jmcleod/ironseal/kdf"
)

// Schema versions. Legacy records predate the header and carry none; they
// are handled by the migrate package.
const (
	SchemaLegacy = 1
	SchemaV2     = 2
	Current      = SchemaV2
)

// IVSize is the only accepted IV length.
const IVSize = util.GCMNonceSize

// Header is the metadata bound to a ciphertext. Treat it as immutable:
// re-encryption builds a new Header.
type Header struct {
	Schema  int
	Profile kdf.Profile
	Salt    []byte
	IV      []byte
	KeyID   crypto.KeyID
	// CreatedAt is Unix seconds truncated to the minute.
	CreatedAt int64
}

// New returns a current-schema header. createdAt is truncated to the minute.
func New(profile kdf.Profile, salt, iv []byte, keyID crypto.KeyID, createdAt time.Time) Header {
	return Header{
		Schema:    Current,
		Profile:   profile,
		Salt:      util.CopyBytes(salt),
		IV:        util.CopyBytes(iv),
		KeyID:     keyID,
		CreatedAt: Minute(createdAt),
	}
}

// Minute truncates t to minute resolution and returns Unix seconds.
func Minute(t time.Time) int64 {
	return t.Truncate(time.Minute).Unix()
}

// KDF returns the recorded strategy.
func (h Header) KDF() kdf.Algorithm {
	return h.Profile.Algorithm
}

// WithKeyID returns a copy of h carrying a different key id.
func (h Header) WithKeyID(id crypto.KeyID) Header {
	h.KeyID = id
	return h
}

// Validate checks every field against the accepted ranges.
func (h Header) Validate() error {
	if h.Schema != Current {
		return errcode.Errorf(errcode.ParamMismatch, "header.validate", "unsupported schema %d", h.Schema)
	}
	if err := h.Profile.Validate(); err != nil {
		return err
	}
	if len(h.Salt) < kdf.MinSaltLen || len(h.Salt) > kdf.MaxSaltLen {
		return errcode.Errorf(errcode.ParamMismatch, "header.validate", "salt length %d", len(h.Salt))
	}
	if len(h.IV) != IVSize {
		return errcode.Errorf(errcode.ParamMismatch, "header.validate", "iv length %d, want %d", len(h.IV), IVSize)
	}
	if h.CreatedAt < 0 || h.CreatedAt%60 != 0 {
		return errcode.Errorf(errcode.ParamMismatch, "header.validate", "createdAt %d is not minute-aligned", h.CreatedAt)
	}
	return nil
}
