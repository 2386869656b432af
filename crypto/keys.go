// Package crypto derives record encryption keys from user secrets and the
// domain-separated key identifiers used for internal bookkeeping.
package crypto

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmcleod/ironseal/errcode"
	"github.com/jmcleod/ironseal/internal/util"
	"github.com/jmcleod/ironseal/kdf"
)

// KeySize is the length in bytes of derived key material.
const KeySize = util.DerivedKeyLen

// KeyMaterial holds raw derived key bytes. It must not outlive the call that
// derived it; call Wipe when done.
type KeyMaterial struct {
	b []byte
}

// NewKeyMaterial copies b into a KeyMaterial.
func NewKeyMaterial(b []byte) (*KeyMaterial, error) {
	if len(b) != KeySize {
		return nil, errcode.Errorf(errcode.ParamMismatch, "crypto.key", "key length %d, want %d", len(b), KeySize)
	}
	return &KeyMaterial{b: util.CopyBytes(b)}, nil
}

// Bytes returns the underlying key. The slice is shared; do not retain it.
func (k *KeyMaterial) Bytes() []byte {
	return k.b
}

// Wipe zeroes the key in place.
func (k *KeyMaterial) Wipe() {
	if k == nil {
		return
	}
	util.WipeBytes(k.b)
	k.b = nil
}

func (k *KeyMaterial) String() string {
	return "KeyMaterial(redacted)"
}

// LogValue keeps key bytes out of structured logs.
func (k *KeyMaterial) LogValue() slog.Value {
	return slog.StringValue("redacted")
}

// Format redacts key bytes under every fmt verb.
func (k *KeyMaterial) Format(f fmt.State, _ rune) {
	fmt.Fprint(f, k.String())
}

// DeriveKey derives key material from secret with the parameters in profile.
// The secret is NFKD-normalized first so the same secret typed on different
// keyboards yields the same key.
func DeriveKey(ctx context.Context, mgr *kdf.Manager, secret string, salt []byte, profile kdf.Profile) (*KeyMaterial, error) {
	normalized := []byte(util.Normalize(secret))
	defer util.WipeBytes(normalized)

	raw, err := mgr.Derive(ctx, normalized, salt, profile)
	if err != nil {
		return nil, err
	}
	return &KeyMaterial{b: raw}, nil
}
