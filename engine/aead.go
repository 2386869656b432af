package engine

import (
	"errors"

	"github.com/jmcleod/ironseal/crypto"
	"github.com/jmcleod/ironseal/errcode"
	"github.com/jmcleod/ironseal/internal/util"
)

// TagSize is the GCM authentication tag length in bytes.
const TagSize = util.GCMTagSize

// EncryptWithKey seals plaintext under key with AES-256-GCM. The returned
// ciphertext carries the tag. aad must be non-nil; pass []byte{} for none.
func EncryptWithKey(plaintext []byte, key *crypto.KeyMaterial, iv, aad []byte) ([]byte, error) {
	if err := checkAEADInputs(key, iv, aad); err != nil {
		return nil, err
	}
	ct, err := util.SealGCM(plaintext, key.Bytes(), iv, aad)
	if err != nil {
		return nil, errcode.New(errcode.ParamMismatch, "engine.seal", err)
	}
	return ct, nil
}

// DecryptWithKey opens ciphertext under key. Any verification failure is
// DATA_CORRUPTED; no plaintext is returned unless the tag verifies.
func DecryptWithKey(ciphertext []byte, key *crypto.KeyMaterial, iv, aad []byte) ([]byte, error) {
	if err := checkAEADInputs(key, iv, aad); err != nil {
		return nil, err
	}
	pt, err := util.OpenGCM(ciphertext, key.Bytes(), iv, aad)
	switch {
	case err == nil:
		return pt, nil
	case errors.Is(err, util.ErrShortCiphertext), errors.Is(err, util.ErrOpenFailed):
		return nil, errcode.New(errcode.DataCorrupted, "engine.open", err)
	default:
		return nil, errcode.New(errcode.ParamMismatch, "engine.open", err)
	}
}

func checkAEADInputs(key *crypto.KeyMaterial, iv, aad []byte) error {
	if key == nil || len(key.Bytes()) != crypto.KeySize {
		return errcode.Errorf(errcode.ParamMismatch, "engine.aead", "key material missing")
	}
	if len(iv) != util.GCMNonceSize {
		return errcode.Errorf(errcode.ParamMismatch, "engine.aead", "iv length %d, want %d", len(iv), util.GCMNonceSize)
	}
	if aad == nil {
		return errcode.New(errcode.ParamMismatch, "engine.aead", util.ErrNilAAD)
	}
	return nil
}
