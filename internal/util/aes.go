package util

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

const (
	AESKeySize   = 32
	GCMNonceSize = 12
	GCMTagSize   = 16
)

var (
	// ErrNilAAD is returned when AAD is absent. An empty AAD must be passed as
	// an explicit zero-length slice.
	ErrNilAAD = errors.New("aad must be an explicit buffer, not nil")
	// ErrOpenFailed is returned when GCM tag verification fails.
	ErrOpenFailed = errors.New("gcm authentication failed")
	// ErrShortCiphertext is returned when the ciphertext cannot hold a tag.
	ErrShortCiphertext = errors.New("ciphertext shorter than authentication tag")
)

func newGCM(rawKey []byte) (cipher.AEAD, error) {
	if len(rawKey) != AESKeySize {
		return nil, fmt.Errorf("invalid AES key size: got %d, want %d", len(rawKey), AESKeySize)
	}

	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithTagSize(block, GCMTagSize)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}

// SealGCM encrypts plainText with AES-256-GCM under the caller-supplied nonce.
// The returned slice is ciphertext || tag; the nonce is not prepended.
func SealGCM(plainText, rawKey, nonce, aad []byte) ([]byte, error) {
	if aad == nil {
		return nil, ErrNilAAD
	}
	if len(nonce) != GCMNonceSize {
		return nil, fmt.Errorf("invalid nonce size: got %d, want %d", len(nonce), GCMNonceSize)
	}

	gcm, err := newGCM(rawKey)
	if err != nil {
		return nil, err
	}

	return gcm.Seal(nil, nonce, plainText, aad), nil
}

// OpenGCM reverses SealGCM. It never returns partial plaintext.
func OpenGCM(cipherText, rawKey, nonce, aad []byte) ([]byte, error) {
	if aad == nil {
		return nil, ErrNilAAD
	}
	if len(nonce) != GCMNonceSize {
		return nil, fmt.Errorf("invalid nonce size: got %d, want %d", len(nonce), GCMNonceSize)
	}
	if len(cipherText) < GCMTagSize {
		return nil, ErrShortCiphertext
	}

	gcm, err := newGCM(rawKey)
	if err != nil {
		return nil, err
	}

	plainText, err := gcm.Open(nil, nonce, cipherText, aad)
	if err != nil {
		return nil, ErrOpenFailed
	}

	return plainText, nil
}
