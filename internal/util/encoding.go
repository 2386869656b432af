package util

import (
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// ErrEncoding is returned for any text that is not canonical unpadded base64url.
var ErrEncoding = errors.New("invalid base64url encoding")

var b64 = base64.RawURLEncoding.Strict()

func Normalize(s string) string {
	return norm.NFKD.String(s)
}

func EncodeB64(b []byte) string {
	return b64.EncodeToString(b)
}

// DecodeB64 accepts only the unpadded URL-safe alphabet. The stdlib decoder
// silently skips CR and LF, so the alphabet is checked first.
func DecodeB64(s string) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		case c == '=':
			return nil, fmt.Errorf("%w: padding at offset %d", ErrEncoding, i)
		default:
			return nil, fmt.Errorf("%w: character %q at offset %d", ErrEncoding, c, i)
		}
	}
	b, err := b64.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return b, nil
}
