package migrate

import (
	"bytes"

	"github.com/jmcleod/ironseal/errcode"
	"github.com/jmcleod/ironseal/internal/util"
	"github.com/jmcleod/ironseal/kdf"
)

// Legacy records predate the header. Their parameters were fixed.
const (
	LegacySaltSize   = 16
	LegacyIterations = 100_000
	legacyMinSize    = LegacySaltSize + util.GCMNonceSize + util.GCMTagSize
)

// LegacyProfile is the fixed parameter set of schema 1 records.
func LegacyProfile() kdf.Profile {
	return kdf.Profile{Name: "legacy", Algorithm: kdf.PBKDF2, Iterations: LegacyIterations, Hash: kdf.HashSHA256}
}

type legacyRecord struct {
	salt       []byte
	iv         []byte
	ciphertext []byte
}

// parseLegacy decodes a schema 1 token: base64url(salt ‖ iv ‖ ciphertext‖tag).
func parseLegacy(b []byte) (legacyRecord, error) {
	raw, err := util.DecodeB64(string(bytes.TrimSpace(b)))
	if err != nil {
		return legacyRecord{}, errcode.New(errcode.ParamMismatch, "migrate.legacy", err)
	}
	if len(raw) < legacyMinSize {
		return legacyRecord{}, errcode.Errorf(errcode.ParamMismatch, "migrate.legacy", "legacy record too short: %d bytes", len(raw))
	}
	ivEnd := LegacySaltSize + util.GCMNonceSize
	return legacyRecord{
		salt:       raw[:LegacySaltSize],
		iv:         raw[LegacySaltSize:ivEnd],
		ciphertext: raw[ivEnd:],
	}, nil
}

func (l legacyRecord) encode() []byte {
	raw := make([]byte, 0, len(l.salt)+len(l.iv)+len(l.ciphertext))
	raw = append(raw, l.salt...)
	raw = append(raw, l.iv...)
	raw = append(raw, l.ciphertext...)
	return []byte(util.EncodeB64(raw))
}
