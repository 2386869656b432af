package header

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jmcleod/ironseal/crypto"
	"github.com/jmcleod/ironseal/errcode"
	"github.com/jmcleod/ironseal/internal/util"
	"github.com/jmcleod/ironseal/kdf"
)

// ErrLegacySchema is wrapped when a header claims schema 1, which never had
// a header on the wire.
var ErrLegacySchema = errors.New("schema 1 records carry no header")

// Wire structs list fields in lexicographic key order; encoding/json emits
// struct fields in declaration order with no whitespace.
type wireHeader struct {
	CreatedAt int64           `json:"createdAt"`
	IV        string          `json:"iv"`
	KDF       kdf.Algorithm   `json:"kdf"`
	KDFParams json.RawMessage `json:"kdfParams"`
	KeyID     string          `json:"keyId"`
	Salt      string          `json:"salt"`
	Schema    int             `json:"schema"`
}

type wireArgon2 struct {
	Memory      uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
	Profile     string `json:"profile"`
	Time        uint32 `json:"time"`
}

type wirePBKDF2 struct {
	Hash       string `json:"hash"`
	Iterations uint32 `json:"iterations"`
	Profile    string `json:"profile"`
}

var (
	headerFields = fieldSet("createdAt", "iv", "kdf", "kdfParams", "keyId", "salt", "schema")
	argon2Fields = fieldSet("memory", "parallelism", "profile", "time")
	pbkdf2Fields = fieldSet("hash", "iterations", "profile")
)

type decodeFunc func(fields map[string]json.RawMessage) (Header, error)

// decoders holds one decode function per schema that has a wire header.
var decoders = map[int]decodeFunc{
	SchemaV2: decodeV2,
}

// Encode returns the canonical bytes of h. The output is also the AAD.
func Encode(h Header) ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	var params any
	switch h.Profile.Algorithm {
	case kdf.Argon2id:
		params = wireArgon2{
			Memory:      h.Profile.Argon2.MemoryKiB,
			Parallelism: h.Profile.Argon2.Parallelism,
			Profile:     h.Profile.Name,
			Time:        h.Profile.Argon2.Time,
		}
	case kdf.PBKDF2:
		params = wirePBKDF2{
			Hash:       h.Profile.Hash,
			Iterations: h.Profile.Iterations,
			Profile:    h.Profile.Name,
		}
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding kdf params: %w", err)
	}

	out, err := json.Marshal(wireHeader{
		CreatedAt: h.CreatedAt,
		IV:        util.EncodeB64(h.IV),
		KDF:       h.Profile.Algorithm,
		KDFParams: rawParams,
		KeyID:     h.KeyID.String(),
		Salt:      util.EncodeB64(h.Salt),
		Schema:    h.Schema,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding header: %w", err)
	}
	return out, nil
}

// Decode parses a header. Missing fields, malformed values and out-of-range
// parameters are PARAM_MISMATCH; unrecognized fields are AAD_MISMATCH.
func Decode(b []byte) (Header, error) {
	fields, err := util.DecodeObject(b)
	if err != nil {
		return Header{}, errcode.New(errcode.ParamMismatch, "header.decode", err)
	}
	raw, ok := fields["schema"]
	if !ok {
		return Header{}, errcode.Errorf(errcode.ParamMismatch, "header.decode", "missing field %q", "schema")
	}
	schema, err := util.ParseUint(raw, 16)
	if err != nil {
		return Header{}, errcode.New(errcode.ParamMismatch, "header.decode", err)
	}
	if schema == SchemaLegacy {
		return Header{}, errcode.New(errcode.ParamMismatch, "header.decode", ErrLegacySchema)
	}
	decode, ok := decoders[int(schema)]
	if !ok {
		return Header{}, errcode.Errorf(errcode.ParamMismatch, "header.decode", "unknown schema %d", schema)
	}
	return decode(fields)
}

func decodeV2(fields map[string]json.RawMessage) (Header, error) {
	if err := checkFields("header", fields, headerFields); err != nil {
		return Header{}, err
	}

	h := Header{Schema: SchemaV2}

	createdAt, err := util.ParseUint(fields["createdAt"], 63)
	if err != nil {
		return Header{}, fieldErr("createdAt", err)
	}
	h.CreatedAt = int64(createdAt)

	if h.Salt, err = decodeBinary(fields, "salt"); err != nil {
		return Header{}, err
	}
	if h.IV, err = decodeBinary(fields, "iv"); err != nil {
		return Header{}, err
	}
	rawID, err := decodeBinary(fields, "keyId")
	if err != nil {
		return Header{}, err
	}
	if h.KeyID, err = crypto.ParseKeyID(rawID); err != nil {
		return Header{}, err
	}

	alg, err := util.ParseString(fields["kdf"])
	if err != nil {
		return Header{}, fieldErr("kdf", err)
	}
	paramFields, err := util.DecodeObject(fields["kdfParams"])
	if err != nil {
		return Header{}, fieldErr("kdfParams", err)
	}
	if h.Profile, err = decodeProfile(kdf.Algorithm(alg), paramFields); err != nil {
		return Header{}, err
	}

	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

func decodeProfile(alg kdf.Algorithm, fields map[string]json.RawMessage) (kdf.Profile, error) {
	p := kdf.Profile{Algorithm: alg}
	var err error
	switch alg {
	case kdf.Argon2id:
		if err := checkFields("kdfParams", fields, argon2Fields); err != nil {
			return kdf.Profile{}, err
		}
		var t, m, par uint64
		if t, err = util.ParseUint(fields["time"], 32); err != nil {
			return kdf.Profile{}, fieldErr("kdfParams.time", err)
		}
		if m, err = util.ParseUint(fields["memory"], 32); err != nil {
			return kdf.Profile{}, fieldErr("kdfParams.memory", err)
		}
		if par, err = util.ParseUint(fields["parallelism"], 8); err != nil {
			return kdf.Profile{}, fieldErr("kdfParams.parallelism", err)
		}
		p.Argon2 = kdf.Argon2idParams{Time: uint32(t), MemoryKiB: uint32(m), Parallelism: uint8(par)}
	case kdf.PBKDF2:
		if err := checkFields("kdfParams", fields, pbkdf2Fields); err != nil {
			return kdf.Profile{}, err
		}
		n, err := util.ParseUint(fields["iterations"], 32)
		if err != nil {
			return kdf.Profile{}, fieldErr("kdfParams.iterations", err)
		}
		p.Iterations = uint32(n)
		if p.Hash, err = util.ParseString(fields["hash"]); err != nil {
			return kdf.Profile{}, fieldErr("kdfParams.hash", err)
		}
	default:
		return kdf.Profile{}, errcode.Errorf(errcode.ParamMismatch, "header.decode", "unknown kdf %q", alg)
	}
	if p.Name, err = util.ParseString(fields["profile"]); err != nil {
		return kdf.Profile{}, fieldErr("kdfParams.profile", err)
	}
	return p, nil
}

// checkFields reports missing fields before unknown ones so that a truncated
// header never masquerades as tampering.
func checkFields(scope string, fields map[string]json.RawMessage, want map[string]struct{}) error {
	var missing, unknown []string
	for name := range want {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range fields {
		if _, ok := want[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errcode.Errorf(errcode.ParamMismatch, "header.decode", "%s: missing fields %v", scope, missing)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errcode.Errorf(errcode.AADMismatch, "header.decode", "%s: unrecognized fields %v", scope, unknown)
	}
	return nil
}

func decodeBinary(fields map[string]json.RawMessage, name string) ([]byte, error) {
	s, err := util.ParseString(fields[name])
	if err != nil {
		return nil, fieldErr(name, err)
	}
	b, err := util.DecodeB64(s)
	if err != nil {
		return nil, fieldErr(name, err)
	}
	return b, nil
}

func fieldErr(name string, err error) error {
	return errcode.New(errcode.ParamMismatch, "header.decode", fmt.Errorf("field %q: %w", name, err))
}

func fieldSet(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}
