// Package record serializes an encrypted record: a header plus the
// ciphertext it authenticates. Storage layers treat the output as opaque.
package record

import (
	"encoding/json"
	"fmt"

	"github.com/jmcleod/ironseal/errcode"
	"github.com/jmcleod/ironseal/header"
	"github.com/jmcleod/ironseal/internal/util"
)

// Record is a header and its ciphertext. Ciphertext includes the GCM tag.
type Record struct {
	Header     header.Header
	Ciphertext []byte
}

type wireRecord struct {
	Ciphertext string          `json:"ciphertext"`
	Header     json.RawMessage `json:"header"`
}

// Marshal returns the serialized record with the header in canonical form.
func Marshal(r Record) ([]byte, error) {
	h, err := header.Encode(r.Header)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(wireRecord{
		Ciphertext: util.EncodeB64(r.Ciphertext),
		Header:     h,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return out, nil
}

// Unmarshal parses a serialized record. The object must hold exactly the
// header and ciphertext fields.
func Unmarshal(b []byte) (Record, error) {
	fields, err := util.DecodeObject(b)
	if err != nil {
		return Record{}, errcode.New(errcode.ParamMismatch, "record.unmarshal", err)
	}
	rawHeader, okH := fields["header"]
	rawCT, okC := fields["ciphertext"]
	if !okH || !okC || len(fields) != 2 {
		return Record{}, errcode.Errorf(errcode.ParamMismatch, "record.unmarshal", "record must have exactly the header and ciphertext fields")
	}

	h, err := header.Decode(rawHeader)
	if err != nil {
		return Record{}, err
	}
	s, err := util.ParseString(rawCT)
	if err != nil {
		return Record{}, errcode.New(errcode.ParamMismatch, "record.unmarshal", fmt.Errorf("ciphertext: %w", err))
	}
	ct, err := util.DecodeB64(s)
	if err != nil {
		return Record{}, errcode.New(errcode.ParamMismatch, "record.unmarshal", fmt.Errorf("ciphertext: %w", err))
	}
	return Record{Header: h, Ciphertext: ct}, nil
}
