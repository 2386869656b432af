package record

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jmcleod/ironseal/crypto"
	"github.com/jmcleod/ironseal/errcode"
	"github.com/jmcleod/ironseal/header"
	"github.com/jmcleod/ironseal/kdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() Record {
	var id crypto.KeyID
	copy(id[:], bytes.Repeat([]byte{0x11}, crypto.KeyIDSize))
	h := header.New(
		kdf.PBKDF2Profile(kdf.Desktop, 200_000),
		bytes.Repeat([]byte{0x01}, 16),
		bytes.Repeat([]byte{0x02}, 12),
		id,
		time.Unix(1767225600, 0),
	)
	return Record{Header: h, Ciphertext: []byte("sixteen byte tag + body")}
}

func TestMarshal(t *testing.T) {
	out, err := Marshal(testRecord())
	require.NoError(t, err)
	s := string(out)
	assert.True(t, strings.HasPrefix(s, `{"ciphertext":"`), s)
	assert.Contains(t, s, `,"header":{"createdAt":1767225600,`)
	assert.True(t, strings.HasSuffix(s, `"schema":2}}`), s)
	assert.NotContains(t, s, " ")
	assert.NotContains(t, s, "=")
}

func TestUnmarshal_RoundTrip(t *testing.T) {
	r := testRecord()
	out, err := Marshal(r)
	require.NoError(t, err)

	got, err := Unmarshal(out)
	require.NoError(t, err)
	assert.Equal(t, r.Ciphertext, got.Ciphertext)
	assert.Equal(t, r.Header, got.Header)

	again, err := Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestUnmarshal_Rejects(t *testing.T) {
	out, err := Marshal(testRecord())
	require.NoError(t, err)
	valid := string(out)

	tests := []struct {
		name string
		in   string
		code errcode.Code
	}{
		{"Empty", ``, errcode.ParamMismatch},
		{"Array", `[]`, errcode.ParamMismatch},
		{"MissingCiphertext", `{"header":{}}`, errcode.ParamMismatch},
		{"ExtraTopLevel", strings.Replace(valid, `{"ciphertext"`, `{"v":1,"ciphertext"`, 1), errcode.ParamMismatch},
		{"PaddedCiphertext", strings.Replace(valid, `","header"`, `==","header"`, 1), errcode.ParamMismatch},
		{"CiphertextNotString", strings.Replace(valid, `{"ciphertext":"`, `{"ciphertext":7,"x":"`, 1), errcode.ParamMismatch},
		{"HeaderTampered", strings.Replace(valid, `"schema":2}`, `"schema":2,"extra":true}`, 1), errcode.AADMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.in))
			require.Error(t, err)
			assert.Equal(t, tt.code, errcode.CodeOf(err), "got %v", err)
		})
	}
}
