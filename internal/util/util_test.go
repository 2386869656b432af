package util

import (
	"bytes"
	"errors"
	"testing"
)

func TestAES(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, AESKeySize)
	nonce := bytes.Repeat([]byte{0x07}, GCMNonceSize)
	plainText := []byte("hello world")
	aad := []byte("context")

	t.Run("SealOpen", func(t *testing.T) {
		cipherText, err := SealGCM(plainText, key, nonce, aad)
		if err != nil {
			t.Fatalf("SealGCM failed: %v", err)
		}
		if len(cipherText) != len(plainText)+GCMTagSize {
			t.Errorf("expected %d bytes, got %d", len(plainText)+GCMTagSize, len(cipherText))
		}

		decrypted, err := OpenGCM(cipherText, key, nonce, aad)
		if err != nil {
			t.Fatalf("OpenGCM failed: %v", err)
		}
		if !bytes.Equal(plainText, decrypted) {
			t.Errorf("expected %s, got %s", plainText, decrypted)
		}
	})

	t.Run("EmptyAADMustBeExplicit", func(t *testing.T) {
		if _, err := SealGCM(plainText, key, nonce, nil); !errors.Is(err, ErrNilAAD) {
			t.Errorf("expected ErrNilAAD, got %v", err)
		}
		cipherText, err := SealGCM(plainText, key, nonce, []byte{})
		if err != nil {
			t.Fatalf("SealGCM with empty AAD failed: %v", err)
		}
		if _, err := OpenGCM(cipherText, key, nonce, nil); !errors.Is(err, ErrNilAAD) {
			t.Errorf("expected ErrNilAAD, got %v", err)
		}
		if _, err := OpenGCM(cipherText, key, nonce, []byte{}); err != nil {
			t.Errorf("OpenGCM with empty AAD failed: %v", err)
		}
	})

	t.Run("TamperAAD", func(t *testing.T) {
		cipherText, _ := SealGCM(plainText, key, nonce, aad)
		_, err := OpenGCM(cipherText, key, nonce, []byte("wrong context"))
		if !errors.Is(err, ErrOpenFailed) {
			t.Errorf("expected ErrOpenFailed, got %v", err)
		}
	})

	t.Run("TamperCipherText", func(t *testing.T) {
		cipherText, _ := SealGCM(plainText, key, nonce, aad)
		cipherText[len(cipherText)-1] ^= 0xFF
		_, err := OpenGCM(cipherText, key, nonce, aad)
		if !errors.Is(err, ErrOpenFailed) {
			t.Errorf("expected ErrOpenFailed, got %v", err)
		}
	})

	t.Run("ShortCipherText", func(t *testing.T) {
		_, err := OpenGCM(make([]byte, GCMTagSize-1), key, nonce, aad)
		if !errors.Is(err, ErrShortCiphertext) {
			t.Errorf("expected ErrShortCiphertext, got %v", err)
		}
	})

	t.Run("RejectBadKeySize", func(t *testing.T) {
		_, err := SealGCM(plainText, []byte("too short"), nonce, aad)
		if err == nil {
			t.Error("expected error with wrong key size, got nil")
		}
	})

	t.Run("RejectBadNonceSize", func(t *testing.T) {
		_, err := SealGCM(plainText, key, make([]byte, 16), aad)
		if err == nil {
			t.Error("expected error with wrong nonce size, got nil")
		}
	})
}

func TestArgon2id(t *testing.T) {
	params := Argon2idParams{Time: MinArgon2Time, MemoryKiB: MinArgon2MemoryKiB, Parallelism: 1}
	salt := []byte("0123456789abcdef")

	key1, err := DeriveArgon2idKey([]byte("correct horse battery staple"), salt, params)
	if err != nil {
		t.Fatalf("DeriveArgon2idKey failed: %v", err)
	}
	if len(key1) != DerivedKeyLen {
		t.Errorf("expected key length %d, got %d", DerivedKeyLen, len(key1))
	}

	key2, _ := DeriveArgon2idKey([]byte("correct horse battery staple"), salt, params)
	if !bytes.Equal(key1, key2) {
		t.Error("DeriveArgon2idKey should be deterministic")
	}

	key3, _ := DeriveArgon2idKey([]byte("wrong passphrase"), salt, params)
	if bytes.Equal(key1, key3) {
		t.Error("different secrets should derive different keys")
	}

	if _, err := DeriveArgon2idKey([]byte("x"), salt, Argon2idParams{Time: 1, MemoryKiB: MinArgon2MemoryKiB, Parallelism: 1}); err == nil {
		t.Error("expected out-of-range params to be rejected")
	}
}

func TestValidateArgon2idParams(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Argon2idParams)
		wantErr bool
	}{
		{"Default", func(*Argon2idParams) {}, false},
		{"TimeTooLow", func(p *Argon2idParams) { p.Time = MinArgon2Time - 1 }, true},
		{"TimeTooHigh", func(p *Argon2idParams) { p.Time = MaxArgon2Time + 1 }, true},
		{"MemoryTooLow", func(p *Argon2idParams) { p.MemoryKiB = 1024 }, true},
		{"MemoryTooHigh", func(p *Argon2idParams) { p.MemoryKiB = MaxArgon2MemoryKiB + 1 }, true},
		{"ParallelismZero", func(p *Argon2idParams) { p.Parallelism = 0 }, true},
		{"ParallelismTooHigh", func(p *Argon2idParams) { p.Parallelism = MaxArgon2Parallel + 1 }, true},
		{"Minimums", func(p *Argon2idParams) {
			*p = Argon2idParams{Time: MinArgon2Time, MemoryKiB: MinArgon2MemoryKiB, Parallelism: MinArgon2Parallel}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultArgon2idParams()
			tt.mutate(&p)
			err := ValidateArgon2idParams(p)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateArgon2idParams(%+v) error = %v, wantErr %v", p, err, tt.wantErr)
			}
		})
	}
}

func TestDefaultArgon2idParams_Production(t *testing.T) {
	p := DefaultArgon2idParams()
	if p.Time != 3 || p.MemoryKiB != 64*1024 || p.Parallelism != 4 {
		t.Errorf("unexpected production params: %+v", p)
	}
}

func TestPBKDF2(t *testing.T) {
	salt := []byte("0123456789abcdef")
	k1 := DerivePBKDF2Key([]byte("secret"), salt, 1000)
	k2 := DerivePBKDF2Key([]byte("secret"), salt, 1000)
	if !bytes.Equal(k1, k2) {
		t.Error("DerivePBKDF2Key should be deterministic")
	}
	if len(k1) != DerivedKeyLen {
		t.Errorf("expected key length %d, got %d", DerivedKeyLen, len(k1))
	}
	k3 := DerivePBKDF2Key([]byte("secret"), salt, 1001)
	if bytes.Equal(k1, k3) {
		t.Error("iteration count should change the key")
	}

	if err := ValidatePBKDF2Iterations(MinPBKDF2Iterations); err != nil {
		t.Errorf("minimum iterations should be valid: %v", err)
	}
	if err := ValidatePBKDF2Iterations(MaxPBKDF2Iterations); err != nil {
		t.Errorf("maximum iterations should be valid: %v", err)
	}
	if err := ValidatePBKDF2Iterations(MinPBKDF2Iterations - 1); err == nil {
		t.Error("expected error below minimum")
	}
	if err := ValidatePBKDF2Iterations(MaxPBKDF2Iterations + 1); err == nil {
		t.Error("expected error above maximum")
	}
}

func TestHKDF(t *testing.T) {
	seed := []byte("seed")
	salt := []byte("salt")
	info := []byte("info")

	key1, err := HKDF(seed, salt, info, 16)
	if err != nil {
		t.Fatalf("HKDF failed: %v", err)
	}
	if len(key1) != 16 {
		t.Errorf("expected key length 16, got %d", len(key1))
	}

	key2, _ := HKDF(seed, salt, info, 16)
	if !bytes.Equal(key1, key2) {
		t.Error("HKDF should be deterministic")
	}

	key3, _ := HKDF(seed, salt, []byte("different info"), 16)
	if bytes.Equal(key1, key3) {
		t.Error("HKDF should produce different output with different info")
	}
}

func TestBytes(t *testing.T) {
	a := []byte{0x01, 0x02, 0x03}
	copied := CopyBytes(a)
	if !bytes.Equal(copied, a) {
		t.Error("CopyBytes failed")
	}
	copied[0] = 0xFF
	if a[0] == 0xFF {
		t.Error("CopyBytes should return a new slice")
	}

	WipeBytes(copied)
	if !bytes.Equal(copied, make([]byte, 3)) {
		t.Errorf("WipeBytes left %v", copied)
	}
}

func TestEncoding(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0x00, 0x10}
	encoded := EncodeB64(raw)
	if encoded != "-_8AEA" {
		t.Errorf("unexpected encoding %q", encoded)
	}
	decoded, err := DecodeB64(encoded)
	if err != nil {
		t.Fatalf("DecodeB64 failed: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Errorf("expected %x, got %x", raw, decoded)
	}

	for _, bad := range []string{"-_8AEA==", "+/8AEA", "-_8A\nEA", "-_8AE", "-_8AEB", "a b"} {
		if _, err := DecodeB64(bad); !errors.Is(err, ErrEncoding) {
			t.Errorf("DecodeB64(%q) expected ErrEncoding, got %v", bad, err)
		}
	}

	if Normalize("\u00e9") != Normalize("e\u0301") {
		t.Error("Normalize should map composed and decomposed forms together")
	}
}

func TestRandomBytes(t *testing.T) {
	b1, err := RandomBytes(nil, 32)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	b2, err := RandomBytes(nil, 32)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	if len(b1) != 32 {
		t.Errorf("expected 32 bytes, got %d", len(b1))
	}
	if bytes.Equal(b1, b2) {
		t.Error("RandomBytes should produce different outputs")
	}

	fixed, err := RandomBytes(bytes.NewReader([]byte{1, 2, 3}), 3)
	if err != nil {
		t.Fatalf("RandomBytes with reader failed: %v", err)
	}
	if !bytes.Equal(fixed, []byte{1, 2, 3}) {
		t.Errorf("expected reader bytes, got %v", fixed)
	}
	if _, err := RandomBytes(bytes.NewReader([]byte{1}), 3); err == nil {
		t.Error("expected error on short reader")
	}
}

func TestDecodeObject(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"b":1,"a":{"x":"y"}}`))
	if err != nil {
		t.Fatalf("DecodeObject failed: %v", err)
	}
	if string(obj["b"]) != "1" || string(obj["a"]) != `{"x":"y"}` {
		t.Errorf("unexpected members: %v", obj)
	}

	for _, in := range []string{
		`{"a":1,"a":2}`,
		`{"a":1} {}`,
		`[1,2]`,
		`{"a":`,
		``,
	} {
		if _, err := DecodeObject([]byte(in)); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
	if _, err := DecodeObject([]byte(`{"a":1,"a":2}`)); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestParseUint(t *testing.T) {
	n, err := ParseUint([]byte("310000"), 32)
	if err != nil || n != 310000 {
		t.Fatalf("ParseUint = %d, %v", n, err)
	}
	if n, err := ParseUint([]byte("0"), 32); err != nil || n != 0 {
		t.Errorf("ParseUint(0) = %d, %v", n, err)
	}
	for _, in := range []string{"03", "3.0", "3e0", "-1", `"3"`, "", "4294967296"} {
		if _, err := ParseUint([]byte(in), 32); !errors.Is(err, ErrNumberFormat) {
			t.Errorf("ParseUint(%q): expected ErrNumberFormat, got %v", in, err)
		}
	}
}

func TestParseString(t *testing.T) {
	s, err := ParseString([]byte(`"abc"`))
	if err != nil || s != "abc" {
		t.Fatalf("ParseString = %q, %v", s, err)
	}
	if _, err := ParseString([]byte("12")); err == nil {
		t.Error("expected error for number")
	}
}
