// Package engine encrypts plaintext into self-describing records and
// decrypts them again.
//
// Encryption derives a key from the secret and a fresh salt, issues an IV
// through the session's registry, binds the canonical header as AAD and
// seals with AES-256-GCM. Decryption always uses the parameters recorded in
// the header, never the current defaults.
//
// When authentication fails the engine spends no extra KDF work to explain
// it. It compares the key id recorded in the header with the one derived
// from the supplied secret:
//
//   - a derived id (under any mode) equal to the recorded one means the key
//     is right and the ciphertext is not: DATA_CORRUPTED
//   - a header that authenticates once its key id is replaced, or whose KDF
//     parameters disagree with the profile it names, was edited: AAD_MISMATCH
//   - anything else is a wrong secret: INVALID_KEY
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmcleod/ironseal/crypto"
	"github.com/jmcleod/ironseal/errcode"
	"github.com/jmcleod/ironseal/header"
	"github.com/jmcleod/ironseal/internal/util"
	"github.com/jmcleod/ironseal/kdf"
	"github.com/jmcleod/ironseal/record"
	"github.com/jmcleod/ironseal/session"
)

// SaltSize is the length of generated salts.
const SaltSize = kdf.MinSaltLen

// Engine encrypts and decrypts records. It is safe for concurrent use; all
// mutable state lives in the session passed to each call.
type Engine struct {
	logger  *slog.Logger
	mode    crypto.Mode
	class   kdf.DeviceClass
	profile *kdf.Profile
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.With("component", "engine")
	}
}

// WithMode sets the identity domain key ids are derived for. Default: account.
func WithMode(mode crypto.Mode) Option {
	return func(e *Engine) {
		e.mode = mode
	}
}

// WithDeviceClass sets the class used to select profiles. Default: desktop.
func WithDeviceClass(class kdf.DeviceClass) Option {
	return func(e *Engine) {
		e.class = class
	}
}

// WithProfile pins the profile used for new records instead of selecting one.
// Argon2id parameters outside the built-in set for p.Name are only
// classified correctly by sessions that register them through
// kdf.WithProfile; elsewhere a wrong secret reads as AAD_MISMATCH.
func WithProfile(p kdf.Profile) Option {
	return func(e *Engine) {
		e.profile = &p
	}
}

// WithClock sets the time source for createdAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New returns an Engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default().With("component", "engine"),
		mode:   crypto.ModeAccount,
		class:  kdf.Desktop,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.mode.Valid() {
		return nil, errcode.Errorf(errcode.ParamMismatch, "engine.new", "unknown mode %q", e.mode)
	}
	if e.profile != nil {
		if err := e.profile.Validate(); err != nil {
			return nil, err
		}
		if !e.profile.Builtin() {
			e.logger.Warn("pinned profile differs from the built-in parameters for its name", "profile", e.profile.Name, "kdf", e.profile.Algorithm)
		}
	}
	return e, nil
}

// Mode returns the identity domain of this engine.
func (e *Engine) Mode() crypto.Mode {
	return e.mode
}

// Encrypt seals plaintext and returns the serialized record. An empty
// secret is looked up in the session's secret cache.
func (e *Engine) Encrypt(ctx context.Context, sess *session.Session, plaintext []byte, secret string) ([]byte, error) {
	rec, err := e.EncryptRecord(ctx, sess, plaintext, secret)
	if err != nil {
		return nil, err
	}
	return record.Marshal(rec)
}

// EncryptRecord is Encrypt without the final serialization.
func (e *Engine) EncryptRecord(ctx context.Context, sess *session.Session, plaintext []byte, secret string) (record.Record, error) {
	secret, err := sess.ResolveSecret(secret)
	if err != nil {
		return record.Record{}, err
	}
	profile, err := e.selectProfile(ctx, sess)
	if err != nil {
		return record.Record{}, err
	}
	salt, err := sess.RandomBytes(SaltSize)
	if err != nil {
		return record.Record{}, err
	}

	key, err := crypto.DeriveKey(ctx, sess.KDF(), secret, salt, profile)
	if err != nil {
		return record.Record{}, err
	}
	defer key.Wipe()

	keyID, err := crypto.DeriveKeyID(key, e.mode)
	if err != nil {
		return record.Record{}, err
	}
	iv, err := sess.IVs().Issue(sess.Random(), keyID)
	if err != nil {
		e.logger.Warn("encryption blocked", "code", errcode.CodeOf(err))
		return record.Record{}, err
	}

	h := header.New(profile, salt, iv, keyID, e.now())
	aad, err := header.Encode(h)
	if err != nil {
		return record.Record{}, err
	}
	ct, err := EncryptWithKey(plaintext, key, iv, aad)
	if err != nil {
		return record.Record{}, err
	}

	e.logger.Debug("record encrypted", "schema", h.Schema, "kdf", h.KDF(), "profile", profile.Name)
	return record.Record{Header: h, Ciphertext: ct}, nil
}

// Decrypt parses a serialized record and returns its plaintext.
func (e *Engine) Decrypt(ctx context.Context, sess *session.Session, blob []byte, secret string) ([]byte, error) {
	rec, err := record.Unmarshal(blob)
	if err != nil {
		e.logger.Debug("record rejected", "code", errcode.CodeOf(err))
		return nil, err
	}
	return e.DecryptRecord(ctx, sess, rec, secret)
}

// DecryptRecord returns the plaintext of rec.
func (e *Engine) DecryptRecord(ctx context.Context, sess *session.Session, rec record.Record, secret string) ([]byte, error) {
	h := rec.Header
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if len(rec.Ciphertext) < TagSize {
		return nil, errcode.Errorf(errcode.DataCorrupted, "engine.decrypt", "ciphertext shorter than tag")
	}
	secret, err := sess.ResolveSecret(secret)
	if err != nil {
		return nil, err
	}
	aad, err := header.Encode(h)
	if err != nil {
		return nil, err
	}

	key, err := crypto.DeriveKey(ctx, sess.KDF(), secret, h.Salt, h.Profile)
	if err != nil {
		return nil, err
	}
	defer key.Wipe()

	pt, err := DecryptWithKey(rec.Ciphertext, key, h.IV, aad)
	if err == nil {
		return pt, nil
	}
	if !errors.Is(err, errcode.ErrDataCorrupted) {
		return nil, err
	}

	err = e.classify(sess, h, rec.Ciphertext, key)
	e.logger.Debug("record failed authentication", "kdf", h.KDF(), "profile", h.Profile.Name, "code", errcode.CodeOf(err))
	return nil, err
}

func (e *Engine) classify(sess *session.Session, h header.Header, ct []byte, key *crypto.KeyMaterial) error {
	// The header does not record the mode, so the key is confirmed against
	// every domain.
	derived := make([]crypto.KeyID, 0, len(crypto.Modes()))
	for _, m := range crypto.Modes() {
		id, err := crypto.DeriveKeyID(key, m)
		if err != nil {
			return err
		}
		if id.Equal(h.KeyID) {
			return errcode.Errorf(errcode.DataCorrupted, "engine.decrypt", "authentication failed under the recorded key")
		}
		derived = append(derived, id)
	}

	for _, id := range derived {
		aad, err := header.Encode(h.WithKeyID(id))
		if err != nil {
			continue
		}
		if pt, err := util.OpenGCM(ct, key.Bytes(), h.IV, aad); err == nil {
			util.WipeBytes(pt)
			return errcode.Errorf(errcode.AADMismatch, "engine.decrypt", "header key id was altered")
		}
	}
	if !sess.KDF().MatchesProfile(h.Profile) {
		return errcode.Errorf(errcode.AADMismatch, "engine.decrypt", "kdf parameters disagree with profile %q", h.Profile.Name)
	}
	return errcode.Errorf(errcode.InvalidKey, "engine.decrypt", "authentication failed")
}

func (e *Engine) selectProfile(ctx context.Context, sess *session.Session) (kdf.Profile, error) {
	if e.profile != nil {
		return *e.profile, nil
	}
	return sess.KDF().SelectProfile(ctx, e.class)
}
