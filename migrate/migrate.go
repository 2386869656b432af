// Package migrate routes serialized records to the decoder for their
// schema. Versioned records go to the engine; pre-header legacy records are
// opened with their fixed parameters. Re-encryption under the current schema
// is always an explicit call.
package migrate

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"github.com/jmcleod/ironseal/crypto"
	"github.com/jmcleod/ironseal/engine"
	"github.com/jmcleod/ironseal/errcode"
	"github.com/jmcleod/ironseal/header"
	"github.com/jmcleod/ironseal/internal/util"
	"github.com/jmcleod/ironseal/kdf"
	"github.com/jmcleod/ironseal/record"
	"github.com/jmcleod/ironseal/session"
)

// Identity describes a serialized record without decrypting it.
type Identity struct {
	Schema  int
	KDF     kdf.Algorithm
	Profile kdf.Profile
	Legacy  bool
}

// Identify reports the schema and KDF of b. A versioned record is parsed
// first; only input that cannot be a versioned record is tried as legacy.
func Identify(b []byte) (Identity, error) {
	rec, err := record.Unmarshal(b)
	if err == nil {
		return Identity{Schema: rec.Header.Schema, KDF: rec.Header.KDF(), Profile: rec.Header.Profile}, nil
	}
	if looksVersioned(b) {
		return Identity{}, err
	}
	if _, lerr := parseLegacy(b); lerr != nil {
		return Identity{}, lerr
	}
	p := LegacyProfile()
	return Identity{Schema: header.SchemaLegacy, KDF: p.Algorithm, Profile: p, Legacy: true}, nil
}

func looksVersioned(b []byte) bool {
	t := bytes.TrimSpace(b)
	return len(t) > 0 && t[0] == '{'
}

// Router decrypts records of any schema.
type Router struct {
	logger *slog.Logger
	engine *engine.Engine
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger.With("component", "migrate")
	}
}

// NewRouter returns a Router that hands versioned records to e and encrypts
// migrated records with it.
func NewRouter(e *engine.Engine, opts ...Option) *Router {
	r := &Router{
		logger: slog.Default().With("component", "migrate"),
		engine: e,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DecryptAny returns the plaintext of b whatever its schema.
func (r *Router) DecryptAny(ctx context.Context, sess *session.Session, b []byte, secret string) ([]byte, error) {
	pt, _, err := r.decrypt(ctx, sess, b, secret)
	return pt, err
}

func (r *Router) decrypt(ctx context.Context, sess *session.Session, b []byte, secret string) ([]byte, Identity, error) {
	id, err := Identify(b)
	if err != nil {
		return nil, Identity{}, err
	}
	if !id.Legacy {
		pt, err := r.engine.Decrypt(ctx, sess, b, secret)
		return pt, id, err
	}

	l, err := parseLegacy(b)
	if err != nil {
		return nil, id, err
	}
	if secret, err = sess.ResolveSecret(secret); err != nil {
		return nil, id, err
	}
	key, err := crypto.DeriveKey(ctx, sess.KDF(), secret, l.salt, LegacyProfile())
	if err != nil {
		return nil, id, err
	}
	defer key.Wipe()

	pt, err := engine.DecryptWithKey(l.ciphertext, key, l.iv, []byte{})
	if errors.Is(err, errcode.ErrDataCorrupted) {
		// Legacy records carry no key id, so a tag failure cannot be told
		// apart from a wrong secret.
		r.logger.Debug("legacy record failed authentication", "schema", header.SchemaLegacy)
		return nil, id, errcode.New(errcode.InvalidKey, "migrate.decrypt", err)
	}
	return pt, id, err
}

// NeedsMigration reports whether records with id should be re-encrypted.
func NeedsMigration(id Identity) bool {
	return id.Legacy || id.Schema < header.Current
}

// Reencrypt decrypts b and encrypts the plaintext again under the current
// schema and the engine's profile. It returns the new record; persisting it
// is up to the caller.
func (r *Router) Reencrypt(ctx context.Context, sess *session.Session, b []byte, secret string) ([]byte, error) {
	pt, id, err := r.decrypt(ctx, sess, b, secret)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(pt)

	out, err := r.engine.Encrypt(ctx, sess, pt, secret)
	if err != nil {
		return nil, err
	}
	r.logger.Info("record re-encrypted", "from_schema", id.Schema, "from_kdf", id.KDF, "to_schema", header.Current)
	return out, nil
}

// SealLegacy writes plaintext as a schema 1 record. It exists for
// interoperability tests and exports to old clients; new data should use the
// engine.
func (r *Router) SealLegacy(ctx context.Context, sess *session.Session, plaintext []byte, secret string) ([]byte, error) {
	secret, err := sess.ResolveSecret(secret)
	if err != nil {
		return nil, err
	}
	salt, err := sess.RandomBytes(LegacySaltSize)
	if err != nil {
		return nil, err
	}
	key, err := crypto.DeriveKey(ctx, sess.KDF(), secret, salt, LegacyProfile())
	if err != nil {
		return nil, err
	}
	defer key.Wipe()

	keyID, err := crypto.DeriveKeyID(key, r.engine.Mode())
	if err != nil {
		return nil, err
	}
	iv, err := sess.IVs().Issue(sess.Random(), keyID)
	if err != nil {
		return nil, err
	}
	ct, err := engine.EncryptWithKey(plaintext, key, iv, []byte{})
	if err != nil {
		return nil, err
	}
	return legacyRecord{salt: salt, iv: iv, ciphertext: ct}.encode(), nil
}
