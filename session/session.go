// Package session holds the per-session state every engine call needs: the
// KDF manager with its cached capability probe, the IV registry and an
// optional secret cache. Independent sessions share nothing, so tests and
// multiple accounts in one process do not interfere.
//
// IV reuse tracking is per session. Two sessions, or one session restarted
// without state, can in principle issue the same IV for the same key. Random
// 96-bit IVs make that unlikely but the registry cannot rule it out.
package session

import (
	"io"
	"log/slog"
	"time"

	"github.com/jmcleod/ironseal/errcode"
	"github.com/jmcleod/ironseal/internal/util"
	"github.com/jmcleod/ironseal/kdf"
)

// Session is the explicit context object passed into engine calls.
type Session struct {
	logger  *slog.Logger
	kdf     *kdf.Manager
	kdfOpts []kdf.Option
	ivs     *IVRegistry
	rand    io.Reader
	secrets *SecretCache
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger for the session and its KDF manager.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithRandom sets the entropy source for salts and IVs. Default: crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(s *Session) {
		s.rand = r
	}
}

// WithKDFOptions passes options to the session's KDF manager.
func WithKDFOptions(opts ...kdf.Option) Option {
	return func(s *Session) {
		s.kdfOpts = append(s.kdfOpts, opts...)
	}
}

// WithSecretCache enables a secret cache that expires after ttl of inactivity.
func WithSecretCache(ttl time.Duration, opts ...CacheOption) Option {
	return func(s *Session) {
		s.secrets = NewSecretCache(ttl, opts...)
	}
}

// New creates a session.
func New(opts ...Option) *Session {
	s := &Session{
		logger: slog.Default(),
		ivs:    NewIVRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	kdfOpts := append([]kdf.Option{kdf.WithLogger(s.logger)}, s.kdfOpts...)
	s.kdf = kdf.NewManager(kdfOpts...)
	s.logger = s.logger.With("component", "session")
	return s
}

// KDF returns the session's KDF manager.
func (s *Session) KDF() *kdf.Manager {
	return s.kdf
}

// IVs returns the session's IV registry.
func (s *Session) IVs() *IVRegistry {
	return s.ivs
}

// RandomBytes reads n bytes from the session's entropy source.
func (s *Session) RandomBytes(n int) ([]byte, error) {
	return util.RandomBytes(s.rand, n)
}

// Random returns the configured entropy source, or nil for crypto/rand.
func (s *Session) Random() io.Reader {
	return s.rand
}

// Secrets returns the read side of the secret cache, or nil if the session
// has none.
func (s *Session) Secrets() SecretReader {
	if s.secrets == nil {
		return nil
	}
	return s.secrets
}

// SecretCache returns the owner handle of the secret cache, or nil.
func (s *Session) SecretCache() *SecretCache {
	return s.secrets
}

// ResolveSecret returns secret, or the cached secret when secret is empty.
// With neither it fails with PARAM_MISMATCH.
func (s *Session) ResolveSecret(secret string) (string, error) {
	if secret != "" {
		return secret, nil
	}
	if s.secrets != nil {
		if cached, ok := s.secrets.Get(); ok {
			return cached, nil
		}
	}
	return "", errcode.Errorf(errcode.ParamMismatch, "session.secret", "no secret supplied and none cached")
}

// Reset clears the IV registry and the secret cache, e.g. on logout.
func (s *Session) Reset() {
	s.ivs.Reset()
	if s.secrets != nil {
		s.secrets.Clear()
	}
	s.logger.Debug("session reset")
}

// Close ends the session. The session must not be used afterwards.
func (s *Session) Close() {
	s.Reset()
	s.kdf.InvalidateCapability()
}
