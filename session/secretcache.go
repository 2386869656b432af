package session

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/awnumar/memguard"
)

// ErrEmptySecret is returned when caching an empty secret.
var ErrEmptySecret = errors.New("secret must not be empty")

// SecretReader is the read side of a SecretCache.
type SecretReader interface {
	Get() (string, bool)
}

type cachedSecret struct {
	enclave  *memguard.Enclave
	lastUsed atomic.Int64
}

// SecretCache holds one secret in a memguard enclave and forgets it after a
// period of inactivity. Set and Clear belong to the owner; any number of
// goroutines may call Get. Clear swaps the whole state out at once, so a
// reader sees either the secret or nothing.
type SecretCache struct {
	ttl   time.Duration
	now   func() time.Time
	state atomic.Pointer[cachedSecret]
}

// CacheOption configures a SecretCache.
type CacheOption func(*SecretCache)

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) CacheOption {
	return func(c *SecretCache) {
		c.now = now
	}
}

// NewSecretCache returns an empty cache whose entry expires ttl after its
// last use.
func NewSecretCache(ttl time.Duration, opts ...CacheOption) *SecretCache {
	c := &SecretCache{ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set replaces the cached secret.
func (c *SecretCache) Set(secret string) error {
	if secret == "" {
		return ErrEmptySecret
	}
	// NewEnclave wipes its input, so hand it a private copy.
	s := &cachedSecret{enclave: memguard.NewEnclave([]byte(secret))}
	s.lastUsed.Store(c.now().UnixNano())
	c.state.Store(s)
	return nil
}

// Clear drops the cached secret.
func (c *SecretCache) Clear() {
	c.state.Store(nil)
}

// Get returns the cached secret and refreshes its inactivity timer. An
// expired entry is dropped and reported as absent.
func (c *SecretCache) Get() (string, bool) {
	s := c.state.Load()
	if s == nil {
		return "", false
	}
	now := c.now()
	if now.Sub(time.Unix(0, s.lastUsed.Load())) >= c.ttl {
		c.state.CompareAndSwap(s, nil)
		return "", false
	}

	buf, err := s.enclave.Open()
	if err != nil {
		return "", false
	}
	defer buf.Destroy()
	s.lastUsed.Store(now.UnixNano())
	return string(buf.Bytes()), true
}
