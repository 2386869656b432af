package session

import (
	"io"
	"sync"

	"github.com/jmcleod/ironseal/crypto"
	"github.com/jmcleod/ironseal/errcode"
	"github.com/jmcleod/ironseal/internal/util"
)

type iv [util.GCMNonceSize]byte

type ivEntry struct {
	mu   sync.Mutex
	seen map[iv]struct{}
}

// IVRegistry records every IV issued per key id in this session. Concurrent
// callers on the same key id are serialized on that key's entry only.
//
// The registry lives in memory and cannot see IVs issued by another process
// or by an earlier session.
type IVRegistry struct {
	mu      sync.RWMutex
	entries map[crypto.KeyID]*ivEntry
}

// NewIVRegistry returns an empty registry.
func NewIVRegistry() *IVRegistry {
	return &IVRegistry{entries: make(map[crypto.KeyID]*ivEntry)}
}

func (r *IVRegistry) entry(id crypto.KeyID) *ivEntry {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.entries[id]; !ok {
		e = &ivEntry{seen: make(map[iv]struct{})}
		r.entries[id] = e
	}
	return e
}

// CheckAndRegister registers nonce for id, or returns IV_REUSE_BLOCKED if it
// was already registered. The check and the insert are one atomic step.
func (r *IVRegistry) CheckAndRegister(id crypto.KeyID, nonce []byte) error {
	if len(nonce) != util.GCMNonceSize {
		return errcode.Errorf(errcode.ParamMismatch, "ivregistry.register", "iv length %d, want %d", len(nonce), util.GCMNonceSize)
	}
	var k iv
	copy(k[:], nonce)

	e := r.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.seen[k]; dup {
		return errcode.Errorf(errcode.IVReuseBlocked, "ivregistry.register", "iv already used for this key")
	}
	e.seen[k] = struct{}{}
	return nil
}

// Issue draws a fresh IV from rand and registers it for id. A collision is
// reported as IV_REUSE_BLOCKED; Issue does not draw again.
func (r *IVRegistry) Issue(rand io.Reader, id crypto.KeyID) ([]byte, error) {
	nonce, err := util.RandomBytes(rand, util.GCMNonceSize)
	if err != nil {
		return nil, err
	}
	if err := r.CheckAndRegister(id, nonce); err != nil {
		return nil, err
	}
	return nonce, nil
}

// Count returns how many IVs are registered for id.
func (r *IVRegistry) Count(id crypto.KeyID) int {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.seen)
}

// Reset forgets every registered IV.
func (r *IVRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[crypto.KeyID]*ivEntry)
}
