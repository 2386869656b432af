// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/jmcleod/ironseal/internal/util"
	"github.com/jmcleod/ironseal/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing, demos, and single-process use cases.
type Repository struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]map[string][]byte)}
}

func (r *Repository) Put(namespace, id string, blob []byte) error {
	if err := storage.CheckKey(namespace, id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(namespace, id, blob)
	return nil
}

func (r *Repository) putLocked(namespace, id string, blob []byte) {
	if _, ok := r.data[namespace]; !ok {
		r.data[namespace] = make(map[string][]byte)
	}
	r.data[namespace][id] = util.CopyBytes(blob)
}

func (r *Repository) Get(namespace, id string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	blob, ok := r.data[namespace][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", namespace, id, storage.ErrNotFound)
	}
	return util.CopyBytes(blob), nil
}

// List returns ids in lexicographic order.
func (r *Repository) List(namespace string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.data[namespace]))
	for id := range r.data[namespace] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Repository) Delete(namespace, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[namespace][id]; !ok {
		return fmt.Errorf("%s/%s: %w", namespace, id, storage.ErrNotFound)
	}
	delete(r.data[namespace], id)
	return nil
}

func (r *Repository) Replace(namespace, id string, expected, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.data[namespace][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", namespace, id, storage.ErrNotFound)
	}
	if !bytes.Equal(existing, expected) {
		return storage.ErrCASFailed
	}
	r.putLocked(namespace, id, blob)
	return nil
}
