// Package bbolt provides a BBolt-backed storage repository.
package bbolt

import (
	"bytes"
	"fmt"

	"github.com/jmcleod/ironseal/storage"
	"go.etcd.io/bbolt"
)

// Store implements storage.Repository backed by a BBolt database. Each
// namespace is a bucket.
type Store struct {
	db *bbolt.DB
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(namespace, id string, blob []byte) error {
	if err := storage.CheckKey(namespace, id); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		return b.Put([]byte(id), blob)
	})
}

func (s *Store) Get(namespace, id string) ([]byte, error) {
	var blob []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data, err := get(tx, namespace, id)
		if err != nil {
			return err
		}
		// Values are only valid for the life of the transaction.
		blob = bytes.Clone(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

func get(tx *bbolt.Tx, namespace, id string) ([]byte, error) {
	notFound := fmt.Errorf("%s/%s: %w", namespace, id, storage.ErrNotFound)
	b := tx.Bucket([]byte(namespace))
	if b == nil {
		return nil, notFound
	}
	data := b.Get([]byte(id))
	if data == nil {
		return nil, notFound
	}
	return data, nil
}

func (s *Store) Delete(namespace, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := get(tx, namespace, id); err != nil {
			return err
		}
		return tx.Bucket([]byte(namespace)).Delete([]byte(id))
	})
}

// List returns ids in key order.
func (s *Store) List(namespace string) ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

func (s *Store) Replace(namespace, id string, expected, blob []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		existing, err := get(tx, namespace, id)
		if err != nil {
			return err
		}
		if !bytes.Equal(existing, expected) {
			return storage.ErrCASFailed
		}
		return tx.Bucket([]byte(namespace)).Put([]byte(id), blob)
	})
}
