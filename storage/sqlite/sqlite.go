// Package sqlite provides a SQLite-backed storage repository using the pure
// Go modernc driver.
package sqlite

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/jmcleod/ironseal/storage"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS blobs (
	namespace  TEXT NOT NULL,
	id         TEXT NOT NULL,
	blob       BLOB NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (namespace, id)
);
`

// Store implements storage.Repository on a single SQLite table.
type Store struct {
	db *sql.DB
}

var _ storage.Repository = (*Store)(nil)

// Open creates or opens the database at path, restricts it to the owner and
// ensures the schema exists.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(path, 0o600); err != nil && !os.IsNotExist(err) {
			db.Close()
			return nil, fmt.Errorf("chmod database: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(namespace, id string, blob []byte) error {
	if err := storage.CheckKey(namespace, id); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO blobs (namespace, id, blob) VALUES (?, ?, ?)
		 ON CONFLICT(namespace, id) DO UPDATE SET blob = excluded.blob, updated_at = CURRENT_TIMESTAMP`,
		namespace, id, blob,
	)
	if err != nil {
		return fmt.Errorf("put blob: %w", err)
	}
	return nil
}

func (s *Store) Get(namespace, id string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT blob FROM blobs WHERE namespace = ? AND id = ?`, namespace, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", namespace, id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	return blob, nil
}

// List returns ids in lexicographic order.
func (s *Store) List(namespace string) ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM blobs WHERE namespace = ? ORDER BY id`, namespace)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Delete(namespace, id string) error {
	res, err := s.db.Exec(`DELETE FROM blobs WHERE namespace = ? AND id = ?`, namespace, id)
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", namespace, id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) Replace(namespace, id string, expected, blob []byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var existing []byte
	err = tx.QueryRow(`SELECT blob FROM blobs WHERE namespace = ? AND id = ?`, namespace, id).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", namespace, id, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get blob: %w", err)
	}
	if !bytes.Equal(existing, expected) {
		return storage.ErrCASFailed
	}
	if _, err := tx.Exec(
		`UPDATE blobs SET blob = ?, updated_at = CURRENT_TIMESTAMP WHERE namespace = ? AND id = ?`,
		blob, namespace, id,
	); err != nil {
		return fmt.Errorf("replace blob: %w", err)
	}
	return tx.Commit()
}
