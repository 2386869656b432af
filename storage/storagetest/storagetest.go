// Package storagetest holds the behaviour every storage.Repository must
// share, run against each implementation from its own tests.
package storagetest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jmcleod/ironseal/storage"
)

// Run exercises repo. It expects an empty repository.
func Run(t *testing.T, repo storage.Repository) {
	t.Helper()
	ns := "account"
	blob := []byte(`{"ciphertext":"AAAA","header":{}}`)

	t.Run("PutGet", func(t *testing.T) {
		id := storage.NewID()
		if err := repo.Put(ns, id, blob); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := repo.Get(ns, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, blob) {
			t.Errorf("Get returned %q, want %q", got, blob)
		}

		// Returned blobs are copies.
		got[0] = 'X'
		again, _ := repo.Get(ns, id)
		if again[0] != '{' {
			t.Error("mutating a returned blob changed the stored one")
		}
	})

	t.Run("InputIsCopied", func(t *testing.T) {
		id := storage.NewID()
		in := bytes.Clone(blob)
		if err := repo.Put(ns, id, in); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		in[0] = 'X'
		got, _ := repo.Get(ns, id)
		if got[0] != '{' {
			t.Error("mutating the input changed the stored blob")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		id := storage.NewID()
		_ = repo.Put(ns, id, []byte("v1"))
		if err := repo.Put(ns, id, []byte("v2")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, _ := repo.Get(ns, id)
		if string(got) != "v2" {
			t.Errorf("expected v2, got %q", got)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.Get(ns, "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := repo.Get("no-such-namespace", "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.Delete(ns, "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.Replace(ns, "missing", blob, blob); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InvalidKey", func(t *testing.T) {
		if err := repo.Put("", "id", blob); !errors.Is(err, storage.ErrInvalidKey) {
			t.Errorf("expected ErrInvalidKey, got %v", err)
		}
		if err := repo.Put(ns, "", blob); !errors.Is(err, storage.ErrInvalidKey) {
			t.Errorf("expected ErrInvalidKey, got %v", err)
		}
	})

	t.Run("ListAndNamespaces", func(t *testing.T) {
		other := "guest"
		ids := []string{"b", "a", "c"}
		for _, id := range ids {
			if err := repo.Put(other, id, blob); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
		}
		got, err := repo.List(other)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		want := []string{"a", "b", "c"}
		if len(got) != len(want) {
			t.Fatalf("List = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("List[%d] = %q, want %q", i, got[i], want[i])
			}
		}

		empty, err := repo.List("nobody")
		if err != nil {
			t.Errorf("List of unknown namespace failed: %v", err)
		}
		if len(empty) != 0 {
			t.Errorf("expected no ids, got %v", empty)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		id := storage.NewID()
		_ = repo.Put(ns, id, blob)
		if err := repo.Delete(ns, id); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := repo.Get(ns, id); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("Replace", func(t *testing.T) {
		id := storage.NewID()
		_ = repo.Put(ns, id, []byte("old"))

		if err := repo.Replace(ns, id, []byte("stale"), []byte("new")); !errors.Is(err, storage.ErrCASFailed) {
			t.Errorf("expected ErrCASFailed, got %v", err)
		}
		if err := repo.Replace(ns, id, []byte("old"), []byte("new")); err != nil {
			t.Fatalf("Replace failed: %v", err)
		}
		got, _ := repo.Get(ns, id)
		if string(got) != "new" {
			t.Errorf("expected new, got %q", got)
		}
	})
}
