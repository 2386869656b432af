package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmcleod/ironseal/storage"
	bboltstorage "github.com/jmcleod/ironseal/storage/bbolt"
	sqlitestorage "github.com/jmcleod/ironseal/storage/sqlite"
)

var (
	storeKind string
	dataDir   string
	namespace string
)

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&storeKind, "store", "", "Record store: bbolt or sqlite")
	cmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for the record store")
	cmd.Flags().StringVar(&namespace, "namespace", "default", "Store namespace records are grouped under")
}

type store interface {
	storage.Repository
	io.Closer
}

func openStore(kind, dir string) (store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	switch kind {
	case "bbolt":
		s, err := bboltstorage.NewRepositoryFromFile(filepath.Join(dir, "records.db"), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open record store: %w", err)
		}
		return s, nil
	case "sqlite":
		s, err := sqlitestorage.Open(filepath.Join(dir, "records.sqlite"))
		if err != nil {
			return nil, fmt.Errorf("failed to open record store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store %q (want bbolt or sqlite)", kind)
	}
}
