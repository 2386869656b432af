package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jmcleod/ironseal/migrate"
	"github.com/jmcleod/ironseal/storage"
)

var migrateApply bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Re-encrypt stored records that predate the current schema",
	Long: `Lists the records in --namespace that need migration. With --apply each one is
decrypted and sealed again under the current schema, and written back only if
the stored record has not changed in the meantime.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if storeKind == "" {
			return errors.New("migrate requires --store")
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := openStore(storeKind, dataDir)
		if err != nil {
			return err
		}
		defer s.Close()

		var secret string
		if migrateApply {
			if secret, err = readSecret(cmd.ErrOrStderr(), false); err != nil {
				return err
			}
		}
		res, err := migrateNamespace(cmd.Context(), a, s, namespace, secret, migrateApply, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d pending, %d migrated, %d skipped\n", res.Pending, res.Migrated, res.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateApply, "apply", false, "Re-encrypt and write back pending records")
	addStoreFlags(migrateCmd)
}

type migrateResult struct {
	Pending  int
	Migrated int
	Skipped  int
}

// migrateNamespace walks every record in ns. Records that cannot be
// identified are skipped, not fatal. A record changed by someone else between
// the read and the write is left alone.
func migrateNamespace(ctx context.Context, a *app, repo storage.Repository, ns, secret string, apply bool, w io.Writer) (migrateResult, error) {
	var res migrateResult
	ids, err := repo.List(ns)
	if err != nil {
		return res, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		blob, err := repo.Get(ns, id)
		if err != nil {
			return res, err
		}
		ident, err := migrate.Identify(blob)
		if err != nil {
			a.logger.Warn("skipping unreadable record", "namespace", ns, "id", id, "error", err)
			res.Skipped++
			continue
		}
		if !migrate.NeedsMigration(ident) {
			continue
		}
		if !apply {
			fmt.Fprintf(w, "%s\tschema %d\t%s\n", id, ident.Schema, ident.KDF)
			res.Pending++
			continue
		}

		out, err := a.router.Reencrypt(ctx, a.session, blob, secret)
		if err != nil {
			return res, fmt.Errorf("re-encrypting %s: %w", id, err)
		}
		err = repo.Replace(ns, id, blob, out)
		if errors.Is(err, storage.ErrCASFailed) || errors.Is(err, storage.ErrNotFound) {
			a.logger.Warn("record changed during migration", "namespace", ns, "id", id)
			res.Skipped++
			continue
		}
		if err != nil {
			return res, err
		}
		fmt.Fprintf(w, "%s\tmigrated\n", id)
		res.Migrated++
	}
	return res, nil
}
