package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/ironseal/internal/util"
	"github.com/jmcleod/ironseal/storage"
)

var (
	encryptIn     string
	encryptOut    string
	encryptLegacy bool
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Seal a file or stdin into an encrypted record",
	Long: `Reads plaintext from --in (or stdin) and writes the sealed record to --out
(or stdout). With --store the record is saved under a fresh id instead, and
the id is printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		pt, err := readInput(cmd.InOrStdin(), encryptIn)
		if err != nil {
			return err
		}
		defer util.WipeBytes(pt)

		secret, err := readSecret(cmd.ErrOrStderr(), true)
		if err != nil {
			return err
		}
		warnWeakSecret(cmd.ErrOrStderr(), secret)

		out, err := seal(cmd.Context(), a, pt, secret, encryptLegacy)
		if err != nil {
			return err
		}

		if storeKind == "" {
			return writeOutput(cmd.OutOrStdout(), encryptOut, out)
		}
		s, err := openStore(storeKind, dataDir)
		if err != nil {
			return err
		}
		defer s.Close()
		id, err := saveRecord(s, namespace, out)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(encryptCmd)
	encryptCmd.Flags().StringVar(&encryptIn, "in", "", "Plaintext file (default stdin)")
	encryptCmd.Flags().StringVar(&encryptOut, "out", "", "Record file (default stdout)")
	encryptCmd.Flags().BoolVar(&encryptLegacy, "legacy", false, "Write a schema 1 record for old clients")
	addStoreFlags(encryptCmd)
}

func seal(ctx context.Context, a *app, plaintext []byte, secret string, legacy bool) ([]byte, error) {
	if legacy {
		a.logger.Warn("writing legacy schema record")
		return a.router.SealLegacy(ctx, a.session, plaintext, secret)
	}
	return a.engine.Encrypt(ctx, a.session, plaintext, secret)
}

func saveRecord(repo storage.Repository, ns string, blob []byte) (string, error) {
	id := storage.NewID()
	if err := repo.Put(ns, id, blob); err != nil {
		return "", fmt.Errorf("saving record: %w", err)
	}
	return id, nil
}
