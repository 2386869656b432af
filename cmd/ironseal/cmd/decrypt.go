package cmd

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/jmcleod/ironseal/internal/util"
)

var (
	decryptID  string
	decryptOut string
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt [record-file]",
	Short: "Open a record of any schema",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blob, err := loadRecord(cmd.InOrStdin(), args, decryptID)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		secret, err := readSecret(cmd.ErrOrStderr(), false)
		if err != nil {
			return err
		}
		pt, err := a.router.DecryptAny(cmd.Context(), a.session, blob, secret)
		if err != nil {
			return err
		}
		defer util.WipeBytes(pt)
		return writeOutput(cmd.OutOrStdout(), decryptOut, pt)
	},
}

func init() {
	rootCmd.AddCommand(decryptCmd)
	decryptCmd.Flags().StringVar(&decryptID, "id", "", "Read the record with this id from --store")
	decryptCmd.Flags().StringVar(&decryptOut, "out", "", "Plaintext file (default stdout)")
	addStoreFlags(decryptCmd)
}

// loadRecord returns the record named by id in the configured store, or the
// contents of the file in args, or stdin.
func loadRecord(stdin io.Reader, args []string, id string) ([]byte, error) {
	if id == "" {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		return readInput(stdin, path)
	}
	if len(args) > 0 {
		return nil, errors.New("--id and a record file are mutually exclusive")
	}
	if storeKind == "" {
		return nil, errors.New("--id requires --store")
	}
	s, err := openStore(storeKind, dataDir)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Get(namespace, id)
}
