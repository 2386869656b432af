package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jmcleod/ironseal/migrate"
)

var (
	identifyID   string
	identifyJSON bool
)

var identifyCmd = &cobra.Command{
	Use:   "identify [record-file]",
	Short: "Show a record's schema and KDF without decrypting it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blob, err := loadRecord(cmd.InOrStdin(), args, identifyID)
		if err != nil {
			return err
		}
		return describe(cmd.OutOrStdout(), blob, identifyJSON)
	},
}

func init() {
	rootCmd.AddCommand(identifyCmd)
	identifyCmd.Flags().StringVar(&identifyID, "id", "", "Read the record with this id from --store")
	identifyCmd.Flags().BoolVar(&identifyJSON, "json", false, "Output as JSON")
	addStoreFlags(identifyCmd)
}

type identifyResult struct {
	Schema         int    `json:"schema"`
	KDF            string `json:"kdf"`
	Profile        string `json:"profile"`
	Legacy         bool   `json:"legacy"`
	NeedsMigration bool   `json:"needs_migration"`
}

func describe(w io.Writer, blob []byte, asJSON bool) error {
	id, err := migrate.Identify(blob)
	if err != nil {
		return err
	}
	res := identifyResult{
		Schema:         id.Schema,
		KDF:            string(id.KDF),
		Profile:        id.Profile.String(),
		Legacy:         id.Legacy,
		NeedsMigration: migrate.NeedsMigration(id),
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(w, "schema:          %d\n", res.Schema)
	fmt.Fprintf(w, "kdf:             %s\n", res.KDF)
	fmt.Fprintf(w, "profile:         %s\n", res.Profile)
	fmt.Fprintf(w, "legacy:          %t\n", res.Legacy)
	fmt.Fprintf(w, "needs migration: %t\n", res.NeedsMigration)
	return nil
}
