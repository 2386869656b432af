package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jmcleod/ironseal/kdf"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report which key derivation strategy this machine supports",
	Long: `Probes for memory-hard Argon2id support and prints the profile new records
would be sealed with for the selected device class. Without Argon2id this
includes a PBKDF2 calibration run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runProbe(cmd.Context(), a.session.KDF(), kdf.DeviceClass(deviceClass), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(ctx context.Context, mgr *kdf.Manager, class kdf.DeviceClass, w io.Writer) error {
	c, err := mgr.ProbeCapability(ctx)
	if err != nil {
		return err
	}
	p, err := mgr.SelectProfile(ctx, class)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "memory-hard: %t\n", c.MemoryHard)
	fmt.Fprintf(w, "baseline:    %t\n", c.Baseline)
	fmt.Fprintf(w, "preferred:   %s\n", c.Preferred())
	fmt.Fprintf(w, "profile:     %s\n", p)
	return nil
}
