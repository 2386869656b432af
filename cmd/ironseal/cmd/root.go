package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmcleod/ironseal/crypto"
	"github.com/jmcleod/ironseal/engine"
	"github.com/jmcleod/ironseal/kdf"
	"github.com/jmcleod/ironseal/migrate"
	"github.com/jmcleod/ironseal/session"
)

var (
	verbose     bool
	mode        string
	deviceClass string
	secretEnv   string
	noMemHard   bool
)

var rootCmd = &cobra.Command{
	Use:   "ironseal",
	Short: "IronSeal encrypts records on the client",
	Long: `Turns plaintext into self-describing, authenticated ciphertext records and back.
Secrets and keys never leave this process; stores only ever see opaque blobs.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		printBanner(cmd.OutOrStdout())
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", string(crypto.ModeAccount), "Identity domain: wallet, account or guest")
	rootCmd.PersistentFlags().StringVar(&deviceClass, "device-class", string(kdf.Desktop), "KDF profile class: mobile, desktop or server")
	rootCmd.PersistentFlags().StringVar(&secretEnv, "secret-env", "", "Read the secret from this environment variable instead of prompting")
	rootCmd.PersistentFlags().BoolVar(&noMemHard, "no-memory-hard", false, "Pretend Argon2id is unavailable and use calibrated PBKDF2")
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// app bundles what every command needs for one invocation.
type app struct {
	logger  *slog.Logger
	session *session.Session
	engine  *engine.Engine
	router  *migrate.Router
}

func newApp() (*app, error) {
	logger := newLogger()

	e, err := engine.New(
		engine.WithLogger(logger),
		engine.WithMode(crypto.Mode(mode)),
		engine.WithDeviceClass(kdf.DeviceClass(deviceClass)),
	)
	if err != nil {
		return nil, fmt.Errorf("configuring engine: %w", err)
	}

	var kdfOpts []kdf.Option
	if noMemHard {
		kdfOpts = append(kdfOpts, kdf.WithCapabilityProbe(func() bool { return false }))
	}
	sess := session.New(session.WithLogger(logger), session.WithKDFOptions(kdfOpts...))
	return &app{
		logger:  logger,
		session: sess,
		engine:  e,
		router:  migrate.NewRouter(e, migrate.WithLogger(logger)),
	}, nil
}

func (a *app) Close() {
	a.session.Close()
}
