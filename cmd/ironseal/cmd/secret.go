package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/nbutton23/zxcvbn-go"
	"golang.org/x/term"
)

// minSecretScore is the zxcvbn score below which a new secret draws a warning.
const minSecretScore = 3

var errSecretMismatch = errors.New("secrets do not match")

// readSecret returns the secret from --secret-env or an interactive prompt.
// confirm asks twice, for secrets that will protect new records.
func readSecret(stderr io.Writer, confirm bool) (string, error) {
	if secretEnv != "" {
		s := os.Getenv(secretEnv)
		if s == "" {
			return "", fmt.Errorf("environment variable %s is empty", secretEnv)
		}
		return s, nil
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", errors.New("stdin is not a terminal; use --secret-env")
	}

	s, err := promptSecret(stderr, "Secret: ")
	if err != nil {
		return "", err
	}
	if confirm {
		again, err := promptSecret(stderr, "Confirm secret: ")
		if err != nil {
			return "", err
		}
		if again != s {
			return "", errSecretMismatch
		}
	}
	return s, nil
}

func promptSecret(stderr io.Writer, prompt string) (string, error) {
	fmt.Fprint(stderr, prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(stderr)
	if err != nil {
		return "", err
	}
	defer zeroBytes(pw)
	return string(pw), nil
}

// warnWeakSecret writes a warning if secret scores poorly. It never blocks.
func warnWeakSecret(stderr io.Writer, secret string) {
	if score := zxcvbn.PasswordStrength(secret, nil).Score; score < minSecretScore {
		fmt.Fprintf(stderr, "warning: secret is weak (strength %d/4); records are only as strong as the secret\n", score)
	}
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
