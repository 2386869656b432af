package cmd

import (
	"fmt"
	"io"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

const banner = `
  ___                ____             _
 |_ _|_ __ ___  _ __/ ___|  ___  __ _| |
  | || '__/ _ \| '_ \___ \ / _ \/ _` + "`" + ` | |
  | || | | (_) | | | |__) |  __/ (_| | |
 |___|_|  \___/|_| |_|____/ \___|\__,_|_|
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m\n", banner)
	fmt.Fprintf(w, "\x1b[32m  Client-side record encryption - Version %s\x1b[0m\n\n", Version)
}
