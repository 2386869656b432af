package cmd

import (
	"fmt"
	"io"
	"os"
)

// maxInputSize bounds what commands read from a file or stdin.
const maxInputSize = 64 << 20

// readInput reads path, or r when path is empty or "-".
func readInput(r io.Reader, path string) ([]byte, error) {
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(io.LimitReader(r, maxInputSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if len(b) > maxInputSize {
		return nil, fmt.Errorf("input exceeds %d bytes", maxInputSize)
	}
	return b, nil
}

// writeOutput writes data to path with owner-only permissions, or to w when
// path is empty or "-".
func writeOutput(w io.Writer, path string, data []byte) error {
	if path != "" && path != "-" {
		return os.WriteFile(path, data, 0o600)
	}
	_, err := w.Write(data)
	return err
}
