package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// openInput opens path for reading, treating "-" as stdin — the common CLI
// convention the original's own file-argument handling does not need (it
// always reads from a package directory), but which fits naturally now that
// this module's `compile`/`run` take a single IR text stream.
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(path)
}
