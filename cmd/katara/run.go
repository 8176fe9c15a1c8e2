package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/arneph/katara/internal/driver"
)

// newRunCmd builds, emits to an executable page, and jumps to the
// function named main: spec.md §6's `run` verb. The process's own exit
// code becomes main's return value, matching
// original_source/src/cmd/run.cc's ErrorCode(main_func()). The argument is
// a file path, or "-" for stdin.
func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run <ir-file>",
		Short: "build, JIT-encode, and execute a program's entry func (\"-\" for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			p := flags.newPipeline()
			res, err := p.Compile(f)
			if err != nil {
				return err
			}

			ret, err := driver.Run(res)
			if err != nil {
				return err
			}
			os.Exit(int(ret))
			return nil
		},
	}
}
