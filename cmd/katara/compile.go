package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCompileCmd builds IR and machine code from IR text input, without
// running it: spec.md §6's "build IR + machine code from a source
// directory" verb, restated against IR text since the source-language
// frontend that would normally read a source directory is out of scope
// (spec.md §1). The argument is a file path, or "-" for stdin.
func newCompileCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "compile <ir-file>",
		Short: "build IR and machine code from an IR text file (\"-\" for stdin)",
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
			fmt.Fprintf(cmd.OutOrStdout(), "compiled %d func(s), %d byte(s) of machine code\n",
				len(res.Program.Funcs()), res.Buffer.Len())
			return nil
		},
	}
}
