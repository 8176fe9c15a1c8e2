package main

import (
	"github.com/spf13/cobra"
)

// newInterpretCmd is a stub: spec.md §1 lists "an interpreter" itself
// among this module's excluded external collaborators, so there is no IR
// evaluator in scope for this verb to call into. It is kept, rather than
// omitted, only because spec.md §6 names `interpret` as part of the CLI's
// verb surface.
func newInterpretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interpret <ir-file>",
		Short: "build IR and evaluate it (not implemented)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return errInterpretUnimplemented
		},
	}
}

var errInterpretUnimplemented = &stubError{"interpret: no interpreter is implemented by this module"}

type stubError struct{ msg string }

func (e *stubError) Error() string { return e.msg }
