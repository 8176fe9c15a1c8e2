package main

import (
	"github.com/spf13/cobra"
)

// newDocCmd is a stub: spec.md §1 lists "documentation generation" as an
// excluded external collaborator, same rationale as newInterpretCmd.
func newDocCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doc",
		Short: "generate documentation for Katara packages (not implemented)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return &stubError{"doc: no documentation generator is implemented by this module"}
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print Katara version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println("Katara version " + version)
			return nil
		},
	}
}
