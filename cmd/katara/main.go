// Command katara drives the compile/run pipeline over a program's IR text
// form (original_source/Katara/main.cc and src/cmd/cmd.cc's command
// dispatch, restated as a cobra command tree per spec.md §6's verb list).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
