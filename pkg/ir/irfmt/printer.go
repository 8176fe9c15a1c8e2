package irfmt

import (
	"io"

	"github.com/pkg/errors"

	"github.com/arneph/katara/pkg/ir"
)

// Print writes prog's fixed text form (the same text Parse accepts)
// to w. ir.Program.Format already implements the rendering; Print exists so
// callers have a symmetric Parse/Print pair to import instead of reaching
// into ir directly.
func Print(w io.Writer, prog *ir.Program) error {
	if _, err := io.WriteString(w, prog.Format()); err != nil {
		return errors.Wrap(err, "irfmt: writing program")
	}
	return nil
}
