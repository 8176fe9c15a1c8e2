package regalloc

import "github.com/pkg/errors"

// AllocError reports that register allocation could not complete. Allocate
// returns it only for an empty palette: an uncolorable node becomes a spill,
// and pre-colored values keep their given colors without being checked
// against each other.
type AllocError struct{ msg string }

func (e *AllocError) Error() string { return "regalloc: " + e.msg }

func allocErrorf(format string, args ...any) error {
	return errors.WithStack(&AllocError{msg: errors.Errorf(format, args...).Error()})
}
