package x64

import (
	"fmt"

	"github.com/pkg/errors"
)

// EncodeError reports that an instruction, block, function, or program
// could not be fully encoded into the code buffer it was given (spec.md
// §4.5). Its cause is almost always a BoundsError from an undersized
// buffer; Unwrap lets callers recover that concrete cause with errors.As
// without EncodeError having to know its shape.
type EncodeError struct{ cause error }

func (e *EncodeError) Error() string { return "x64: encode: " + e.cause.Error() }
func (e *EncodeError) Unwrap() error { return e.cause }

func wrapEncodeError(cause error) error {
	return errors.WithStack(&EncodeError{cause: cause})
}

// LinkError reports that a Linker could not resolve a symbolic reference,
// or that a resolved address did not fit the instruction encoding that
// referenced it (spec.md §4.4).
type LinkError struct{ msg string }

func (e *LinkError) Error() string { return "x64: link: " + e.msg }

func linkErrorf(format string, args ...any) error {
	return errors.WithStack(&LinkError{msg: fmt.Sprintf(format, args...)})
}
