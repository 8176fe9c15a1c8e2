package ir

import "fmt"

// StructuralError reports a violated IR invariant: a type mismatch, a
// duplicate value id, a non-terminator tail instruction, or an unknown type
// string encountered while building or validating a Func.
type StructuralError struct {
	Msg string
}

func (e *StructuralError) Error() string { return "ir: structural error: " + e.Msg }

func structuralErrorf(format string, args ...any) *StructuralError {
	return &StructuralError{Msg: fmt.Sprintf(format, args...)}
}
