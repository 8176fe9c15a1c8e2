// Package ir defines the SSA intermediate representation that sits between
// the (externally supplied) AST-to-IR frontend and the x86-64 translator.
//
// The representation favors an arena-plus-index layout over pointer-linked
// ownership: a Func owns its Blocks in a flat pool and refers to them by
// BlockID, and a Program owns its Funcs in a flat pool and refers to them by
// FuncID. Parent/child and predecessor/successor relationships are sets of
// ids, not back-pointers, so a Func (or Program) can be torn down by
// discarding its pool without chasing cycles.
package ir

import "fmt"

// Type is the closed set of value types this IR can represent.
type Type byte

const (
	Unknown Type = iota
	Bool
	I8
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	BlockType
	FuncType
)

// String returns the fixed text form used by the printer and parser.
func (t Type) String() string {
	switch t {
	case Bool:
		return "b"
	case I8:
		return "i8"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U32:
		return "u32"
	case U64:
		return "u64"
	case BlockType:
		return "block"
	case FuncType:
		return "func"
	default:
		return "unknown"
	}
}

// Integral reports whether t is bool or one of the sized integer types.
func (t Type) Integral() bool {
	switch t {
	case Bool, I8, I16, I32, I64, U8, U16, U32, U64:
		return true
	default:
		return false
	}
}

// Unsigned reports whether t is bool or one of the unsigned integer types.
// bool is considered unsigned because its bit pattern is always 0 or 1.
func (t Type) Unsigned() bool {
	switch t {
	case Bool, U8, U16, U32, U64:
		return true
	default:
		return false
	}
}

// SizeInBits returns the width of t's value representation. It panics for
// Block and Unknown, which have no defined size.
func (t Type) SizeInBits() int {
	switch t {
	case Bool, I8, U8:
		return 8
	case I16, U16:
		return 16
	case I32, U32:
		return 32
	case I64, U64, FuncType:
		return 64
	default:
		panic(fmt.Sprintf("BUG: ir: %s has no defined size", t))
	}
}

// ParseType looks up the Type named by its fixed text form (the inverse of
// Type.String), reporting false for any string not in the closed type set.
func ParseType(s string) (Type, bool) { return typeFromString(s) }

func typeFromString(s string) (Type, bool) {
	switch s {
	case "b":
		return Bool, true
	case "i8":
		return I8, true
	case "i16":
		return I16, true
	case "i32":
		return I32, true
	case "i64":
		return I64, true
	case "u8":
		return U8, true
	case "u16":
		return U16, true
	case "u32":
		return U32, true
	case "u64":
		return U64, true
	case "block":
		return BlockType, true
	case "func":
		return FuncType, true
	default:
		return Unknown, false
	}
}
