package ir

import "fmt"

// ComputedID identifies a Computed value, unique within its Func.
type ComputedID uint64

// BlockID identifies a Block, unique within its Func.
type BlockID uint64

// Value is an SSA value: a Constant, a Computed result, or a BlockValue
// naming a block as a jump target.
//
// Value is implemented by exactly Constant, Computed, and BlockValue; a type
// switch over those three is exhaustive.
type Value interface {
	fmt.Stringer
	// ValueType returns the type the value carries. Block values have type
	// BlockType.
	ValueType() Type
	isValue()
}

// Constant is a literal value of integral or Func type.
type Constant struct {
	Typ     Type
	Pattern uint64 // the constant's bit pattern, reinterpreted per Typ
}

// NewConstant builds a Constant, panicking if typ is not integral or FuncType
// (spec.md §3.2: "Constants must be of integral or Func type").
func NewConstant(typ Type, pattern uint64) Constant {
	if !typ.Integral() && typ != FuncType {
		panic("BUG: ir: constant of non-integral, non-func type " + typ.String())
	}
	return Constant{Typ: typ, Pattern: pattern}
}

func (c Constant) ValueType() Type { return c.Typ }
func (Constant) isValue()          {}

// Equal reports whether c and other denote the same constant: spec.md §3.2
// requires type and bit pattern to match.
func (c Constant) Equal(other Constant) bool {
	return c.Typ == other.Typ && c.Pattern == other.Pattern
}

// String implements the fixed `#<literal>[:type]` text form. Bools print as
// #t/#f; func constants print as @N without a type suffix.
func (c Constant) String() string {
	switch c.Typ {
	case Bool:
		if c.Pattern != 0 {
			return "#t"
		}
		return "#f"
	case FuncType:
		return fmt.Sprintf("@%d", c.Pattern)
	default:
		return fmt.Sprintf("#%d:%s", signedLiteral(c.Typ, c.Pattern), c.Typ)
	}
}

func signedLiteral(t Type, pattern uint64) int64 {
	if t.Unsigned() {
		return int64(pattern)
	}
	bits := t.SizeInBits()
	v := int64(pattern)
	if bits == 64 {
		return v
	}
	shift := uint(64 - bits)
	return (v << shift) >> shift
}

// Computed is an SSA value produced by exactly one instruction's result
// position, identified by a numeric id unique within its Func.
type Computed struct {
	Typ Type
	ID  ComputedID
}

func (v Computed) ValueType() Type { return v.Typ }
func (Computed) isValue()          {}

// Equal reports whether v and other are the same Computed value: spec.md
// §3.2 requires type and id to match.
func (v Computed) Equal(other Computed) bool {
	return v.Typ == other.Typ && v.ID == other.ID
}

// Less gives Computed values a strict total order by id, as spec.md §3.2
// requires.
func (v Computed) Less(other Computed) bool { return v.ID < other.ID }

func (v Computed) String() string { return fmt.Sprintf("%%%d:%s", v.ID, v.Typ) }

// BlockValue names a Block as a jump target.
type BlockValue struct {
	Block BlockID
}

func (BlockValue) ValueType() Type { return BlockType }
func (BlockValue) isValue()        {}

func (b BlockValue) Equal(other BlockValue) bool { return b.Block == other.Block }

func (b BlockValue) String() string { return fmt.Sprintf("{%d}", b.Block) }


// ValuesEqual reports structural equality between two Values of possibly
// different concrete kinds, dispatching per spec.md §3.2's per-variant
// equality rules.
func ValuesEqual(a, b Value) bool {
	switch av := a.(type) {
	case Constant:
		bv, ok := b.(Constant)
		return ok && av.Equal(bv)
	case Computed:
		bv, ok := b.(Computed)
		return ok && av.Equal(bv)
	case BlockValue:
		bv, ok := b.(BlockValue)
		return ok && av.Equal(bv)
	default:
		return false
	}
}
