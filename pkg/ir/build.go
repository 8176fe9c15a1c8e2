package ir

// This file gathers the validating constructors for each instruction kind.
// Each returns a *StructuralError instead of panicking because callers (the
// excluded AST-to-IR frontend, or tests constructing IR directly) are
// expected to recover from a malformed instruction request; constructors
// never mutate Func state on failure (spec.md §7: "analyses are pure and do
// not mutate inputs on failure" — the same discipline applies to builders).

// NewMov validates and returns a Mov instruction.
func NewMov(result Computed, origin Value) (*Mov, error) {
	if result.Typ != origin.ValueType() {
		return nil, structuralErrorf("mov: result type %s != origin type %s", result.Typ, origin.ValueType())
	}
	return &Mov{Result: result, Origin: origin}, nil
}

// NewPhi validates and returns a Phi instruction. Argument-count-matches-
// predecessor-count is checked by Validate once the block's final
// predecessor set is known; here we only check per-argument types.
func NewPhi(result Computed, args []PhiArg) (*Phi, error) {
	for _, a := range args {
		if a.Value.ValueType() != result.Typ {
			return nil, structuralErrorf("phi: arg type %s != result type %s", a.Value.ValueType(), result.Typ)
		}
	}
	return &Phi{Result: result, Args: append([]PhiArg(nil), args...)}, nil
}

// NewUnaryAL validates and returns a UnaryAL instruction.
func NewUnaryAL(op UnaryALOp, result Computed, operand Value) (*UnaryAL, error) {
	if result.Typ != operand.ValueType() {
		return nil, structuralErrorf("%s: result type %s != operand type %s", op, result.Typ, operand.ValueType())
	}
	return &UnaryAL{Op: op, Result: result, Operand: operand}, nil
}

// NewBinaryAL validates and returns a BinaryAL instruction; all three
// operands must share the same integral type (spec.md §3.3).
func NewBinaryAL(op BinaryALOp, result Computed, a, b Value) (*BinaryAL, error) {
	if !result.Typ.Integral() {
		return nil, structuralErrorf("%s: result type %s is not integral", op, result.Typ)
	}
	if a.ValueType() != result.Typ || b.ValueType() != result.Typ {
		return nil, structuralErrorf("%s: operand types %s, %s != result type %s", op, a.ValueType(), b.ValueType(), result.Typ)
	}
	return &BinaryAL{Op: op, Result: result, A: a, B: b}, nil
}

// NewCompare validates and returns a Compare instruction; operands must
// share a type and the result must be Bool.
func NewCompare(op CompareOp, result Computed, a, b Value) (*Compare, error) {
	if result.Typ != Bool {
		return nil, structuralErrorf("%s: result type %s is not bool", op, result.Typ)
	}
	if a.ValueType() != b.ValueType() {
		return nil, structuralErrorf("%s: operand types %s != %s", op, a.ValueType(), b.ValueType())
	}
	return &Compare{Op: op, Result: result, A: a, B: b}, nil
}

// NewJump returns an unconditional-jump terminator.
func NewJump(dst BlockValue) *Jump { return &Jump{Dst: dst} }

// NewJumpCond validates and returns a conditional-jump terminator; cond must
// be Bool-typed.
func NewJumpCond(cond Value, dstTrue, dstFalse BlockValue) (*JumpCond, error) {
	if cond.ValueType() != Bool {
		return nil, structuralErrorf("jcc: condition type %s is not bool", cond.ValueType())
	}
	return &JumpCond{Cond: cond, DstTrue: dstTrue, DstFalse: dstFalse}, nil
}

// NewCall validates and returns a Call instruction; callee must be
// FuncType-valued.
func NewCall(callee Value, results []Computed, args []Value) (*Call, error) {
	if callee.ValueType() != FuncType {
		return nil, structuralErrorf("call: callee type %s is not func", callee.ValueType())
	}
	return &Call{Callee: callee, Rets: append([]Computed(nil), results...), Args: append([]Value(nil), args...)}, nil
}

// NewReturn returns a Return terminator.
func NewReturn(args []Value) *Return { return &Return{Args: append([]Value(nil), args...)} }
