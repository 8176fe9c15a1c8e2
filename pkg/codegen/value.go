package codegen

import (
	"github.com/arneph/katara/pkg/ir"
	"github.com/arneph/katara/pkg/x64"
)

// valueSrc resolves an ir.Value to a copySrc: a Computed's regalloc-assigned
// location, or a Constant's bit pattern as an immediate. Constants of
// FuncType used this way (as plain data rather than a direct Call callee)
// name a function address this package can never materialize, since
// pkg/x64's Linker only patches 4-byte rel32 call/jump sites (see
// codegen.go's package doc); that case is reported rather than silently
// mis-encoded.
func (ft *funcTranslator) valueSrc(v ir.Value) (copySrc, bool, error) {
	switch val := v.(type) {
	case ir.Constant:
		if val.Typ == ir.FuncType {
			return copySrc{}, false, errorf("function value %s used as data has no encodable address", val)
		}
		return immSrc(constImm(val.Pattern)), true, nil
	case ir.Computed:
		l, ok := ft.locOf(val)
		if !ok {
			return copySrc{}, false, nil
		}
		return locSrc(l), true, nil
	default:
		return copySrc{}, false, errorf("value %s cannot be used as an operand here", v)
	}
}

// constImm picks the narrowest immediate form that reproduces pattern's
// full 64-bit value once sign-extended: Imm32 when the low 32 bits already
// sign-extend back to pattern (the common case, and the only form most
// encodings besides a 64-bit-register mov accept — see newGroup1RMImm's
// rejection of Size64 immediates), Imm64 otherwise. A constant's full
// 64-bit bit pattern outside the int32 range would otherwise be silently
// truncated rather than correctly loaded via mov's imm64 form
// (x64.NewMovImm's movRegImm path).
func constImm(pattern uint64) x64.Imm {
	if int64(int32(pattern)) == int64(pattern) {
		return x64.Imm32(int32(pattern))
	}
	return x64.Imm64(int64(pattern))
}

// directCallee returns the FuncRef a Call's Callee names, if it is a direct,
// lexically-known function (a Constant of FuncType). A Computed callee is
// an indirect call: syntactically acceptable to pkg/x64 (x64.NewCallRM
// exists) but never actually reachable, since nothing in this module can
// produce a Computed holding a real function address (see valueSrc and the
// package doc).
func (ft *funcTranslator) directCallee(v ir.Value) (x64.FuncRef, error) {
	c, ok := v.(ir.Constant)
	if !ok || c.Typ != ir.FuncType {
		return x64.FuncRef{}, errorf("indirect calls are not supported: callee %s is not a direct function reference", v)
	}
	ref, ok := ft.tr.funcRefs[ir.FuncID(c.Pattern)]
	if !ok {
		return x64.FuncRef{}, errorf("call references unknown func id %d", c.Pattern)
	}
	return ref, nil
}
