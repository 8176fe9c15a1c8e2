package x64

import (
	"fmt"

	"github.com/pkg/errors"
)

// Cond is a condition-code predicate for Jcc, numbered the way the ISA
// numbers its condition nibble (spec.md §4.3). Several names are aliases
// for the same bit pattern (e.g. CondEqual and CondZero); String always
// prints one canonical mnemonic per pattern.
type Cond uint8

const (
	CondOverflow    Cond = 0x00
	CondNoOverflow  Cond = 0x01
	CondCarry       Cond = 0x02
	CondNoCarry     Cond = 0x03
	CondZero        Cond = 0x04
	CondNoZero      Cond = 0x05
	CondCarryZero   Cond = 0x06
	CondNoCarryZero Cond = 0x07
	CondSign        Cond = 0x08
	CondNoSign      Cond = 0x09
	CondParity      Cond = 0x0a
	CondNoParity    Cond = 0x0b
	CondLess        Cond = 0x0c
	CondGreaterOrEq Cond = 0x0d
	CondLessOrEqual Cond = 0x0e
	CondGreater     Cond = 0x0f

	CondEqual        = CondZero
	CondNotEqual     = CondNoZero
	CondBelow        = CondCarry
	CondAboveOrEqual = CondNoCarry
	CondBelowOrEqual = CondCarryZero
	CondAbove        = CondNoCarryZero
)

func (c Cond) String() string {
	switch c {
	case CondOverflow:
		return "jo"
	case CondNoOverflow:
		return "jno"
	case CondBelow:
		return "jb"
	case CondAboveOrEqual:
		return "jae"
	case CondEqual:
		return "je"
	case CondNotEqual:
		return "jne"
	case CondBelowOrEqual:
		return "jbe"
	case CondAbove:
		return "ja"
	case CondSign:
		return "js"
	case CondNoSign:
		return "jns"
	case CondParity:
		return "jpe"
	case CondNoParity:
		return "jpo"
	case CondLess:
		return "jl"
	case CondGreaterOrEq:
		return "jge"
	case CondLessOrEqual:
		return "jle"
	case CondGreater:
		return "jg"
	default:
		return fmt.Sprintf("j?%#x", uint8(c))
	}
}

// Jcc conditionally jumps to a block if cond holds.
type Jcc struct {
	cond Cond
	dst  BlockRef
}

func NewJcc(cond Cond, dst BlockRef) *Jcc { return &Jcc{cond: cond, dst: dst} }

// Encode writes the raw 6-byte near-conditional-jump encoding directly
// (0f 8x + rel32) rather than going through InstrEncoder: Jcc never varies
// by operand size or register, so there's nothing for the generic encoder
// to compute.
func (j *Jcc) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	bytes := [6]byte{0x0f, 0x80 | byte(j.cond), 0, 0, 0, 0}
	for i, b := range bytes {
		if err := code.Set(int64(i), b); err != nil {
			return -1, wrapEncodeError(err)
		}
	}
	patch, err := code.ViewRange(2, 6)
	if err != nil {
		return -1, wrapEncodeError(err)
	}
	linker.RecordBlockRef(j.dst, patch)
	return int64(len(bytes)), nil
}

func (j *Jcc) String() string { return j.cond.String() + " " + j.dst.String() }

// Jmp unconditionally jumps to a 64-bit register/memory target or a block.
type Jmp struct {
	rm  RM
	dst *BlockRef
}

func NewJmpRM(rm RM) (*Jmp, error) {
	if rm.Size() != Size64 {
		return nil, errors.Errorf("x64: jmp: unsupported target size %d", rm.Size())
	}
	return &Jmp{rm: rm}, nil
}

func NewJmpBlock(dst BlockRef) *Jmp { return &Jmp{dst: &dst} }

func (j *Jmp) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	if j.rm != nil {
		enc := NewInstrEncoder(code)
		if j.rm.RequiresREX() {
			enc.EncodeREX()
		}
		enc.EncodeOpcode(0xff)
		enc.EncodeOpcodeExt(4)
		enc.EncodeRM(j.rm)
		if enc.Err() != nil {
			return -1, wrapEncodeError(enc.Err())
		}
		return enc.Size(), nil
	}
	bytes := [5]byte{0xe9, 0, 0, 0, 0}
	for i, b := range bytes {
		if err := code.Set(int64(i), b); err != nil {
			return -1, wrapEncodeError(err)
		}
	}
	patch, err := code.ViewRange(1, 5)
	if err != nil {
		return -1, wrapEncodeError(err)
	}
	linker.RecordBlockRef(*j.dst, patch)
	return int64(len(bytes)), nil
}

func (j *Jmp) String() string {
	if j.rm != nil {
		return "jmp " + j.rm.String()
	}
	return "jmp " + j.dst.String()
}

// Call calls a 64-bit register/memory target or a function.
type Call struct {
	rm  RM
	dst *FuncRef
}

func NewCallRM(rm RM) (*Call, error) {
	if rm.Size() != Size64 {
		return nil, errors.Errorf("x64: call: unsupported target size %d", rm.Size())
	}
	return &Call{rm: rm}, nil
}

func NewCallFunc(dst FuncRef) *Call { return &Call{dst: &dst} }

func (c *Call) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	if c.rm != nil {
		enc := NewInstrEncoder(code)
		if c.rm.RequiresREX() {
			enc.EncodeREX()
		}
		enc.EncodeOpcode(0xff)
		enc.EncodeOpcodeExt(2)
		enc.EncodeRM(c.rm)
		if enc.Err() != nil {
			return -1, wrapEncodeError(enc.Err())
		}
		return enc.Size(), nil
	}
	bytes := [5]byte{0xe8, 0, 0, 0, 0}
	for i, b := range bytes {
		if err := code.Set(int64(i), b); err != nil {
			return -1, wrapEncodeError(err)
		}
	}
	patch, err := code.ViewRange(1, 5)
	if err != nil {
		return -1, wrapEncodeError(err)
	}
	linker.RecordFuncRef(*c.dst, patch)
	return int64(len(bytes)), nil
}

func (c *Call) String() string {
	if c.rm != nil {
		return "call " + c.rm.String()
	}
	return "call " + c.dst.String()
}

// Syscall invokes a system call per the calling function's platform ABI.
type Syscall struct{}

func NewSyscall() *Syscall { return &Syscall{} }

func (s *Syscall) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	if err := code.Set(0, 0x0f); err != nil {
		return -1, wrapEncodeError(err)
	}
	if err := code.Set(1, 0x05); err != nil {
		return -1, wrapEncodeError(err)
	}
	return 2, nil
}

func (s *Syscall) String() string { return "syscall" }

// Ret returns from the current function.
type Ret struct{}

func NewRet() *Ret { return &Ret{} }

func (r *Ret) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	if err := code.Set(0, 0xc3); err != nil {
		return -1, wrapEncodeError(err)
	}
	return 1, nil
}

func (r *Ret) String() string { return "ret" }
