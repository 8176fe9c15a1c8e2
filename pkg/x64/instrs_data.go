package x64

import (
	"fmt"

	"github.com/pkg/errors"
)

// movEncoding mirrors mov's four constructor shapes (spec.md §4.3).
type movEncoding uint8

const (
	movRMReg movEncoding = iota
	movRegRM
	movRegImm
	movRMImm
)

// Mov moves a value between a register/memory destination and a
// register/memory/immediate source.
type Mov struct {
	enc  movEncoding
	size Size
	dst  Operand
	src  Operand
}

// NewMovRMReg builds `mov dst, src`, src a register of dst's size.
func NewMovRMReg(dst RM, src Reg) (*Mov, error) {
	if dst.Size() != src.Size() {
		return nil, errors.Errorf("x64: mov: unsupported dst size %d, src size %d combination", dst.Size(), src.Size())
	}
	return &Mov{enc: movRMReg, size: dst.Size(), dst: dst, src: src}, nil
}

// NewMovRegMem builds `mov dst, src`, src a memory operand of dst's size.
func NewMovRegMem(dst Reg, src Mem) (*Mov, error) {
	if dst.Size() != src.Size() {
		return nil, errors.Errorf("x64: mov: unsupported dst size %d, src size %d combination", dst.Size(), src.Size())
	}
	return &Mov{enc: movRegRM, size: dst.Size(), dst: dst, src: src}, nil
}

// NewMovImm builds `mov dst, src` for an immediate source. A 64-bit
// register destination paired with a 32-bit immediate is a sign-extending
// special case (there is no imm64-into-memory or narrower-than-size
// zero-extend form): it's encoded the same way as an RM,Imm destination
// rather than the register-embedded REG,Imm opcode (matching
// x86_64/instrs/data_instrs.cc's constructor table).
func NewMovImm(dst RM, src Imm) (*Mov, error) {
	if reg, ok := dst.(Reg); ok {
		if reg.Size() == Size64 && src.Size() == Size32 {
			return &Mov{enc: movRMImm, size: Size64, dst: dst, src: src}, nil
		}
		if reg.Size() != src.Size() {
			return nil, errors.Errorf("x64: mov: unsupported reg size %d, imm size %d combination", reg.Size(), src.Size())
		}
		return &Mov{enc: movRegImm, size: reg.Size(), dst: dst, src: src}, nil
	}
	if dst.Size() != src.Size() {
		return nil, errors.Errorf("x64: mov: unsupported mem size %d, imm size %d combination", dst.Size(), src.Size())
	}
	return &Mov{enc: movRMImm, size: dst.Size(), dst: dst, src: src}, nil
}

func (m *Mov) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	enc := NewInstrEncoder(code)
	enc.EncodeOperandSize(m.size)
	if m.dst.RequiresREX() || m.src.RequiresREX() {
		enc.EncodeREX()
	}

	switch m.enc {
	case movRMReg:
		if m.size == Size8 {
			enc.EncodeOpcode(0x88)
		} else {
			enc.EncodeOpcode(0x89)
		}
	case movRegRM:
		if m.size == Size8 {
			enc.EncodeOpcode(0x8a)
		} else {
			enc.EncodeOpcode(0x8b)
		}
	case movRegImm:
		if m.size == Size8 {
			enc.EncodeOpcode(0xb0)
		} else {
			enc.EncodeOpcode(0xb8)
		}
	case movRMImm:
		if m.size == Size8 {
			enc.EncodeOpcode(0xc6)
		} else {
			enc.EncodeOpcode(0xc7)
		}
		enc.EncodeOpcodeExt(0)
	}

	switch m.enc {
	case movRMReg, movRMImm:
		enc.EncodeRM(m.dst.(RM))
	case movRegRM:
		enc.EncodeModRMReg(m.dst.(Reg))
	case movRegImm:
		enc.EncodeOpcodeReg(m.dst.(Reg), 0, 0)
	}

	switch m.enc {
	case movRMReg:
		enc.EncodeModRMReg(m.src.(Reg))
	case movRegRM:
		enc.EncodeRM(m.src.(RM))
	case movRegImm, movRMImm:
		enc.EncodeImm(m.src.(Imm))
	}

	if enc.Err() != nil {
		return -1, wrapEncodeError(enc.Err())
	}
	return enc.Size(), nil
}

func (m *Mov) String() string {
	return fmt.Sprintf("mov %s,%s", m.dst.String(), m.src.String())
}

// Xchg atomically-in-encoding (not atomically-in-execution; that needs a
// lock prefix this instruction set doesn't model) swaps rm and reg.
type Xchg struct {
	size Size
	rm   RM
	reg  Reg
}

func NewXchg(rm RM, reg Reg) (*Xchg, error) {
	if rm.Size() != reg.Size() {
		return nil, errors.Errorf("x64: xchg: unsupported rm size %d, reg size %d combination", rm.Size(), reg.Size())
	}
	return &Xchg{size: rm.Size(), rm: rm, reg: reg}, nil
}

// canUseRegAShortcut reports whether both operands are registers and either
// is register A (not available at 8-bit size, which has no single-byte
// xchg-with-A opcode).
func (x *Xchg) canUseRegAShortcut() bool {
	if x.size == Size8 {
		return false
	}
	reg, ok := x.rm.(Reg)
	if !ok {
		return false
	}
	return x.reg.Index() == 0 || reg.Index() == 0
}

func (x *Xchg) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	enc := NewInstrEncoder(code)
	enc.EncodeOperandSize(x.size)
	if x.rm.RequiresREX() || x.reg.RequiresREX() {
		enc.EncodeREX()
	}
	if x.canUseRegAShortcut() {
		reg := x.reg
		if r, ok := x.rm.(Reg); ok && r.Index() != 0 {
			reg = r
		}
		enc.EncodeOpcode(0x90)
		enc.EncodeOpcodeReg(reg, 0, 0)
	} else {
		if x.size == Size8 {
			enc.EncodeOpcode(0x86)
		} else {
			enc.EncodeOpcode(0x87)
		}
		enc.EncodeRM(x.rm)
		enc.EncodeModRMReg(x.reg)
	}
	if enc.Err() != nil {
		return -1, wrapEncodeError(enc.Err())
	}
	return enc.Size(), nil
}

func (x *Xchg) String() string { return fmt.Sprintf("xchg %s,%s", x.rm.String(), x.reg.String()) }

// Push pushes a register, memory operand, or immediate onto the stack.
type Push struct {
	size Size
	op   Operand
}

func NewPushReg(reg Reg) (*Push, error) {
	if reg.Size() != Size16 && reg.Size() != Size64 {
		return nil, errors.Errorf("x64: push: unsupported register size %d", reg.Size())
	}
	return &Push{size: reg.Size(), op: reg}, nil
}

func NewPushMem(mem Mem) (*Push, error) {
	if mem.Size() != Size16 && mem.Size() != Size64 {
		return nil, errors.Errorf("x64: push: unsupported memory operand size %d", mem.Size())
	}
	return &Push{size: mem.Size(), op: mem}, nil
}

func NewPushImm(imm Imm) (*Push, error) {
	if imm.Size() != Size8 && imm.Size() != Size16 && imm.Size() != Size32 {
		return nil, errors.Errorf("x64: push: unsupported immediate size %d", imm.Size())
	}
	return &Push{size: imm.Size(), op: imm}, nil
}

func (p *Push) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	enc := NewInstrEncoder(code)
	if p.size != Size64 {
		enc.EncodeOperandSize(p.size)
	}
	if p.op.RequiresREX() {
		enc.EncodeREX()
	}
	switch op := p.op.(type) {
	case Reg:
		enc.EncodeOpcode(0x50)
		enc.EncodeOpcodeReg(op, 0, 0)
	case Mem:
		enc.EncodeOpcode(0xff)
		enc.EncodeOpcodeExt(6)
		enc.EncodeRM(op)
	case Imm:
		if op.Size() == Size8 {
			enc.EncodeOpcode(0x6a)
		} else {
			enc.EncodeOpcode(0x68)
		}
		enc.EncodeImm(op)
	}
	if enc.Err() != nil {
		return -1, wrapEncodeError(enc.Err())
	}
	return enc.Size(), nil
}

func (p *Push) String() string { return "push " + p.op.String() }

// Pop pops the top of the stack into a register or memory location.
type Pop struct {
	size Size
	op   Operand
}

func NewPopReg(reg Reg) (*Pop, error) {
	if reg.Size() != Size16 && reg.Size() != Size64 {
		return nil, errors.Errorf("x64: pop: unsupported register size %d", reg.Size())
	}
	return &Pop{size: reg.Size(), op: reg}, nil
}

func NewPopMem(mem Mem) (*Pop, error) {
	if mem.Size() != Size16 && mem.Size() != Size64 {
		return nil, errors.Errorf("x64: pop: unsupported memory operand size %d", mem.Size())
	}
	return &Pop{size: mem.Size(), op: mem}, nil
}

func (p *Pop) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	enc := NewInstrEncoder(code)
	if p.size != Size64 {
		enc.EncodeOperandSize(p.size)
	}
	if p.op.RequiresREX() {
		enc.EncodeREX()
	}
	switch op := p.op.(type) {
	case Reg:
		enc.EncodeOpcode(0x58)
		enc.EncodeOpcodeReg(op, 0, 0)
	case Mem:
		enc.EncodeOpcode(0x8f)
		enc.EncodeOpcodeExt(0)
		enc.EncodeRM(op)
	}
	if enc.Err() != nil {
		return -1, wrapEncodeError(enc.Err())
	}
	return enc.Size(), nil
}

func (p *Pop) String() string { return "pop " + p.op.String() }
