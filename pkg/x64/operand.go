package x64

import "fmt"

// Size is an operand width in bits (spec.md §3.5).
type Size uint8

const (
	Size8  Size = 8
	Size16 Size = 16
	Size32 Size = 32
	Size64 Size = 64
)

// Operand is any value an instruction can read or write: a register, a
// memory location, an immediate, or a symbolic function/block reference
// (spec.md §3.5).
type Operand interface {
	RequiresREX() bool
	String() string
}

// RM is an operand that can sit in a ModRM.rm field: a register or a
// memory location.
type RM interface {
	Operand
	Size() Size
	RequiresSIB() bool
	// RequiredDispSize returns the displacement size in bytes this operand
	// needs: 0, 1, or 4.
	RequiredDispSize() uint8
}

// Imm is an immediate operand.
type Imm interface {
	Operand
	Size() Size
	// Value returns the immediate's value sign-extended to 64 bits, used by
	// instructions that special-case an immediate of 1 (e.g. a skippable
	// imul multiplier).
	Value() int64
	// RequiredImmSize returns the encoded width in bytes: 1, 2, 4, or 8.
	RequiredImmSize() uint8
	// EncodeInto writes the immediate's little-endian bytes into dst, which
	// must be exactly RequiredImmSize() bytes long.
	EncodeInto(dst []byte)
}

// Reg is a general-purpose register of a given size, indexed 0-15 in the
// same numbering x86-64 uses for its ModRM/SIB/opcode-reg encodings (rax=0,
// rcx=1, ..., r15=15).
//
// Reg does not model the legacy 8-bit aliasing of ah/ch/dh/bh onto the same
// index range as spl/bpl/sil/dil; it always means the REX-addressable
// low-byte register. Liveness and register allocation likewise never see a
// partial-register write as a partial def of a wider register — each Reg
// value, regardless of size, occupies its index's liveness slot whole.
type Reg struct {
	size Size
	reg  uint8
}

// NewReg builds a register operand. It panics if reg exceeds 15, which
// would only happen from a hand-built program rather than by construction
// error.
func NewReg(size Size, reg uint8) Reg {
	if reg > 15 {
		panic(fmt.Sprintf("BUG: x64: register index %d out of range [0,16)", reg))
	}
	return Reg{size: size, reg: reg}
}

func (r Reg) Size() Size   { return r.size }
func (r Reg) Index() uint8 { return r.reg }

// RequiresREX reports whether encoding r requires a REX prefix. 8-bit
// registers are special: indices 4-7 mean spl/bpl/sil/dil (REX-addressable)
// rather than the legacy ah/ch/dh/bh, and that distinction only exists when
// a REX prefix is present, so Reg8 requires REX starting at index 4 instead
// of 8 (spec.md §3.5).
func (r Reg) RequiresREX() bool {
	if r.size == Size8 {
		return r.reg >= 4
	}
	return r.reg >= 8
}

func (r Reg) RequiresSIB() bool          { return false }
func (r Reg) RequiredDispSize() uint8    { return 0 }

func (r Reg) String() string {
	switch r.size {
	case Size8:
		return regNames8[r.reg]
	case Size16:
		return regNames16[r.reg]
	case Size32:
		return regNames32[r.reg]
	default:
		return regNames64[r.reg]
	}
}

var regNames8 = [16]string{
	"al", "cl", "dl", "bl", "spl", "bpl", "sil", "dil",
	"r8b", "r9b", "r10b", "r11b", "r12b", "r13b", "r14b", "r15b",
}
var regNames16 = [16]string{
	"ax", "cx", "dx", "bx", "sp", "bp", "si", "di",
	"r8w", "r9w", "r10w", "r11w", "r12w", "r13w", "r14w", "r15w",
}
var regNames32 = [16]string{
	"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi",
	"r8d", "r9d", "r10d", "r11d", "r12d", "r13d", "r14d", "r15d",
}
var regNames64 = [16]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

// Named byte/word/doubleword/quadword register operands, in x86-64's
// canonical index order.
var (
	AL, CL, DL, BL, SPL, BPL, SIL, DIL                                 = reg8(0), reg8(1), reg8(2), reg8(3), reg8(4), reg8(5), reg8(6), reg8(7)
	R8B, R9B, R10B, R11B, R12B, R13B, R14B, R15B                       = reg8(8), reg8(9), reg8(10), reg8(11), reg8(12), reg8(13), reg8(14), reg8(15)
	AX, CX, DX, BX, SP, BP, SI, DI                                     = reg16(0), reg16(1), reg16(2), reg16(3), reg16(4), reg16(5), reg16(6), reg16(7)
	R8W, R9W, R10W, R11W, R12W, R13W, R14W, R15W                       = reg16(8), reg16(9), reg16(10), reg16(11), reg16(12), reg16(13), reg16(14), reg16(15)
	EAX, ECX, EDX, EBX, ESP, EBP, ESI, EDI                             = reg32(0), reg32(1), reg32(2), reg32(3), reg32(4), reg32(5), reg32(6), reg32(7)
	R8D, R9D, R10D, R11D, R12D, R13D, R14D, R15D                       = reg32(8), reg32(9), reg32(10), reg32(11), reg32(12), reg32(13), reg32(14), reg32(15)
	RAX, RCX, RDX, RBX, RSP, RBP, RSI, RDI                             = reg64(0), reg64(1), reg64(2), reg64(3), reg64(4), reg64(5), reg64(6), reg64(7)
	R8, R9, R10, R11, R12, R13, R14, R15                               = reg64(8), reg64(9), reg64(10), reg64(11), reg64(12), reg64(13), reg64(14), reg64(15)
)

func reg8(i uint8) Reg  { return NewReg(Size8, i) }
func reg16(i uint8) Reg { return NewReg(Size16, i) }
func reg32(i uint8) Reg { return NewReg(Size32, i) }
func reg64(i uint8) Reg { return NewReg(Size64, i) }

// noReg is the "absent" sentinel for Mem's base/index register fields,
// matching the original backend's use of 0xff for "no such register."
const noReg uint8 = 0xff

// Mem is a memory operand: [base + index*scale + disp], with base and
// index each optional (spec.md §3.5).
type Mem struct {
	size     Size
	baseReg  uint8
	indexReg uint8
	scale    uint8 // 0,1,2,3 meaning 1,2,4,8
	disp     int32
}

// newMem builds a memory operand. Pass noReg-equivalent absence by using
// the convenience constructors below; index register 4 (rsp) can never be
// an index since SIB.index==100 is reserved to mean "no index."
func newMem(size Size, base, index uint8, scale uint8, disp int32) Mem {
	if index == 4 {
		panic("BUG: x64: rsp cannot be used as a SIB index register")
	}
	return Mem{size: size, baseReg: base, indexReg: index, scale: scale, disp: disp}
}

func NewMemDisp(size Size, disp int32) Mem {
	return newMem(size, noReg, noReg, 0, disp)
}
func NewMemBase(size Size, base Reg) Mem {
	return newMem(size, base.reg, noReg, 0, 0)
}
func NewMemBaseDisp(size Size, base Reg, disp int32) Mem {
	return newMem(size, base.reg, noReg, 0, disp)
}
func NewMemIndex(size Size, index Reg, scale uint8) Mem {
	return newMem(size, noReg, index.reg, scale, 0)
}
func NewMemIndexDisp(size Size, index Reg, scale uint8, disp int32) Mem {
	return newMem(size, noReg, index.reg, scale, disp)
}
func NewMemBaseIndex(size Size, base, index Reg, scale uint8) Mem {
	return newMem(size, base.reg, index.reg, scale, 0)
}
func NewMemBaseIndexDisp(size Size, base, index Reg, scale uint8, disp int32) Mem {
	return newMem(size, base.reg, index.reg, scale, disp)
}

func (m Mem) Size() Size { return m.size }

func (m Mem) RequiresREX() bool {
	return (m.baseReg != noReg && m.baseReg >= 8) || (m.indexReg != noReg && m.indexReg >= 8)
}

// RequiresSIB reports whether this addressing mode needs a SIB byte: always
// true without a base register (disp32 or index*scale+disp32 addressing has
// no ModRM.rm encoding of its own), always true with an index register, and
// true with a base-only register when that register is rsp or r12 (whose
// ModRM.rm encoding of 100 is reserved to mean "has a SIB byte").
func (m Mem) RequiresSIB() bool {
	if m.baseReg == noReg {
		return true
	}
	if m.indexReg != noReg {
		return true
	}
	base3 := m.baseReg & 0x7
	return base3 == 4
}

// RequiredDispSize mirrors the x86-64 addressing-mode rules: no base means
// a mandatory disp32; rbp/r13 as a lone base cannot encode "no
// displacement" (that encoding means RIP-relative/disp32-only instead), so
// it forces a disp8 of 0; otherwise the smallest encoding that fits.
func (m Mem) RequiredDispSize() uint8 {
	if m.baseReg == noReg {
		return 4
	}
	base3 := m.baseReg & 0x7
	if m.disp == 0 && base3 != 5 {
		return 0
	}
	if m.disp >= -128 && m.disp <= 127 {
		return 1
	}
	return 4
}

func (m Mem) String() string {
	s := "["
	wrote := false
	if m.baseReg != noReg {
		s += NewReg(Size64, m.baseReg).String()
		wrote = true
	}
	if m.indexReg != noReg {
		if wrote {
			s += "+"
		}
		s += NewReg(Size64, m.indexReg).String()
		s += fmt.Sprintf("*%d", 1<<m.scale)
		wrote = true
	}
	if m.disp != 0 || !wrote {
		if wrote && m.disp >= 0 {
			s += "+"
		}
		s += fmt.Sprintf("%d", m.disp)
	}
	return s + "]"
}

// Imm8/16/32/64 are fixed-width immediate operands. Only Imm64 reports
// RequiresREX true: a 64-bit immediate only ever appears alongside a
// 64-bit operand size, which a caller's EncodeOperandSize(Size64) call
// already forces a REX byte for, but Imm64 claims it directly too rather
// than relying on that coincidence.
type Imm8 int8
type Imm16 int16
type Imm32 int32
type Imm64 int64

func (i Imm8) Size() Size         { return Size8 }
func (i Imm8) RequiresREX() bool  { return false }
func (i Imm8) Value() int64       { return int64(i) }
func (i Imm8) RequiredImmSize() uint8 { return 1 }
func (i Imm8) EncodeInto(dst []byte)  { dst[0] = byte(i) }
func (i Imm8) String() string     { return fmt.Sprintf("%d", int8(i)) }

func (i Imm16) Size() Size        { return Size16 }
func (i Imm16) RequiresREX() bool { return false }
func (i Imm16) Value() int64      { return int64(i) }
func (i Imm16) RequiredImmSize() uint8 { return 2 }
func (i Imm16) EncodeInto(dst []byte) {
	dst[0] = byte(i)
	dst[1] = byte(i >> 8)
}
func (i Imm16) String() string { return fmt.Sprintf("%d", int16(i)) }

func (i Imm32) Size() Size        { return Size32 }
func (i Imm32) RequiresREX() bool { return false }
func (i Imm32) Value() int64      { return int64(i) }
func (i Imm32) RequiredImmSize() uint8 { return 4 }
func (i Imm32) EncodeInto(dst []byte) {
	dst[0] = byte(i)
	dst[1] = byte(i >> 8)
	dst[2] = byte(i >> 16)
	dst[3] = byte(i >> 24)
}
func (i Imm32) String() string { return fmt.Sprintf("%d", int32(i)) }

func (i Imm64) Size() Size        { return Size64 }
func (i Imm64) RequiresREX() bool { return true }
func (i Imm64) Value() int64      { return int64(i) }
func (i Imm64) RequiredImmSize() uint8 { return 8 }
func (i Imm64) EncodeInto(dst []byte) {
	for k := 0; k < 8; k++ {
		dst[k] = byte(i >> (8 * k))
	}
}
func (i Imm64) String() string { return fmt.Sprintf("%d", int64(i)) }

// FuncID identifies a function within an MCProgram.
type FuncID int64

// BlockID identifies a block within an MCProgram, globally unique across
// every function in the program (spec.md §3.6).
type BlockID int64

// FuncRef is a symbolic reference to a function's entry address, resolved
// by a Linker.
type FuncRef struct{ id FuncID }

// NewFuncRef builds a symbolic reference to the function with the given id.
func NewFuncRef(id FuncID) FuncRef { return FuncRef{id: id} }

func (r FuncRef) RequiresREX() bool { return false }
func (r FuncRef) String() string    { return fmt.Sprintf("func#%d", r.id) }
func (r FuncRef) ID() FuncID        { return r.id }

// BlockRef is a symbolic reference to a block's address, resolved by a
// Linker.
type BlockRef struct{ id BlockID }

// NewBlockRef builds a symbolic reference to the block with the given id.
func NewBlockRef(id BlockID) BlockRef { return BlockRef{id: id} }

func (r BlockRef) RequiresREX() bool { return false }
func (r BlockRef) String() string    { return fmt.Sprintf("BB%d", r.id) }
