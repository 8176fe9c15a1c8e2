package x64

import (
	"fmt"

	"github.com/pkg/errors"
)

// Instr is one x86-64 machine instruction: encodable into a CodeBuffer
// given a Linker to register any symbolic references with.
type Instr interface {
	// Encode writes the instruction's bytes at the start of code and
	// returns the number of bytes written, or -1 and a non-nil error if
	// the buffer could not hold them.
	Encode(linker *Linker, code CodeBuffer) (int64, error)
	String() string
}

// binEncoding mirrors the three operand shapes a group-1 ALU instruction
// (and, or, xor, add, adc, sub, sbb, cmp) can take (spec.md §4.3).
type binEncoding uint8

const (
	binRMImm binEncoding = iota
	binRMImm8
	binRMReg
	binRegRM
)

// group1Instr implements the eight group-1 ALU instructions. The ISA
// encodes all eight identically except for a 3-bit extension digit: opcodes
// 0x80/0x81/0x83 (RM,Imm forms) are shared across all eight and
// disambiguated purely by that digit in ModRM.reg, and the RM,Reg /
// Reg,RM / register-A-shortcut opcodes all fall out of the formula
// base = ext*8 (e.g. and's ext=4 gives 0x20/0x21/0x22/0x23/0x24/0x25,
// sub's ext=5 gives 0x28/0x29/0x2a/0x2b/0x2c/0x2d, and so on).
type group1Instr struct {
	mnemonic string
	ext      uint8
	enc      binEncoding
	rm       RM
	other    Operand // Imm for binRMImm/binRMImm8, Reg otherwise
}

func newGroup1RMImm(mnemonic string, ext uint8, rm RM, imm Imm) (*group1Instr, error) {
	if imm.Size() == Size64 {
		return nil, errors.Errorf("x64: %s: imm64 operand not supported", mnemonic)
	}
	var enc binEncoding
	switch {
	case rm.Size() == imm.Size(), rm.Size() == Size64 && imm.Size() == Size32:
		enc = binRMImm
	case imm.Size() == Size8:
		enc = binRMImm8
	default:
		return nil, errors.Errorf("x64: %s: unsupported rm size %d, imm size %d combination", mnemonic, rm.Size(), imm.Size())
	}
	return &group1Instr{mnemonic: mnemonic, ext: ext, enc: enc, rm: rm, other: imm}, nil
}

func newGroup1RMReg(mnemonic string, ext uint8, rm RM, reg Reg) (*group1Instr, error) {
	if rm.Size() != reg.Size() {
		return nil, errors.Errorf("x64: %s: unsupported rm size %d, reg size %d combination", mnemonic, rm.Size(), reg.Size())
	}
	return &group1Instr{mnemonic: mnemonic, ext: ext, enc: binRMReg, rm: rm, other: reg}, nil
}

func newGroup1RegMem(mnemonic string, ext uint8, reg Reg, mem Mem) (*group1Instr, error) {
	if reg.Size() != mem.Size() {
		return nil, errors.Errorf("x64: %s: unsupported reg size %d, mem size %d combination", mnemonic, reg.Size(), mem.Size())
	}
	return &group1Instr{mnemonic: mnemonic, ext: ext, enc: binRegRM, rm: reg, other: mem}, nil
}

// The ext digit for each group-1 mnemonic, per the x86-64 group-1 opcode
// table.
const (
	extAdd uint8 = 0
	extOr  uint8 = 1
	extAdc uint8 = 2
	extSbb uint8 = 3
	extAnd uint8 = 4
	extSub uint8 = 5
	extXor uint8 = 6
	extCmp uint8 = 7
)

func NewAdd(rm RM, imm Imm) (Instr, error)    { return newGroup1RMImm("add", extAdd, rm, imm) }
func NewAddReg(rm RM, reg Reg) (Instr, error) { return newGroup1RMReg("add", extAdd, rm, reg) }
func NewAddMem(reg Reg, mem Mem) (Instr, error) {
	return newGroup1RegMem("add", extAdd, reg, mem)
}

func NewOr(rm RM, imm Imm) (Instr, error)    { return newGroup1RMImm("or", extOr, rm, imm) }
func NewOrReg(rm RM, reg Reg) (Instr, error) { return newGroup1RMReg("or", extOr, rm, reg) }
func NewOrMem(reg Reg, mem Mem) (Instr, error) {
	return newGroup1RegMem("or", extOr, reg, mem)
}

func NewAdc(rm RM, imm Imm) (Instr, error)    { return newGroup1RMImm("adc", extAdc, rm, imm) }
func NewAdcReg(rm RM, reg Reg) (Instr, error) { return newGroup1RMReg("adc", extAdc, rm, reg) }
func NewAdcMem(reg Reg, mem Mem) (Instr, error) {
	return newGroup1RegMem("adc", extAdc, reg, mem)
}

func NewSbb(rm RM, imm Imm) (Instr, error)    { return newGroup1RMImm("sbb", extSbb, rm, imm) }
func NewSbbReg(rm RM, reg Reg) (Instr, error) { return newGroup1RMReg("sbb", extSbb, rm, reg) }
func NewSbbMem(reg Reg, mem Mem) (Instr, error) {
	return newGroup1RegMem("sbb", extSbb, reg, mem)
}

func NewAnd(rm RM, imm Imm) (Instr, error)    { return newGroup1RMImm("and", extAnd, rm, imm) }
func NewAndReg(rm RM, reg Reg) (Instr, error) { return newGroup1RMReg("and", extAnd, rm, reg) }
func NewAndMem(reg Reg, mem Mem) (Instr, error) {
	return newGroup1RegMem("and", extAnd, reg, mem)
}

func NewSub(rm RM, imm Imm) (Instr, error)    { return newGroup1RMImm("sub", extSub, rm, imm) }
func NewSubReg(rm RM, reg Reg) (Instr, error) { return newGroup1RMReg("sub", extSub, rm, reg) }
func NewSubMem(reg Reg, mem Mem) (Instr, error) {
	return newGroup1RegMem("sub", extSub, reg, mem)
}

func NewXor(rm RM, imm Imm) (Instr, error)    { return newGroup1RMImm("xor", extXor, rm, imm) }
func NewXorReg(rm RM, reg Reg) (Instr, error) { return newGroup1RMReg("xor", extXor, rm, reg) }
func NewXorMem(reg Reg, mem Mem) (Instr, error) {
	return newGroup1RegMem("xor", extXor, reg, mem)
}

func NewCmp(rm RM, imm Imm) (Instr, error)    { return newGroup1RMImm("cmp", extCmp, rm, imm) }
func NewCmpReg(rm RM, reg Reg) (Instr, error) { return newGroup1RMReg("cmp", extCmp, rm, reg) }
func NewCmpMem(reg Reg, mem Mem) (Instr, error) {
	return newGroup1RegMem("cmp", extCmp, reg, mem)
}

// canUseRegAShortcut reports whether this is an RM,Imm instruction whose rm
// is register 0 (al/ax/eax/rax), which gets a one-byte-shorter opcode that
// skips ModRM entirely.
func (g *group1Instr) canUseRegAShortcut() bool {
	if g.enc != binRMImm {
		return false
	}
	reg, ok := g.rm.(Reg)
	return ok && reg.Index() == 0
}

func (g *group1Instr) opcode() byte {
	base := g.ext * 8
	if g.canUseRegAShortcut() {
		if g.rm.Size() == Size8 {
			return base + 0x04
		}
		return base + 0x05
	}
	switch g.enc {
	case binRMImm:
		if g.rm.Size() == Size8 {
			return 0x80
		}
		return 0x81
	case binRMImm8:
		return 0x83
	case binRMReg:
		if g.rm.Size() == Size8 {
			return base + 0x00
		}
		return base + 0x01
	default: // binRegRM
		if g.rm.Size() == Size8 {
			return base + 0x02
		}
		return base + 0x03
	}
}

func (g *group1Instr) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	enc := NewInstrEncoder(code)
	enc.EncodeOperandSize(g.rm.Size())
	if g.rm.RequiresREX() || g.other.RequiresREX() {
		enc.EncodeREX()
	}
	enc.EncodeOpcode(g.opcode())
	if !g.canUseRegAShortcut() && (g.enc == binRMImm || g.enc == binRMImm8) {
		enc.EncodeOpcodeExt(g.ext)
	}
	switch {
	case g.canUseRegAShortcut():
	case g.enc == binRMImm || g.enc == binRMImm8 || g.enc == binRMReg:
		enc.EncodeRM(g.rm)
	default: // binRegRM
		enc.EncodeModRMReg(g.rm.(Reg))
	}
	switch g.enc {
	case binRMImm, binRMImm8:
		enc.EncodeImm(g.other.(Imm))
	case binRMReg:
		enc.EncodeModRMReg(g.other.(Reg))
	default: // binRegRM
		enc.EncodeRM(g.other.(Mem))
	}
	if enc.Err() != nil {
		return -1, wrapEncodeError(enc.Err())
	}
	return enc.Size(), nil
}

func (g *group1Instr) String() string {
	return fmt.Sprintf("%s %s,%s", g.mnemonic, g.rm.String(), g.other.String())
}

// group3Instr implements the single-operand "group 3" instructions (not,
// neg, mul, div, idiv), which all share opcode 0xf6 (8-bit)/0xf7 (wider)
// distinguished only by their ModRM.reg extension digit.
type group3Instr struct {
	mnemonic string
	ext      uint8
	rm       RM
}

func newGroup3(mnemonic string, ext uint8, rm RM) *group3Instr {
	return &group3Instr{mnemonic: mnemonic, ext: ext, rm: rm}
}

func NewNot(rm RM) Instr  { return newGroup3("not", 2, rm) }
func NewNeg(rm RM) Instr  { return newGroup3("neg", 3, rm) }
func NewMul(rm RM) Instr  { return newGroup3("mul", 4, rm) }
func NewDiv(rm RM) Instr  { return newGroup3("div", 6, rm) }
func NewIdiv(rm RM) Instr { return newGroup3("idiv", 7, rm) }

func (g *group3Instr) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	enc := NewInstrEncoder(code)
	enc.EncodeOperandSize(g.rm.Size())
	if g.rm.RequiresREX() {
		enc.EncodeREX()
	}
	if g.rm.Size() == Size8 {
		enc.EncodeOpcode(0xf6)
	} else {
		enc.EncodeOpcode(0xf7)
	}
	enc.EncodeOpcodeExt(g.ext)
	enc.EncodeRM(g.rm)
	if enc.Err() != nil {
		return -1, wrapEncodeError(enc.Err())
	}
	return enc.Size(), nil
}

func (g *group3Instr) String() string { return g.mnemonic + " " + g.rm.String() }

// imulEncoding mirrors imul's three constructor shapes (spec.md §4.3).
type imulEncoding uint8

const (
	imulRegADRM imulEncoding = iota
	imulRegRM
	imulRegRMImm
	imulRegRMImm8
)

// Imul is signed multiply, in its one-operand (factor*rdx:rax), two-operand
// (reg *= rm), and three-operand (reg = rm*imm) forms.
type Imul struct {
	enc imulEncoding
	a   Reg
	b   RM
	imm Imm
}

// NewImul builds the one-operand form: rdx:rax = rax * rm.
func NewImul(rm RM) *Imul { return &Imul{enc: imulRegADRM, b: rm} }

// NewImulReg builds the two-operand form: reg *= rm.
func NewImulReg(reg Reg, rm RM) (*Imul, error) {
	if reg.Size() != rm.Size() {
		return nil, errors.Errorf("x64: imul: unsupported reg size %d, rm size %d combination", reg.Size(), rm.Size())
	}
	if reg.Size() == Size8 {
		return nil, errors.New("x64: imul: unsupported operand size 8")
	}
	return &Imul{enc: imulRegRM, a: reg, b: rm}, nil
}

// NewImulImm builds the three-operand form: reg = rm * imm.
func NewImulImm(reg Reg, rm RM, imm Imm) (*Imul, error) {
	if reg.Size() != rm.Size() {
		return nil, errors.Errorf("x64: imul: unsupported reg size %d, rm size %d combination", reg.Size(), rm.Size())
	}
	if reg.Size() == Size8 {
		return nil, errors.New("x64: imul: unsupported operand size 8")
	}
	if imm.Size() == Size64 {
		return nil, errors.New("x64: imul: imm64 operand not supported")
	}
	var enc imulEncoding
	switch {
	case reg.Size() == imm.Size(), reg.Size() == Size64 && imm.Size() == Size32:
		enc = imulRegRMImm
	case imm.Size() == Size8:
		enc = imulRegRMImm8
	default:
		return nil, errors.Errorf("x64: imul: unsupported reg size %d, imm size %d combination", reg.Size(), imm.Size())
	}
	return &Imul{enc: enc, a: reg, b: rm, imm: imm}, nil
}

// canSkipImm reports whether no immediate is encoded: always for the forms
// without one, and for an immediate form whose multiplier is exactly 1,
// which the assembler drops in favor of the shorter two-operand 0x0f 0xaf
// encoding.
func (m *Imul) canSkipImm() bool {
	if m.enc != imulRegRMImm && m.enc != imulRegRMImm8 {
		return true
	}
	return m.imm.Value() == 1
}

func (m *Imul) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	enc := NewInstrEncoder(code)
	enc.EncodeOperandSize(m.b.Size())
	needsREX := m.b.RequiresREX()
	if m.enc != imulRegADRM {
		needsREX = needsREX || m.a.RequiresREX()
	}
	if !m.canSkipImm() {
		needsREX = needsREX || m.imm.RequiresREX()
	}
	if needsREX {
		enc.EncodeREX()
	}
	switch m.enc {
	case imulRegADRM:
		if m.b.Size() == Size8 {
			enc.EncodeOpcode(0xf6)
		} else {
			enc.EncodeOpcode(0xf7)
		}
		enc.EncodeOpcodeExt(5)
		enc.EncodeRM(m.b)
	default:
		switch {
		case m.canSkipImm():
			enc.EncodeOpcode(0x0f, 0xaf)
		case m.enc == imulRegRMImm:
			enc.EncodeOpcode(0x69)
		default:
			enc.EncodeOpcode(0x6b)
		}
		enc.EncodeModRMReg(m.a)
		enc.EncodeRM(m.b)
		if !m.canSkipImm() {
			enc.EncodeImm(m.imm)
		}
	}
	if enc.Err() != nil {
		return -1, wrapEncodeError(enc.Err())
	}
	return enc.Size(), nil
}

func (m *Imul) String() string {
	switch {
	case m.enc == imulRegADRM:
		return "imul " + m.b.String()
	case m.canSkipImm():
		return fmt.Sprintf("imul %s,%s", m.a.String(), m.b.String())
	default:
		return fmt.Sprintf("imul %s,%s,%s", m.a.String(), m.b.String(), m.imm.String())
	}
}

// SignExtendRegA sign-extends the A register into the next-wider size
// (cbw/cwde/cdqe).
type SignExtendRegA struct{ size Size }

func NewSignExtendRegA(size Size) (*SignExtendRegA, error) {
	if size != Size16 && size != Size32 && size != Size64 {
		return nil, errors.Errorf("x64: cbw/cwde/cdqe: expected operand size 16, 32, or 64, got %d", size)
	}
	return &SignExtendRegA{size: size}, nil
}

func (s *SignExtendRegA) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	enc := NewInstrEncoder(code)
	enc.EncodeOperandSize(s.size)
	enc.EncodeOpcode(0x98)
	if enc.Err() != nil {
		return -1, wrapEncodeError(enc.Err())
	}
	return enc.Size(), nil
}

func (s *SignExtendRegA) String() string {
	switch s.size {
	case Size16:
		return "cbw"
	case Size32:
		return "cwde"
	default:
		return "cdqe"
	}
}

// SignExtendRegAD sign-extends the A register into the D:A register pair
// (cwd/cdq/cqo).
type SignExtendRegAD struct{ size Size }

func NewSignExtendRegAD(size Size) (*SignExtendRegAD, error) {
	if size != Size16 && size != Size32 && size != Size64 {
		return nil, errors.Errorf("x64: cwd/cdq/cqo: expected operand size 16, 32, or 64, got %d", size)
	}
	return &SignExtendRegAD{size: size}, nil
}

func (s *SignExtendRegAD) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	enc := NewInstrEncoder(code)
	enc.EncodeOperandSize(s.size)
	enc.EncodeOpcode(0x99)
	if enc.Err() != nil {
		return -1, wrapEncodeError(enc.Err())
	}
	return enc.Size(), nil
}

func (s *SignExtendRegAD) String() string {
	switch s.size {
	case Size16:
		return "cwd"
	case Size32:
		return "cdq"
	default:
		return "cqo"
	}
}

// testEncoding mirrors test's two constructor shapes.
type testEncoding uint8

const (
	testRMImm testEncoding = iota
	testRMReg
)

// Test computes rm&other and sets flags without storing the result.
type Test struct {
	enc testEncoding
	rm  RM
	reg Reg
	imm Imm
}

func NewTestImm(rm RM, imm Imm) (*Test, error) {
	if imm.Size() == Size64 {
		return nil, errors.New("x64: test: imm64 operand not supported")
	}
	if rm.Size() != imm.Size() && !(rm.Size() == Size64 && imm.Size() == Size32) {
		return nil, errors.Errorf("x64: test: unsupported rm size %d, imm size %d combination", rm.Size(), imm.Size())
	}
	return &Test{enc: testRMImm, rm: rm, imm: imm}, nil
}

func NewTestReg(rm RM, reg Reg) (*Test, error) {
	if rm.Size() != reg.Size() {
		return nil, errors.Errorf("x64: test: unsupported rm size %d, reg size %d combination", rm.Size(), reg.Size())
	}
	return &Test{enc: testRMReg, rm: rm, reg: reg}, nil
}

func (t *Test) canUseRegAShortcut() bool {
	if t.enc != testRMImm {
		return false
	}
	reg, ok := t.rm.(Reg)
	return ok && reg.Index() == 0
}

func (t *Test) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	enc := NewInstrEncoder(code)
	enc.EncodeOperandSize(t.rm.Size())
	otherRequiresREX := t.imm.RequiresREX()
	if t.enc == testRMReg {
		otherRequiresREX = t.reg.RequiresREX()
	}
	if t.rm.RequiresREX() || otherRequiresREX {
		enc.EncodeREX()
	}
	switch {
	case t.canUseRegAShortcut():
		if t.rm.Size() == Size8 {
			enc.EncodeOpcode(0xa8)
		} else {
			enc.EncodeOpcode(0xa9)
		}
	case t.enc == testRMImm:
		if t.rm.Size() == Size8 {
			enc.EncodeOpcode(0xf6)
		} else {
			enc.EncodeOpcode(0xf7)
		}
		enc.EncodeOpcodeExt(0)
	default: // testRMReg
		if t.rm.Size() == Size8 {
			enc.EncodeOpcode(0x84)
		} else {
			enc.EncodeOpcode(0x85)
		}
	}
	if !t.canUseRegAShortcut() {
		enc.EncodeRM(t.rm)
	}
	switch t.enc {
	case testRMImm:
		enc.EncodeImm(t.imm)
	default: // testRMReg
		enc.EncodeModRMReg(t.reg)
	}
	if enc.Err() != nil {
		return -1, wrapEncodeError(enc.Err())
	}
	return enc.Size(), nil
}

func (t *Test) String() string {
	if t.enc == testRMImm {
		return fmt.Sprintf("test %s,%s", t.rm.String(), t.imm.String())
	}
	return fmt.Sprintf("test %s,%s", t.rm.String(), t.reg.String())
}
