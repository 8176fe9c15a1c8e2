package x64

// InstrEncoder assembles one instruction's bytes into a CodeBuffer in the
// fixed x86-64 field order: operand-size prefix, REX, opcode byte(s),
// ModRM, SIB, displacement, immediate (spec.md §4.2). Every Encode* method
// writes through to the buffer immediately, the same way the original
// backend mutates bytes through pointers it already handed out: later
// calls revise a field (e.g. OR-ing a REX bit in) by writing the same
// offset again rather than by buffering the whole instruction locally.
type InstrEncoder struct {
	code CodeBuffer
	size int64

	hasREX bool
	rexOff int64
	rexVal byte

	opcodeOff   int64
	opcodeBytes []byte

	hasModRM bool
	modrmOff int64
	modrmVal byte

	hasSIB bool
	sibOff int64
	sibVal byte

	dispOff int64
	dispLen int64

	err error
}

// NewInstrEncoder creates an encoder writing into code starting at index 0.
func NewInstrEncoder(code CodeBuffer) *InstrEncoder {
	return &InstrEncoder{code: code, rexOff: -1, opcodeOff: -1, modrmOff: -1, sibOff: -1, dispOff: -1}
}

// Size returns the number of bytes written so far.
func (e *InstrEncoder) Size() int64 { return e.size }

// Err returns the first buffer error encountered, if any.
func (e *InstrEncoder) Err() error { return e.err }

func (e *InstrEncoder) set(off int64, v byte) {
	if e.err != nil {
		return
	}
	if err := e.code.Set(off, v); err != nil {
		e.err = err
	}
}

func (e *InstrEncoder) ensureREX() {
	if e.hasREX {
		return
	}
	e.hasREX = true
	e.rexOff = e.size
	e.rexVal = 0x40
	e.size++
	e.set(e.rexOff, e.rexVal)
}

func (e *InstrEncoder) orREX(bit byte) {
	e.ensureREX()
	e.rexVal |= bit
	e.set(e.rexOff, e.rexVal)
}

func (e *InstrEncoder) ensureModRM() {
	if e.hasModRM {
		return
	}
	e.hasModRM = true
	e.modrmOff = e.size
	e.size++
	e.set(e.modrmOff, e.modrmVal)
}

func (e *InstrEncoder) writeModRM() { e.set(e.modrmOff, e.modrmVal) }

func (e *InstrEncoder) ensureSIB() {
	if e.hasSIB {
		return
	}
	e.hasSIB = true
	e.sibOff = e.size
	e.size++
	e.set(e.sibOff, e.sibVal)
}

func (e *InstrEncoder) writeSIB() { e.set(e.sibOff, e.sibVal) }

func (e *InstrEncoder) ensureDisp(n uint8) {
	if e.dispLen != 0 {
		return
	}
	e.dispOff = e.size
	e.dispLen = int64(n)
	e.size += e.dispLen
	for i := int64(0); i < e.dispLen; i++ {
		e.set(e.dispOff+i, 0)
	}
}

// EncodeOperandSize emits the 0x66 operand-size prefix for 16-bit operands
// and, for 64-bit operands, marks REX.W: x86-64 has no opcode-level way to
// select a 64-bit operation, only REX.W, so this is mandatory regardless of
// whether either operand individually RequiresREX.
func (e *InstrEncoder) EncodeOperandSize(size Size) {
	switch size {
	case Size16:
		off := e.size
		e.size++
		e.set(off, 0x66)
	case Size64:
		e.orREX(0x08)
	}
}

// EncodeREX ensures a REX byte is present, used when an operand's
// RequiresREX is true for a reason EncodeOperandSize wouldn't otherwise
// catch (an 8-bit operand selecting spl/bpl/sil/dil, or a register index
// needing REX.B/R/X).
func (e *InstrEncoder) EncodeREX() { e.ensureREX() }

// EncodeOpcode emits 1-3 literal opcode bytes.
func (e *InstrEncoder) EncodeOpcode(bytes ...byte) {
	e.opcodeOff = e.size
	e.opcodeBytes = append([]byte(nil), bytes...)
	for i, b := range bytes {
		e.set(e.opcodeOff+int64(i), b)
	}
	e.size += int64(len(bytes))
}

// EncodeOpcodeExt packs a 3-bit opcode extension into ModRM.reg, for
// single-operand instructions that use the ModRM.reg field to select a
// variant instead of naming a second register operand.
func (e *InstrEncoder) EncodeOpcodeExt(ext uint8) {
	e.ensureModRM()
	e.modrmVal = (e.modrmVal &^ 0x38) | ((ext & 0x7) << 3)
	e.writeModRM()
}

// EncodeOpcodeReg packs reg's low 3 bits into the opcode byte at
// opcodeIndex, left-shifted by lshift, and sets REX.B if reg needs it —
// used by the register-in-opcode forms (e.g. mov r64,imm64's 0xb8+r, or
// xchg's 0x90+r shortcut).
func (e *InstrEncoder) EncodeOpcodeReg(reg Reg, opcodeIndex, lshift uint8) {
	if reg.Index() >= 8 {
		e.orREX(0x01)
	}
	off := e.opcodeOff + int64(opcodeIndex)
	b := e.opcodeBytes[opcodeIndex]
	b &^= 0x7 << lshift
	b |= (reg.Index() & 0x7) << lshift
	e.opcodeBytes[opcodeIndex] = b
	e.set(off, b)
}

// EncodeModRMReg packs reg into ModRM.reg, setting REX.R if needed.
func (e *InstrEncoder) EncodeModRMReg(reg Reg) {
	e.ensureModRM()
	if reg.Index() >= 8 {
		e.orREX(0x04)
	}
	e.modrmVal = (e.modrmVal &^ 0x38) | ((reg.Index() & 0x7) << 3)
	e.writeModRM()
}

// EncodeRM encodes rm into ModRM.rm (and, for memory operands, SIB and
// displacement), allocating whichever of those bytes rm needs.
func (e *InstrEncoder) EncodeRM(rm RM) {
	e.ensureModRM()
	if rm.RequiresSIB() {
		e.ensureSIB()
	}
	if d := rm.RequiredDispSize(); d > 0 {
		e.ensureDisp(d)
	}
	switch v := rm.(type) {
	case Reg:
		e.encodeRegRM(v)
	case Mem:
		e.encodeMemRM(v)
	default:
		panic("BUG: x64: unknown RM implementation")
	}
}

func (e *InstrEncoder) encodeRegRM(r Reg) {
	if r.Index() >= 8 {
		e.orREX(0x01)
	}
	e.modrmVal = (e.modrmVal &^ 0xc0) | 0xc0
	e.modrmVal = (e.modrmVal &^ 0x07) | (r.Index() & 0x7)
	e.writeModRM()
}

// encodeMemRM ports ops.cc's Mem::EncodeInModRM_SIB_Disp exactly: the
// disp-only case forces Mod=00/RM=100 with a SIB that carries no base
// (b=101) and always a 32-bit displacement; the base(+index) case picks
// RM=base (or RM=100 with a SIB byte, which is mandatory whenever an index
// is present or the base is rsp/r12 since their RM encodings of 100 are
// reserved), with the smallest displacement size the addressing mode
// allows (forcing a disp8 of 0 for rbp/r13, whose Mod=00 encoding without a
// displacement means something else entirely).
func (e *InstrEncoder) encodeMemRM(m Mem) {
	if m.baseReg != noReg && m.baseReg >= 8 {
		e.orREX(0x01)
	}
	if m.indexReg != noReg && m.indexReg >= 8 {
		e.orREX(0x02)
	}

	if m.baseReg == noReg {
		e.modrmVal = (e.modrmVal &^ 0xc7) | 0x04 // Mod=00, RM=100 (SIB follows)
		e.writeModRM()
		if m.indexReg == noReg {
			e.sibVal = 0x25 // scale=00, index=100 (none), base=101 (disp32 only)
		} else {
			e.sibVal = (m.scale << 6) | ((m.indexReg & 0x7) << 3) | 0x05
		}
		e.writeSIB()
		e.setDisp(uint32(m.disp), 4)
		return
	}

	base3 := m.baseReg & 0x7
	needsSIB := m.indexReg != noReg || base3 == 4
	if needsSIB {
		e.modrmVal = (e.modrmVal &^ 0xc7) | 0x04 // RM=100 (SIB follows)
		if m.indexReg == noReg {
			e.sibVal = (0 << 6) | (0x4 << 3) | base3 // index=100 (none)
		} else {
			e.sibVal = (m.scale << 6) | ((m.indexReg & 0x7) << 3) | base3
		}
		e.writeSIB()
	} else {
		e.modrmVal = (e.modrmVal &^ 0xc7) | base3
	}

	switch {
	case m.disp == 0 && base3 != 5:
		e.modrmVal = e.modrmVal &^ 0xc0 // Mod=00, no displacement
	case m.disp >= -128 && m.disp <= 127:
		e.modrmVal = (e.modrmVal &^ 0xc0) | 0x40 // Mod=01, disp8
		e.setDisp(uint32(uint8(int8(m.disp))), 1)
	default:
		e.modrmVal = (e.modrmVal &^ 0xc0) | 0x80 // Mod=10, disp32
		e.setDisp(uint32(m.disp), 4)
	}
	e.writeModRM()
}

func (e *InstrEncoder) setDisp(bits uint32, n int) {
	for i := 0; i < n; i++ {
		e.set(e.dispOff+int64(i), byte(bits>>(8*i)))
	}
}

// EncodeImm appends imm's encoded bytes.
func (e *InstrEncoder) EncodeImm(imm Imm) {
	n := imm.RequiredImmSize()
	buf := make([]byte, n)
	imm.EncodeInto(buf)
	off := e.size
	for i, b := range buf {
		e.set(off+int64(i), b)
	}
	e.size += int64(n)
}
