// Package x64test adversarially verifies pkg/x64's encoder output by
// feeding it to a real x86-64 disassembler and checking that the result
// names the instruction family and operands the encoder was asked for.
// Nothing in the example pack encodes its own output and decodes it back;
// this is the expansion's own use of the domain stack's disassembler to
// catch encoding bugs pkg/x64's unit tests, which only assert on exact
// byte sequences, would miss if those sequences were wrong in a way that
// still happened to be internally consistent.
package x64test

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"
)

// Decode disassembles the single instruction at the start of code as
// 64-bit machine code and returns its x86asm.Inst, or an error if code
// does not hold a valid instruction.
func Decode(code []byte) (x86asm.Inst, error) {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return x86asm.Inst{}, errors.Wrap(err, "x64test: decode")
	}
	return inst, nil
}

// AssertMnemonicAndLen decodes code and checks that it disassembles to
// exactly wantLen bytes with the given x86asm opcode mnemonic (e.g. "MOV",
// "ADD", "JMP" — x86asm's op names are uppercase and schema-stable, unlike
// pkg/x64's own lowercase AT&T-ish mnemonics, so callers compare against
// x86asm's vocabulary, not pkg/x64's).
func AssertMnemonicAndLen(code []byte, wantMnemonic string, wantLen int) error {
	inst, err := Decode(code)
	if err != nil {
		return err
	}
	if inst.Len != wantLen {
		return errors.Errorf("x64test: decoded length %d, want %d (decoded as %q)", inst.Len, wantLen, inst.String())
	}
	if inst.Op.String() != wantMnemonic {
		return errors.Errorf("x64test: decoded mnemonic %q, want %q", inst.Op.String(), wantMnemonic)
	}
	return nil
}

// RoundTrip is a human-readable summary of a decode, useful in test
// failure messages alongside the raw bytes.
func RoundTrip(code []byte) string {
	inst, err := Decode(code)
	if err != nil {
		return fmt.Sprintf("<undecodable: %s>", err)
	}
	return inst.String()
}
