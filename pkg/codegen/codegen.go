// Package codegen lowers a register-allocated ir.Func into an x64.MCFunc,
// the last step before pkg/x64's Linker turns a whole program into real
// machine code (spec.md §4). It is the Go counterpart of
// original_source/Katara/x86_64/ir_translator/ir_translator.h: that header
// (whose TranslateFunc/TranslateBlock/TranslateInstr/GenerateMovs
// decomposition this package's Translator.Translate/translateBlock/
// per-instruction translateXxx methods/stageIntoTemps mirror) is present in the
// retrieval pack only as a header, with no surviving .cc body, so every
// method's actual lowering sequence below is this package's own design
// rather than a transcription.
//
// Two simplifications set this translator apart from a production
// backend, both made necessary by constraints elsewhere in this module
// and documented as Open Question decisions in DESIGN.md:
//
//   - Every scalar value, regardless of its declared ir.Type width, is
//     carried in a 64-bit register or an 8-byte stack slot, and every
//     arithmetic/comparison instruction operates at 64-bit width. pkg/x64
//     encodes narrower operands correctly; this package simply never
//     asks it to, so a program that depends on an 8/16/32-bit value
//     silently wrapping on overflow will not reproduce that wraparound.
//   - A function's calling convention (see abi.go) is custom: the first
//     six arguments and first four results are passed in fixed
//     registers, the rest on the stack, caller-allocated in both
//     directions. There is no SETcc-family instruction in pkg/x64, so a
//     comparison whose bool result is consumed by anything other than an
//     immediately following conditional jump is lowered as an explicit
//     three-block branch diamond instead of a single flag-to-register
//     instruction.
//
// Nothing in this module can ever produce a Computed holding a real
// function address: pkg/x64's Linker only patches 4-byte rel32 sites (see
// linker.go), so there is no way to materialize an absolute function
// address into a register. An indirect call (a Call whose callee is a
// Computed rather than a Constant of FuncType), and any use of a Constant
// of FuncType as plain data (a Mov source, a call argument, a returned
// value), therefore fails translation with a *Error naming the
// limitation, rather than encoding silently wrong bytes.
package codegen

import (
	"github.com/pkg/errors"

	"github.com/arneph/katara/pkg/ir"
	"github.com/arneph/katara/pkg/regalloc"
	"github.com/arneph/katara/pkg/x64"
)

// Error reports a Func this package could not translate (an unsupported
// operand shape, or a parallel copy wider than maxParallelCopyWidth).
type Error struct{ msg string }

func (e *Error) Error() string { return "codegen: " + e.msg }

func errorf(format string, args ...any) error {
	return errors.WithStack(&Error{msg: errors.Errorf(format, args...).Error()})
}

// Allocations supplies the register allocation result for each func a
// Translator is asked to translate, keyed by ir.FuncID.
type Allocations map[ir.FuncID]*regalloc.Allocation

// Translator lowers a whole ir.Program into an x64.MCProgram.
type Translator struct {
	prog   *ir.Program
	allocs Allocations

	mcProg   *x64.MCProgram
	funcRefs map[ir.FuncID]x64.FuncRef
}

// NewTranslator builds a Translator for prog, given the per-func
// allocation every func named in prog must have an entry for.
func NewTranslator(prog *ir.Program, allocs Allocations) *Translator {
	return &Translator{prog: prog, allocs: allocs}
}

// FuncRef returns the x64.FuncRef the given ir.FuncID was translated to,
// once Translate has returned successfully. A driver uses this to resolve
// the program's entry func to a callable address after linking.
func (tr *Translator) FuncRef(id ir.FuncID) (x64.FuncRef, bool) {
	ref, ok := tr.funcRefs[id]
	return ref, ok
}

// Translate lowers every func in the program, in the program's func
// order, into a single x64.MCProgram sharing one linker-visible address
// space (spec.md §4.4).
func (tr *Translator) Translate() (*x64.MCProgram, error) {
	tr.mcProg = x64.NewMCProgram()
	tr.funcRefs = make(map[ir.FuncID]x64.FuncRef, len(tr.prog.Funcs()))

	irFuncs := tr.prog.Funcs()
	mcFuncs := make([]*x64.MCFunc, len(irFuncs))
	for i, f := range irFuncs {
		mcFuncs[i] = tr.mcProg.AddFunc(f.Name())
		tr.funcRefs[f.ID()] = mcFuncs[i].Ref()
	}

	for i, f := range irFuncs {
		alloc, ok := tr.allocs[f.ID()]
		if !ok {
			return nil, errorf("func %s (id %d): no register allocation supplied", f.Name(), f.ID())
		}
		ft := &funcTranslator{
			tr:      tr,
			irFunc:  f,
			alloc:   alloc,
			mcFunc:  mcFuncs[i],
			blockOf: make(map[ir.BlockID]*x64.MCBlock),
		}
		if err := ft.translate(); err != nil {
			return nil, errors.Wrapf(err, "translating func %s", f.Name())
		}
	}
	return tr.mcProg, nil
}
