// Package driver sequences the load/build/translate pipeline spec.md §6
// describes as the CLI's staged error taxonomy. It is a stand-in for the
// excluded command-line driver (spec.md §1 lists "the command-line driver"
// among the external collaborators this module only specifies the
// boundary of): cmd/katara calls into Pipeline rather than owning the
// sequencing itself, mirroring original_source/Katara/main.cc and
// src/cmd/cmd.cc's load → build → translate → run/interpret split.
package driver

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/arneph/katara/internal/debugdump"
	"github.com/arneph/katara/pkg/callgraph"
	"github.com/arneph/katara/pkg/codegen"
	"github.com/arneph/katara/pkg/domtree"
	"github.com/arneph/katara/pkg/ir"
	"github.com/arneph/katara/pkg/ir/irfmt"
	"github.com/arneph/katara/pkg/ir/phiresolve"
	"github.com/arneph/katara/pkg/regalloc"
	"github.com/arneph/katara/pkg/x64"
)

// Stage names one of the pipeline's three phases, matching spec.md §6's
// "staged error taxonomy (load/build/translate)".
type Stage int

const (
	StageLoad Stage = iota
	StageBuild
	StageTranslate
)

func (s Stage) String() string {
	switch s {
	case StageLoad:
		return "load"
	case StageBuild:
		return "build"
	case StageTranslate:
		return "translate"
	default:
		return "unknown"
	}
}

// StageError names which pipeline phase failed, so a CLI boundary can map
// it to one of the positive exit codes spec.md §6 calls for without
// inspecting the wrapped error's concrete type.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return e.Stage.String() + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

func stageErrorf(stage Stage, err error, format string, args ...any) error {
	return &StageError{Stage: stage, Err: errors.Wrapf(err, format, args...)}
}

// Pipeline runs Load/Build/Translate (encoding included) over one program, optionally
// dumping intermediate artifacts via a Dumper. The zero value is usable:
// logging falls back to logrus's standard logger and debug dumping is a
// no-op (see debugdump.Dumper's nil-receiver methods).
type Pipeline struct {
	Log   *logrus.Logger
	Debug *debugdump.Dumper
}

func (p *Pipeline) logger() *logrus.Logger {
	if p.Log != nil {
		return p.Log
	}
	return logrus.StandardLogger()
}

// Result is everything a later stage (run, interpret, or just inspecting
// encoded bytes) needs.
type Result struct {
	Program    *ir.Program
	Allocs     codegen.Allocations
	CallGraph  *callgraph.CallGraph
	Translator *codegen.Translator
	MCProgram  *x64.MCProgram
	Buffer     *x64.Buffer
	Linker     *x64.Linker
}

// Load parses r's IR text form into a Program (spec.md §6's "IR text form
// is stable and parseable"). The source-language frontend that would
// normally produce this Program is an excluded collaborator (spec.md §1);
// this pipeline only ever accepts IR text as its input.
func (p *Pipeline) Load(r io.Reader) (*ir.Program, error) {
	prog, err := irfmt.Parse(r)
	if err != nil {
		return nil, stageErrorf(StageLoad, err, "parsing IR")
	}
	if p.Debug != nil {
		p.Debug.BeginStage("load")
		p.Debug.IR(prog)
	}
	return prog, nil
}

// Build resolves phi arguments, prunes funcs unreachable from the entry
// func, validates each func's dominance invariants, runs register
// allocation over every func with codegen's default palette, and builds
// the whole program's call graph.
func (p *Pipeline) Build(prog *ir.Program) (codegen.Allocations, *callgraph.CallGraph, error) {
	if err := phiresolve.ResolveProgram(prog); err != nil {
		return nil, nil, stageErrorf(StageBuild, err, "resolving phi arguments")
	}

	if err := callgraph.PruneUnreachable(prog); err != nil {
		return nil, nil, stageErrorf(StageBuild, err, "pruning unreachable funcs")
	}

	allocs := make(codegen.Allocations, len(prog.Funcs()))
	for _, f := range prog.Funcs() {
		tree, err := domtree.Build(f)
		if err != nil {
			return nil, nil, stageErrorf(StageBuild, err, "building dominator tree for func %s", f.Name())
		}
		if err := domtree.ValidateDominance(f, tree); err != nil {
			return nil, nil, stageErrorf(StageBuild, err, "validating dominance for func %s", f.Name())
		}

		alloc, err := regalloc.NewAllocator(codegen.Palette(), nil).Allocate(f)
		if err != nil {
			return nil, nil, stageErrorf(StageBuild, err, "allocating registers for func %s", f.Name())
		}
		allocs[f.ID()] = alloc
	}

	graph := callgraph.Build(prog)

	if p.Debug != nil {
		p.Debug.BeginStage("build")
		p.Debug.IR(prog)
		p.Debug.CallGraph(graph.ToGraph(prog))
	}
	return allocs, graph, nil
}

// Translate lowers prog into machine code and encodes it into a fresh,
// fully-linked Buffer: a dummy pass first measures the program's size, a
// real pass against a Buffer of that size records real addresses, and
// Linker.ApplyPatches resolves every FuncRef/BlockRef operand (spec.md
// §4.1/§4.4's two-pass encode).
func (p *Pipeline) Translate(prog *ir.Program, allocs codegen.Allocations) (*codegen.Translator, *x64.MCProgram, *x64.Buffer, *x64.Linker, error) {
	tr := codegen.NewTranslator(prog, allocs)
	mcProg, err := tr.Translate()
	if err != nil {
		return nil, nil, nil, nil, stageErrorf(StageTranslate, err, "translating to machine code")
	}
	if p.Debug != nil {
		p.Debug.BeginStage("translate")
	}

	sizeLinker := x64.NewLinker()
	size, err := mcProg.Encode(sizeLinker, x64.NewDummyBuffer())
	if err != nil {
		return nil, nil, nil, nil, stageErrorf(StageTranslate, err, "measuring encoded size")
	}

	buf := x64.NewBuffer(make([]byte, size))
	linker := x64.NewLinker()
	if _, err := mcProg.Encode(linker, buf); err != nil {
		return nil, nil, nil, nil, stageErrorf(StageTranslate, err, "encoding machine code")
	}
	if err := linker.ApplyPatches(); err != nil {
		return nil, nil, nil, nil, stageErrorf(StageTranslate, err, "linking machine code")
	}
	return tr, mcProg, buf, linker, nil
}

// Compile runs Load, Build, and Translate in sequence, logging each
// stage's entry at Debug level (the boundary-layer logging convention
// SPEC_FULL.md's ambient stack section documents for internal/driver).
func (p *Pipeline) Compile(r io.Reader) (*Result, error) {
	log := p.logger()

	log.Debug("driver: loading program")
	prog, err := p.Load(r)
	if err != nil {
		return nil, err
	}

	log.Debug("driver: building program")
	allocs, graph, err := p.Build(prog)
	if err != nil {
		return nil, err
	}

	log.Debug("driver: translating program")
	tr, mcProg, buf, linker, err := p.Translate(prog, allocs)
	if err != nil {
		return nil, err
	}

	return &Result{
		Program:    prog,
		Allocs:     allocs,
		CallGraph:  graph,
		Translator: tr,
		MCProgram:  mcProg,
		Buffer:     buf,
		Linker:     linker,
	}, nil
}
