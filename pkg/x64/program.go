package x64

import (
	"fmt"
	"strings"
)

// MCBlock is a sequence of machine instructions with a program-wide unique
// id (spec.md §3.6).
type MCBlock struct {
	id     BlockID
	instrs []Instr
}

func (b *MCBlock) ID() BlockID      { return b.id }
func (b *MCBlock) Instrs() []Instr  { return b.instrs }
func (b *MCBlock) Ref() BlockRef    { return NewBlockRef(b.id) }

// AddInstr appends instr to the block.
func (b *MCBlock) AddInstr(instr Instr) { b.instrs = append(b.instrs, instr) }

// Encode records the block's address with linker, then encodes each
// instruction in order at increasing offsets within code, aborting
// immediately and returning -1 if any instruction fails to encode
// (spec.md §4.5).
func (b *MCBlock) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	linker.RecordBlockAddr(b.id, code.Base())
	var c int64
	for _, instr := range b.instrs {
		view, err := code.View(c)
		if err != nil {
			return -1, wrapEncodeError(err)
		}
		n, err := instr.Encode(linker, view)
		if err != nil {
			return -1, err
		}
		c += n
	}
	return c, nil
}

func (b *MCBlock) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "BB%d:\n", b.id)
	for i, instr := range b.instrs {
		sb.WriteString("\t")
		sb.WriteString(instr.String())
		if i < len(b.instrs)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// MCFunc is a named sequence of blocks.
type MCFunc struct {
	id     FuncID
	name   string
	prog   *MCProgram
	blocks []*MCBlock
}

func (f *MCFunc) ID() FuncID        { return f.id }
func (f *MCFunc) Name() string      { return f.name }
func (f *MCFunc) Blocks() []*MCBlock { return f.blocks }
func (f *MCFunc) Ref() FuncRef       { return NewFuncRef(f.id) }

// AddBlock appends a new, empty block to the function. The block's id is
// drawn from the owning program's global counter, not a per-function one:
// block ids are unique across the whole program (spec.md §3.6).
func (f *MCFunc) AddBlock() *MCBlock {
	b := &MCBlock{id: f.prog.nextBlockID}
	f.prog.nextBlockID++
	f.blocks = append(f.blocks, b)
	return b
}

// Encode records the function's address with linker, then encodes each
// block in order.
func (f *MCFunc) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	linker.RecordFuncAddr(f.id, code.Base())
	var c int64
	for _, blk := range f.blocks {
		view, err := code.View(c)
		if err != nil {
			return -1, wrapEncodeError(err)
		}
		n, err := blk.Encode(linker, view)
		if err != nil {
			return -1, err
		}
		c += n
	}
	return c, nil
}

func (f *MCFunc) String() string {
	var sb strings.Builder
	sb.WriteString(f.name)
	sb.WriteString(":\n")
	for i, blk := range f.blocks {
		sb.WriteString(blk.String())
		if i < len(f.blocks)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// MCProgram is a sequence of functions, the top-level unit a Linker
// resolves addresses across.
type MCProgram struct {
	funcs       []*MCFunc
	nextFuncID  FuncID
	nextBlockID BlockID
}

// NewMCProgram creates an empty program.
func NewMCProgram() *MCProgram { return &MCProgram{} }

func (p *MCProgram) Funcs() []*MCFunc { return p.funcs }

// AddFunc appends a new, empty function to the program.
func (p *MCProgram) AddFunc(name string) *MCFunc {
	f := &MCFunc{id: p.nextFuncID, name: name, prog: p}
	p.nextFuncID++
	p.funcs = append(p.funcs, f)
	return f
}

// Encode lays out every function back to back within code, in a single
// pre-order walk (program, then each function, then each of its blocks,
// then each instruction) that records every address with linker before
// descending into what follows it. Run it once against a DummyBuffer to
// learn the program's total size, allocate a real Buffer of that size, and
// run it again with a fresh Linker to get real bytes and real patch sites,
// then call Linker.ApplyPatches.
func (p *MCProgram) Encode(linker *Linker, code CodeBuffer) (int64, error) {
	var c int64
	for _, f := range p.funcs {
		view, err := code.View(c)
		if err != nil {
			return -1, wrapEncodeError(err)
		}
		n, err := f.Encode(linker, view)
		if err != nil {
			return -1, err
		}
		c += n
	}
	return c, nil
}

func (p *MCProgram) String() string {
	var sb strings.Builder
	for i, f := range p.funcs {
		sb.WriteString(f.String())
		if i < len(p.funcs)-1 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}
