package ir

import (
	"fmt"
	"strings"
)

// FuncID identifies a Func, unique within its Program.
type FuncID uint64

// Signature is the argument and result type list of a Func.
type Signature struct {
	ArgTypes    []Type
	ResultTypes []Type
}

// Func owns its Blocks in a flat arena and refers to them by BlockID (Design
// Note 9's arena-plus-index architecture, replacing the source's raw
// back-pointers). Block ids are dense-ish but not guaranteed contiguous:
// Func never recycles an id once RemoveBlock has been called for it.
type Func struct {
	id   FuncID
	name string
	sig  Signature

	args []Computed

	blocks   map[BlockID]*Block
	order    []BlockID // insertion order, preserved per spec.md §5
	nextBlk  BlockID
	entry    BlockID
	hasEntry bool

	nextValue ComputedID

	domValid bool
	domTree  map[BlockID]BlockID   // child -> immediate dominator
	domKids  map[BlockID][]BlockID // idom -> children in the dominator tree
}

// NewFunc creates an empty Func. Blocks must be added with AllocateBlock and
// one of them designated the entry block with SetEntry before the Func is
// well-formed.
func NewFunc(id FuncID, name string, sig Signature) *Func {
	args := make([]Computed, len(sig.ArgTypes))
	f := &Func{id: id, name: name, sig: sig, blocks: make(map[BlockID]*Block)}
	for i, t := range sig.ArgTypes {
		args[i] = f.allocateComputed(t)
	}
	f.args = args
	return f
}

func (f *Func) ID() FuncID          { return f.id }
func (f *Func) Name() string        { return f.name }
func (f *Func) Signature() Signature { return f.sig }
func (f *Func) Args() []Computed    { return f.args }

func (f *Func) allocateComputed(t Type) Computed {
	id := f.nextValue
	f.nextValue++
	return Computed{Typ: t, ID: id}
}

// AllocateValue allocates a fresh, as-yet-undefined Computed of type t. The
// caller is responsible for emitting exactly one instruction that defines
// it, preserving the SSA invariant (spec.md §3.4).
func (f *Func) AllocateValue(t Type) Computed { return f.allocateComputed(t) }

// DefineComputed returns a Computed of type t with the given explicit id,
// advancing the func's internal id counter past it so a later AllocateValue
// never reissues it. Unlike AllocateValue, it does not draw the id from the
// counter itself: it exists for callers reconstructing a func whose value
// ids are already fixed by a source representation (the text-form parser).
func (f *Func) DefineComputed(t Type, id ComputedID) Computed {
	if id >= f.nextValue {
		f.nextValue = id + 1
	}
	return Computed{Typ: t, ID: id}
}

// AllocateBlock creates a new, parentless, childless Block owned by f and
// returns it.
func (f *Func) AllocateBlock() *Block {
	id := f.nextBlk
	f.nextBlk++
	b := &Block{id: id}
	f.blocks[id] = b
	f.order = append(f.order, id)
	f.invalidateDomTree()
	return b
}

// DefineBlock creates a block with the given explicit id, advancing the
// func's internal block-id counter past it. As with DefineComputed, this
// serves callers reconstructing a func from a representation (such as
// parsed text) where block ids, possibly non-contiguous from earlier
// removals, are already fixed.
func (f *Func) DefineBlock(id BlockID) *Block {
	b := &Block{id: id}
	f.blocks[id] = b
	f.order = append(f.order, id)
	if id >= f.nextBlk {
		f.nextBlk = id + 1
	}
	f.invalidateDomTree()
	return b
}

// Block returns the block with the given id, or nil if none exists (it may
// never have existed, or may have been removed).
func (f *Func) Block(id BlockID) *Block { return f.blocks[id] }

// Blocks returns the function's live blocks in insertion order.
func (f *Func) Blocks() []*Block {
	out := make([]*Block, 0, len(f.order))
	for _, id := range f.order {
		if b, ok := f.blocks[id]; ok {
			out = append(out, b)
		}
	}
	return out
}

// SetEntry designates id as the entry block. The entry block must have no
// predecessors (spec.md §3.4).
func (f *Func) SetEntry(id BlockID) {
	if _, ok := f.blocks[id]; !ok {
		panic("BUG: ir: SetEntry on unknown block")
	}
	f.entry, f.hasEntry = id, true
	f.invalidateDomTree()
}

// Entry returns the entry block, or nil if none has been set.
func (f *Func) Entry() *Block {
	if !f.hasEntry {
		return nil
	}
	return f.blocks[f.entry]
}

// HasEntry reports whether an entry block has been designated.
func (f *Func) HasEntry() bool { return f.hasEntry }

// Link records that `from` ends with a terminator targeting `to`, updating
// both blocks' parent/child sets. Callers append the terminator instruction
// themselves; Link only maintains the derived parents/children relation.
func (f *Func) Link(from, to BlockID) {
	fb, tb := f.blocks[from], f.blocks[to]
	if fb == nil || tb == nil {
		panic("BUG: ir: Link between unknown blocks")
	}
	fb.addChild(to)
	tb.addParent(from)
	f.invalidateDomTree()
}

// Unlink reverses a previous Link, e.g. while rewriting a terminator.
func (f *Func) Unlink(from, to BlockID) {
	fb, tb := f.blocks[from], f.blocks[to]
	if fb == nil || tb == nil {
		return
	}
	fb.removeChild(to)
	tb.removeParent(from)
	f.invalidateDomTree()
}

// LinksForTerminator derives the Link calls implied by a terminator
// instruction and applies them. Call this immediately after appending a
// Jump, JumpCond, or Return to a block.
func (f *Func) LinksForTerminator(from BlockID, term Instr) {
	switch t := term.(type) {
	case *Jump:
		f.Link(from, t.Dst.Block)
	case *JumpCond:
		f.Link(from, t.DstTrue.Block)
		f.Link(from, t.DstFalse.Block)
	case *Return:
		// no successor
	default:
		panic("BUG: ir: LinksForTerminator on non-terminator instruction")
	}
}

// RemoveBlock deletes the block from the function. Its id is never reused.
func (f *Func) RemoveBlock(id BlockID) {
	b, ok := f.blocks[id]
	if !ok {
		return
	}
	for _, p := range append([]BlockID(nil), b.parents...) {
		f.Unlink(p, id)
	}
	for _, c := range append([]BlockID(nil), b.children...) {
		f.Unlink(id, c)
	}
	delete(f.blocks, id)
	f.invalidateDomTree()
}

func (f *Func) invalidateDomTree() {
	f.domValid = false
	f.domTree = nil
	f.domKids = nil
}

// SetDomTree installs a freshly computed dominator tree, caching it until the
// next block/edge mutation invalidates it (spec.md §4.6). Computed by
// pkg/domtree to avoid an import cycle between ir and domtree.
func (f *Func) SetDomTree(idom map[BlockID]BlockID, children map[BlockID][]BlockID) {
	f.domTree, f.domKids, f.domValid = idom, children, true
}

// DomTreeValid reports whether the cached dominator tree is still valid.
func (f *Func) DomTreeValid() bool { return f.domValid }

// IDom returns the cached immediate dominator of id, and whether the cache
// is populated and contains id.
func (f *Func) IDom(id BlockID) (BlockID, bool) {
	if !f.domValid {
		return 0, false
	}
	p, ok := f.domTree[id]
	return p, ok
}

// DomChildren returns the cached dominator-tree children of id.
func (f *Func) DomChildren(id BlockID) []BlockID {
	if !f.domValid {
		return nil
	}
	return f.domKids[id]
}

// Format renders the func in the fixed text form of spec.md §6.
func (f *Func) Format() string {
	var sb strings.Builder
	args := make([]string, len(f.args))
	for i, a := range f.args {
		args[i] = a.String()
	}
	results := make([]string, len(f.sig.ResultTypes))
	for i, t := range f.sig.ResultTypes {
		results[i] = t.String()
	}
	fmt.Fprintf(&sb, "@%d %s (%s) => (%s) {\n", f.id, f.name, strings.Join(args, ", "), strings.Join(results, ", "))
	for _, b := range f.Blocks() {
		fmt.Fprintf(&sb, "  %s:\n", b.Name())
		for _, instr := range b.Instrs() {
			fmt.Fprintf(&sb, "    %s\n", instr)
		}
	}
	sb.WriteString("}")
	return sb.String()
}

func (f *Func) String() string { return f.Format() }
