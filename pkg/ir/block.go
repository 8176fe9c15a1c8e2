package ir

// Block owns an ordered instruction list and carries an id unique within its
// Func. Predecessors and successors are id sets populated by the Func that
// owns the block (Block itself never chases another Block by pointer),
// matching the arena-plus-index architecture of Design Note 9.
type Block struct {
	id     BlockID
	instrs []Instr

	parents  []BlockID // predecessors, in the order they were linked
	children []BlockID // successors, in terminator order
}

// ID returns the block's id, unique within its Func.
func (b *Block) ID() BlockID { return b.id }

// Instrs returns the block's instructions in insertion order. The slice is
// owned by Block; callers must not retain it across further mutation.
func (b *Block) Instrs() []Instr { return b.instrs }

// Parents returns the ids of this block's predecessors.
func (b *Block) Parents() []BlockID { return b.parents }

// Children returns the ids of this block's successors.
func (b *Block) Children() []BlockID { return b.children }

// PhiPrefixLen returns the length of the maximal contiguous prefix of Phi
// instructions (spec.md §3.4's "phi prefix").
func (b *Block) PhiPrefixLen() int {
	n := 0
	for _, instr := range b.instrs {
		if !IsPhi(instr) {
			break
		}
		n++
	}
	return n
}

// Phis returns the block's phi-prefix instructions.
func (b *Block) Phis() []*Phi {
	n := b.PhiPrefixLen()
	phis := make([]*Phi, n)
	for i := 0; i < n; i++ {
		phis[i] = b.instrs[i].(*Phi)
	}
	return phis
}

// Terminator returns the block's terminating instruction, or nil if the
// block has no instructions yet (a transient state during construction).
func (b *Block) Terminator() Instr {
	if len(b.instrs) == 0 {
		return nil
	}
	return b.instrs[len(b.instrs)-1]
}

// AppendInstr appends instr to the block. It panics (a "BUG:"-prefixed
// invariant violation, per spec.md §7) if a terminator has already been
// appended, since spec.md §3.3 forbids any instruction after one, or if
// appending a Phi after any non-Phi instruction, since spec.md §3.4 requires
// phis to form a contiguous prefix.
func (b *Block) AppendInstr(instr Instr) {
	if term := b.Terminator(); term != nil && IsTerminator(term) {
		panic("BUG: ir: appended instruction after block terminator in " + b.Name())
	}
	if IsPhi(instr) && b.PhiPrefixLen() != len(b.instrs) {
		panic("BUG: ir: phi instruction appended outside the phi prefix in " + b.Name())
	}
	b.instrs = append(b.instrs, instr)
}

// Name returns the block's debug name, e.g. "{3}".
func (b *Block) Name() string { return BlockValue{Block: b.id}.String() }

func (b *Block) addChild(c BlockID) {
	for _, existing := range b.children {
		if existing == c {
			return
		}
	}
	b.children = append(b.children, c)
}

func (b *Block) addParent(p BlockID) {
	for _, existing := range b.parents {
		if existing == p {
			return
		}
	}
	b.parents = append(b.parents, p)
}

func (b *Block) removeParent(p BlockID) {
	for i, existing := range b.parents {
		if existing == p {
			b.parents = append(b.parents[:i], b.parents[i+1:]...)
			return
		}
	}
}

func (b *Block) removeChild(c BlockID) {
	for i, existing := range b.children {
		if existing == c {
			b.children = append(b.children[:i], b.children[i+1:]...)
			return
		}
	}
}
