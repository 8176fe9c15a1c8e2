package ir

// Validate checks the structural invariants of spec.md §3.4 that don't
// require dominance information: every block is reachable from the entry
// block, the entry block has no predecessors, every Computed is defined
// exactly once, and every block ends with exactly one terminator with no
// instruction following it.
//
// Dominance-dependent invariants (each definition dominates its uses; a phi
// argument's definition dominates the predecessor it flows in from) are checked separately by
// pkg/domtree.ValidateDominance once a dominator tree has been computed, to
// avoid ir importing domtree.
func Validate(f *Func) error {
	entry := f.Entry()
	if entry == nil {
		return structuralErrorf("func %s has no entry block", f.name)
	}
	if len(entry.Parents()) != 0 {
		return structuralErrorf("func %s: entry block %s has predecessors", f.name, entry.Name())
	}

	reachable := map[BlockID]bool{entry.id: true}
	stack := []*Block{entry}
	for len(stack) > 0 {
		n := len(stack) - 1
		b := stack[n]
		stack = stack[:n]
		for _, c := range b.children {
			if !reachable[c] {
				reachable[c] = true
				stack = append(stack, f.Block(c))
			}
		}
	}
	for _, b := range f.Blocks() {
		if !reachable[b.id] {
			return structuralErrorf("func %s: block %s is unreachable from entry", f.name, b.Name())
		}
	}

	defined := make(map[ComputedID]bool)
	for _, b := range f.Blocks() {
		if len(b.instrs) == 0 {
			return structuralErrorf("func %s: block %s does not end with a terminator", f.name, b.Name())
		}
		for i, instr := range b.instrs {
			isLast := i == len(b.instrs)-1
			if IsTerminator(instr) && !isLast {
				return structuralErrorf("func %s: block %s has instructions after its terminator", f.name, b.Name())
			}
			if !IsTerminator(instr) && isLast {
				return structuralErrorf("func %s: block %s does not end with a terminator", f.name, b.Name())
			}
			if IsPhi(instr) {
				phi := instr.(*Phi)
				preds := b.Parents()
				if len(preds) < 2 {
					return structuralErrorf("func %s: block %s has a phi but fewer than 2 predecessors", f.name, b.Name())
				}
				if len(phi.Args) != len(preds) {
					return structuralErrorf("func %s: phi %s has %d args but block has %d predecessors",
						f.name, phi.Result, len(phi.Args), len(preds))
				}
				for _, pred := range preds {
					v, ok := phi.ArgOf(pred)
					if !ok {
						return structuralErrorf("func %s: phi %s missing arg for predecessor %s", f.name, phi.Result, BlockValue{Block: pred})
					}
					if v.ValueType() != phi.Result.Typ {
						return structuralErrorf("func %s: phi %s arg type mismatch", f.name, phi.Result)
					}
				}
			}
			for _, r := range instr.Results() {
				if defined[r.ID] {
					return structuralErrorf("func %s: value %s defined more than once", f.name, r)
				}
				defined[r.ID] = true
			}
		}
	}
	return nil
}
