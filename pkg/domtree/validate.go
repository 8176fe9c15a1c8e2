package domtree

import (
	"fmt"

	"github.com/arneph/katara/pkg/ir"
)

// ValidateDominance checks the dominance-dependent invariants of spec.md
// §3.4 and the "Dominator" testable property of §8: every non-phi use of a
// Computed defined in block d is in a block dominated by d, and each phi
// argument (v, p) satisfies "if v is a Computed, its defining block
// dominates p".
func ValidateDominance(f *ir.Func, t *Tree) error {
	defBlock := make(map[ir.ComputedID]ir.BlockID)
	for _, b := range f.Blocks() {
		for _, instr := range b.Instrs() {
			for _, r := range instr.Results() {
				defBlock[r.ID] = b.ID()
			}
		}
	}

	for _, b := range f.Blocks() {
		for _, instr := range b.Instrs() {
			if phi, ok := instr.(*ir.Phi); ok {
				for _, arg := range phi.Args {
					computed, ok := arg.Value.(ir.Computed)
					if !ok {
						continue
					}
					d, ok := defBlock[computed.ID]
					if !ok {
						continue
					}
					if !t.Dominates(d, arg.Origin.Block) {
						return fmt.Errorf("domtree: phi %s argument %s not dominated by its definition in %s",
							phi.Result, computed, ir.BlockValue{Block: d})
					}
				}
				continue
			}
			for _, use := range instr.Uses() {
				computed, ok := use.(ir.Computed)
				if !ok {
					continue
				}
				d, ok := defBlock[computed.ID]
				if !ok {
					continue
				}
				if !t.Dominates(d, b.ID()) {
					return fmt.Errorf("domtree: use of %s in %s not dominated by its definition in %s",
						computed, b.Name(), ir.BlockValue{Block: d})
				}
			}
		}
	}
	return nil
}
