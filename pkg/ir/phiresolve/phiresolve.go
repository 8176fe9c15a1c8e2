// Package phiresolve re-sorts and validates phi argument lists against their
// block's current predecessor set. A builder is free to append a Phi's
// arguments in whatever order its frontend discovers them in; once CFG
// rewrites (block removal, edge redirection) have settled, ResolveFunc brings
// every phi back in line with Block.Parents()'s order, the way the original
// Katara's PhiResolver pass does as a dedicated post-build step rather than
// an invariant the builder alone upholds.
package phiresolve

import (
	"fmt"

	"github.com/arneph/katara/pkg/ir"
)

// UnresolvedPhiError reports a phi whose current argument list cannot be
// reconciled with its block's predecessor set: some predecessor has no
// argument naming it, so there is no value to carry forward. Fixing this
// requires frontend action (emitting an argument for the new edge), not
// reordering, so ResolveFunc stops and reports it rather than guessing.
type UnresolvedPhiError struct {
	FuncName    string
	Block       ir.BlockID
	Result      ir.Computed
	Predecessor ir.BlockID
}

func (e *UnresolvedPhiError) Error() string {
	return fmt.Sprintf("phiresolve: func %s: block %s: phi %s has no argument for predecessor %s",
		e.FuncName, ir.BlockValue{Block: e.Block}, e.Result, ir.BlockValue{Block: e.Predecessor})
}

// ResolveFunc re-sorts every phi's argument list in every block of f into
// the block's current Parents() order, dropping arguments whose origin is no
// longer a predecessor (a stale edge left over from a removed block). It
// reports *UnresolvedPhiError if a current predecessor has no corresponding
// argument.
func ResolveFunc(f *ir.Func) error {
	for _, b := range f.Blocks() {
		preds := b.Parents()
		for _, phi := range b.Phis() {
			resolved := make([]ir.PhiArg, len(preds))
			for i, pred := range preds {
				v, ok := phi.ArgOf(pred)
				if !ok {
					return &UnresolvedPhiError{
						FuncName:    f.Name(),
						Block:       b.ID(),
						Result:      phi.Result,
						Predecessor: pred,
					}
				}
				resolved[i] = ir.PhiArg{Value: v, Origin: ir.BlockValue{Block: pred}}
			}
			phi.Args = resolved
		}
	}
	return nil
}

// ResolveProgram runs ResolveFunc over every func in prog, stopping at the
// first error.
func ResolveProgram(prog *ir.Program) error {
	for _, f := range prog.Funcs() {
		if err := ResolveFunc(f); err != nil {
			return err
		}
	}
	return nil
}
