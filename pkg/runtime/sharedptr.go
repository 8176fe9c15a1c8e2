// Package runtime provides IR funcs that implement the reference-counting
// scheme a generated program needs to manage heap-allocated values it does
// not otherwise have instructions to free (spec.md has no Load/Store kind,
// so every "heap object" this runtime manages is represented as a pair of
// plain scalar counts threaded through register-passed arguments and
// results, not as an actual addressable memory block).
//
// The scheme mirrors a strong/weak split-refcount pointer (as in Rust's
// Arc/Weak, or the original's SharedPointerFuncs): every live value carries
// a strong count and a weak count. A weak reference keeps the control data
// alive without keeping the payload alive; the payload is freed once the
// strong count hits zero, and the control data once both counts do.
package runtime

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/arneph/katara/pkg/ir"
	"github.com/arneph/katara/pkg/ir/irfmt"
)

// sharedPointerIR is the fixed text form (spec.md §6) of the eight
// reference-counting funcs, parsed once by Inject and merged into the
// caller's program. Grounded on original_source/src/lang/runtime/
// shared_pointer.{h,cc}'s eight-function shape; the bodies are original,
// since the original loads its IR from a sibling .ir file that isn't part
// of the filtered source pack.
const sharedPointerIR = `
@0 make_shared () => (u64, u64) {
  {0}:
    ret #1:u64, #1:u64
}

@1 strong_copy_shared (%0:u64, %1:u64) => (u64, u64) {
  {0}:
    %2:u64 = add:u64 %0:u64, #1:u64
    ret %2:u64, %1:u64
}

@2 weak_copy_shared (%0:u64, %1:u64) => (u64, u64) {
  {0}:
    %2:u64 = add:u64 %1:u64, #1:u64
    ret %0:u64, %2:u64
}

@3 delete_ptr_to_strong_shared (%0:u64, %1:u64) => (u64, u64, b) {
  {0}:
    %2:u64 = sub:u64 %0:u64, #1:u64
    %3:b = eq:b %2:u64, #0:u64
    jcc %3:b, {1}, {2}
  {1}:
    %4:u64 = sub:u64 %1:u64, #1:u64
    jmp {3}
  {2}:
    jmp {3}
  {3}:
    %5:u64 = phi:u64 %4:u64:{1}, %1:u64:{2}
    ret %2:u64, %5:u64, %3:b
}

@4 delete_strong_shared (%0:u64, %1:u64) => (u64, u64, b) {
  {0}:
    %2:u64 = sub:u64 %0:u64, #1:u64
    %3:b = eq:b %2:u64, #0:u64
    jcc %3:b, {1}, {2}
  {1}:
    %4:u64 = sub:u64 %1:u64, #1:u64
    jmp {3}
  {2}:
    jmp {3}
  {3}:
    %5:u64 = phi:u64 %4:u64:{1}, %1:u64:{2}
    ret %2:u64, %5:u64, %3:b
}

@5 delete_ptr_to_weak_shared (%0:u64, %1:u64) => (u64, u64, b) {
  {0}:
    %2:u64 = sub:u64 %1:u64, #1:u64
    %3:b = eq:b %2:u64, #0:u64
    %4:b = eq:b %0:u64, #0:u64
    %5:b = and:b %3:b, %4:b
    ret %0:u64, %2:u64, %5:b
}

@6 delete_weak_shared (%0:u64, %1:u64) => (u64, u64, b) {
  {0}:
    %2:u64 = sub:u64 %1:u64, #1:u64
    %3:b = eq:b %2:u64, #0:u64
    %4:b = eq:b %0:u64, #0:u64
    %5:b = and:b %3:b, %4:b
    ret %0:u64, %2:u64, %5:b
}

@7 validate_weak_shared (%0:u64) => (b) {
  {0}:
    %1:b = gt:b %0:u64, #0:u64
    ret %1:b
}
`

// Funcs names the eight funcs Inject adds to a program, by the id each was
// given in that program (spec.md Design Note 9's "shared-pointer runtime").
type Funcs struct {
	MakeShared              ir.FuncID
	StrongCopyShared        ir.FuncID
	WeakCopyShared          ir.FuncID
	DeletePtrToStrongShared ir.FuncID
	DeleteStrongShared      ir.FuncID
	DeletePtrToWeakShared   ir.FuncID
	DeleteWeakShared        ir.FuncID
	ValidateWeakShared      ir.FuncID
}

// Inject parses the embedded shared-pointer IR and adds its eight funcs to
// prog, returning the ids they were given (prog.NewFunc assigns these, so
// they never collide with funcs prog already owns). A frontend lowering a
// heap allocation, a pointer copy, or a scope exit references the returned
// ids as call targets.
func Inject(prog *ir.Program) (Funcs, error) {
	src, err := irfmt.Parse(strings.NewReader(sharedPointerIR))
	if err != nil {
		return Funcs{}, errors.Wrap(err, "runtime: parsing embedded shared-pointer IR")
	}
	srcFuncs := src.Funcs()
	if len(srcFuncs) != 8 {
		return Funcs{}, errors.Errorf("runtime: embedded shared-pointer IR has %d funcs, want 8", len(srcFuncs))
	}

	ids := make([]ir.FuncID, len(srcFuncs))
	for i, sf := range srcFuncs {
		df := prog.NewFunc(sf.Name(), sf.Signature())
		copyFuncBody(df, sf)
		ids[i] = df.ID()
	}

	return Funcs{
		MakeShared:              ids[0],
		StrongCopyShared:        ids[1],
		WeakCopyShared:          ids[2],
		DeletePtrToStrongShared: ids[3],
		DeleteStrongShared:      ids[4],
		DeletePtrToWeakShared:   ids[5],
		DeleteWeakShared:        ids[6],
		ValidateWeakShared:      ids[7],
	}, nil
}

// copyFuncBody replicates src's blocks, instructions, and control-flow
// links into dst. dst must already carry the same signature as src (true
// whenever dst was built from src's own Signature), so every Computed src's
// instructions reference by id — including dst's own arguments — already
// names the right value in dst.
func copyFuncBody(dst, src *ir.Func) {
	for _, b := range src.Blocks() {
		nb := dst.DefineBlock(b.ID())
		for _, instr := range b.Instrs() {
			nb.AppendInstr(instr)
			for _, res := range instr.Results() {
				dst.DefineComputed(res.Typ, res.ID)
			}
		}
	}
	dst.SetEntry(src.Entry().ID())
	for _, b := range src.Blocks() {
		for _, c := range b.Children() {
			dst.Link(b.ID(), c)
		}
	}
}
