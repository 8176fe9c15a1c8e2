package x64

import "math"

// Linker resolves the FuncRef/BlockRef operands that instruction encoders
// leave as provisional zero bytes into real relative offsets, once every
// function and block's address is known (spec.md §4.4). A program is
// encoded twice to reach that point: once against a DummyBuffer purely to
// learn its size, and once for real against a freshly allocated Buffer of
// exactly that size, with a fresh Linker recording addresses as it goes;
// ApplyPatches then rewrites every recorded reference in place.
type Linker struct {
	funcAddrs  map[FuncID]int64
	blockAddrs map[BlockID]int64

	funcPatches  []funcPatch
	blockPatches []blockPatch
}

type funcPatch struct {
	ref   FuncRef
	patch CodeBuffer
}

type blockPatch struct {
	ref   BlockRef
	patch CodeBuffer
}

// NewLinker creates an empty Linker.
func NewLinker() *Linker {
	return &Linker{
		funcAddrs:  make(map[FuncID]int64),
		blockAddrs: make(map[BlockID]int64),
	}
}

// RecordFuncAddr records the address a function was encoded at.
func (l *Linker) RecordFuncAddr(id FuncID, addr int64) { l.funcAddrs[id] = addr }

// RecordBlockAddr records the address a block was encoded at.
func (l *Linker) RecordBlockAddr(id BlockID, addr int64) { l.blockAddrs[id] = addr }

// FuncAddr returns the offset id was encoded at within its program's
// buffer, once a real (non-Dummy) encoding pass has run. A JIT driver adds
// this offset to wherever it mapped that buffer's bytes in memory to get a
// callable address.
func (l *Linker) FuncAddr(id FuncID) (int64, bool) {
	addr, ok := l.funcAddrs[id]
	return addr, ok
}

// RecordFuncRef registers a 4-byte patch site to be filled in with the
// offset to ref's function once ApplyPatches runs.
func (l *Linker) RecordFuncRef(ref FuncRef, patch CodeBuffer) {
	l.funcPatches = append(l.funcPatches, funcPatch{ref: ref, patch: patch})
}

// RecordBlockRef registers a 4-byte patch site to be filled in with the
// offset to ref's block once ApplyPatches runs.
func (l *Linker) RecordBlockRef(ref BlockRef, patch CodeBuffer) {
	l.blockPatches = append(l.blockPatches, blockPatch{ref: ref, patch: patch})
}

// ApplyPatches writes every registered patch site's relative offset, now
// that every address has been recorded. It fails with a LinkError if a
// reference names a function or block that was never encoded, or if the
// resolved offset doesn't fit in the 32-bit field rel32/rel8-family
// instructions actually use.
func (l *Linker) ApplyPatches() error {
	for _, p := range l.funcPatches {
		addr, ok := l.funcAddrs[p.ref.id]
		if !ok {
			return linkErrorf("unresolved function reference %s", p.ref.String())
		}
		if err := applyOffset(p.patch, addr); err != nil {
			return err
		}
	}
	for _, p := range l.blockPatches {
		addr, ok := l.blockAddrs[p.ref.id]
		if !ok {
			return linkErrorf("unresolved block reference %s", p.ref.String())
		}
		if err := applyOffset(p.patch, addr); err != nil {
			return err
		}
	}
	return nil
}

// applyOffset writes target's address relative to the end of the 4-byte
// patch site (every rel32 operand in this instruction set is measured from
// the address of the byte following the patched field, i.e. patch.Base()+4,
// since the patch view always is that trailing 4-byte field).
func applyOffset(patch CodeBuffer, target int64) error {
	offset := target - (patch.Base() + 4)
	if offset > math.MaxInt32 || offset < math.MinInt32 {
		return linkErrorf("relative offset %d from %d to %d does not fit in 32 bits", offset, patch.Base()+4, target)
	}
	u := uint32(int32(offset))
	for i := 0; i < 4; i++ {
		if err := patch.Set(int64(i), byte(u>>(8*i))); err != nil {
			return linkErrorf("writing patch byte %d: %s", i, err.Error())
		}
	}
	return nil
}
