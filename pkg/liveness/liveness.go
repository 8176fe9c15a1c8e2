// Package liveness computes per-block and per-function SSA live ranges
// and the interference graph they feed into register allocation.
//
// The per-block bookkeeping is grounded on ir_info::BlockLiveRangeInfo
// (original_source/src/ir_info/block_live_range_info.cc): a value's range
// is a [start,end] pair where a
// negative start means "live on entry" and an end equal to the block's
// instruction count means "live on exit". BlockLiveRangeInfo.AddValueUse and
// .PropagateBackwardsFromExitSet are carried over verbatim in spirit; the
// difference is that here they're driven by an explicit cross-block
// fixpoint loop instead of a single caller-orchestrated pass, because our
// phi-argument model (PhiArg.Origin per predecessor) requires consulting
// each successor's phis to know what a predecessor actually hands it.
package liveness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arneph/katara/pkg/ir"
	"github.com/samber/lo"
)

// valueRange is a value's [start,end] extent inside one block: start < 0
// means "live on entry", end == len(instrs) means "live on exit".
type valueRange struct {
	start, end int
}

// BlockRange is the live-range info for a single block (the Go analogue of
// ir_info::BlockLiveRangeInfo).
type BlockRange struct {
	block  *ir.Block
	ranges map[ir.Computed]*valueRange
}

func newBlockRange(b *ir.Block) *BlockRange {
	return &BlockRange{block: b, ranges: make(map[ir.Computed]*valueRange)}
}

func (r *BlockRange) exitIdx() int { return len(r.block.Instrs()) }

// HasValue reports whether v has any recorded range in this block.
func (r *BlockRange) HasValue(v ir.Computed) bool {
	_, ok := r.ranges[v]
	return ok
}

// HasDefinition reports whether v is defined (not just used) inside this
// block.
func (r *BlockRange) HasDefinition(v ir.Computed) bool {
	rng, ok := r.ranges[v]
	return ok && rng.start >= 0
}

// AddDefinition records that v is defined at instruction index idx.
func (r *BlockRange) AddDefinition(v ir.Computed, idx int) {
	if rng, ok := r.ranges[v]; ok {
		rng.start = idx
		return
	}
	r.ranges[v] = &valueRange{start: idx, end: idx}
}

// AddUse records that v is used at instruction index idx, extending its
// range to cover idx.
func (r *BlockRange) AddUse(v ir.Computed, idx int) {
	if rng, ok := r.ranges[v]; ok {
		if idx < rng.start {
			rng.start = idx
		}
		if idx > rng.end {
			rng.end = idx
		}
		return
	}
	r.ranges[v] = &valueRange{start: -1, end: idx}
}

// PropagateFromExitSet records that v is live out of this block (the
// successor-propagation step of the backward data-flow pass below).
func (r *BlockRange) PropagateFromExitSet(v ir.Computed) {
	r.AddUse(v, r.exitIdx())
}

// EntrySet returns the values live on entry to this block.
func (r *BlockRange) EntrySet() []ir.Computed {
	return lo.FilterMap(lo.Keys(r.ranges), func(v ir.Computed, _ int) (ir.Computed, bool) {
		return v, r.ranges[v].start < 0
	})
}

// ExitSet returns the values live on exit from this block.
func (r *BlockRange) ExitSet() []ir.Computed {
	exit := r.exitIdx()
	return lo.FilterMap(lo.Keys(r.ranges), func(v ir.Computed, _ int) (ir.Computed, bool) {
		return v, r.ranges[v].end >= exit
	})
}

// LiveAt returns every value whose range covers instruction index idx.
func (r *BlockRange) LiveAt(idx int) []ir.Computed {
	return lo.FilterMap(lo.Keys(r.ranges), func(v ir.Computed, _ int) (ir.Computed, bool) {
		rng := r.ranges[v]
		return v, rng.start <= idx && idx <= rng.end
	})
}

func (r *BlockRange) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s - live range info:\n", r.block.Name())
	values := lo.Keys(r.ranges)
	sort.Slice(values, func(i, j int) bool { return values[i].Less(values[j]) })
	n := len(r.block.Instrs())
	for _, v := range values {
		rng := r.ranges[v]
		if rng.start < 0 {
			sb.WriteByte('<')
		} else {
			sb.WriteByte(' ')
		}
		for i := 0; i < n; i++ {
			switch {
			case i == rng.start || i == rng.end:
				sb.WriteByte('+')
			case rng.start < i && i < rng.end:
				sb.WriteByte('-')
			default:
				sb.WriteByte(' ')
			}
		}
		if rng.end >= n {
			sb.WriteByte('>')
		} else {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, " %s\n", v)
	}
	return sb.String()
}

// FuncRange is the live-range info for every block of a func.
type FuncRange struct {
	f      *ir.Func
	blocks map[ir.BlockID]*BlockRange
}

// Block returns the live-range info for a single block of the func.
func (fr *FuncRange) Block(id ir.BlockID) *BlockRange { return fr.blocks[id] }

// Compute runs the iterative backward data-flow analysis over every block
// of f: local ranges first, then successor exit sets propagated backward
// until no block's state changes.
func Compute(f *ir.Func) *FuncRange {
	fr := &FuncRange{f: f, blocks: make(map[ir.BlockID]*BlockRange, len(f.Blocks()))}
	for _, b := range f.Blocks() {
		fr.blocks[b.ID()] = newBlockRange(b)
	}

	for _, b := range f.Blocks() {
		br := fr.blocks[b.ID()]
		for i, instr := range b.Instrs() {
			if phi, ok := instr.(*ir.Phi); ok {
				for _, res := range phi.Results() {
					br.AddDefinition(res, i)
				}
				continue
			}
			for _, use := range instr.Uses() {
				if c, ok := use.(ir.Computed); ok {
					br.AddUse(c, i)
				}
			}
			for _, res := range instr.Results() {
				br.AddDefinition(res, i)
			}
		}
	}

	for {
		changed := false
		for _, b := range f.Blocks() {
			br := fr.blocks[b.ID()]
			for _, succID := range b.Children() {
				succ := f.Block(succID)
				succBr := fr.blocks[succID]
				for _, phi := range succ.Phis() {
					arg, ok := phi.ArgOf(b.ID())
					if !ok {
						continue
					}
					c, ok := arg.(ir.Computed)
					if !ok {
						continue
					}
					if addLiveOut(br, c) {
						changed = true
					}
				}
				for _, v := range succBr.EntrySet() {
					if addLiveOut(br, v) {
						changed = true
					}
				}
			}
		}
		if !changed {
			break
		}
	}

	return fr
}

// addLiveOut propagates v into br's exit set, reporting whether that
// changed br's state (and thus whether the fixpoint loop must continue;
// entry sets only ever grow). Propagating into an exit index never lowers
// an existing start, so the only way this can change anything is when v
// had no recorded range in br at all yet.
func addLiveOut(br *BlockRange, v ir.Computed) bool {
	hadValue := br.HasValue(v)
	br.PropagateFromExitSet(v)
	return !hadValue
}
