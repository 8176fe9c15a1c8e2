// Package regalloc colors an ir.Func's interference graph with a fixed
// palette of physical-register colors using Chaitin-style simplify/spill/
// select, with optional Briggs coalescing.
//
// One allocator runs per func, driven by a previously-built interference
// graph, with Defs/Uses/spill/reload naming for the Go identifiers, adapted
// from a VReg-indirect, ISA-agnostic allocation model to direct coloring of
// pkg/ir.Computed nodes, since this allocator targets one fixed ISA rather
// than abstracting over several.
package regalloc

import (
	"math"

	"github.com/arneph/katara/pkg/ir"
	"github.com/arneph/katara/pkg/liveness"
	"github.com/samber/lo"
)

// PhysReg is the name of a physical register color (e.g. "rbx"). The
// allocator treats it as an opaque label; pkg/x64 maps these to concrete
// encodable registers.
type PhysReg string

// Allocation is the result of coloring a func: every Computed value maps to
// either a physical register or a spill slot, never both (spec.md §4.9's
// "map Computed → assigned physical register or stack offset").
type Allocation struct {
	Colors map[ir.Computed]PhysReg
	Spills map[ir.Computed]int
}

// Allocator colors one func's interference graph at a time. Sub-register
// aliasing (e.g. a write to eax zero-extending into rax) is not modeled
// anywhere in this package or in pkg/liveness: every PhysReg is treated as
// an indivisible unit, per the Open Question decision recorded in
// DESIGN.md. Callers that need that behavior must pre-color or reserve
// whole registers accordingly.
type Allocator struct {
	palette    []PhysReg
	precolored map[ir.Computed]PhysReg
}

// NewAllocator returns an allocator using the given color palette, with
// some values pre-colored (function arguments, call results, operands
// forced by the ISA such as the implicit RAX of Div/Mul, per spec.md §4.8).
func NewAllocator(palette []PhysReg, precolored map[ir.Computed]PhysReg) *Allocator {
	pc := make(map[ir.Computed]PhysReg, len(precolored))
	for k, v := range precolored {
		pc[k] = v
	}
	return &Allocator{palette: append([]PhysReg(nil), palette...), precolored: pc}
}

// Allocate runs Build/Simplify/Coalesce/Spill/Select once over f (spec.md
// §4.9). A node that Select can't color becomes an actual spill: it is
// given a stack slot instead of a register and dropped from the set of
// nodes any other node's color must avoid, since a memory-resident value
// never occupies a register and so never forces a conflict.
//
// spec.md §4.9 step 4 additionally describes splitting a spilled value's
// live range by rewriting the IR with per-use reloads and restarting from
// Build, which can recover colorability for values spilled only because of
// a few far-apart hot uses. Doing that would require a Load/Store
// instruction kind the IR's closed instruction set (spec.md §3.3) doesn't
// have; an actual spill here is permanent for the whole value instead of
// split into per-use windows. This is documented as an Open Question
// decision in DESIGN.md: it's a less aggressive but still sound allocator
// — the coloring invariant (spec.md §8) holds either way, since a spilled
// node is explicitly exempted from it.
func (a *Allocator) Allocate(f *ir.Func) (*Allocation, error) {
	if len(a.palette) == 0 {
		return nil, allocErrorf("empty register palette")
	}

	fr := liveness.Compute(f)
	graph := liveness.BuildInterferenceGraph(f, fr)
	for v := range a.precolored {
		graph.AddNode(v)
	}
	useCounts := countUses(f)

	return a.tryColor(graph, useCounts), nil
}

// tryColor runs one Build/Simplify/Coalesce/Spill/Select pass, assigning
// every node either a palette color or a stack slot.
func (a *Allocator) tryColor(graph *liveness.InterferenceGraph, useCounts map[ir.Computed]int) *Allocation {
	k := len(a.palette)
	cg := buildColoringGraph(graph)

	removed := make(map[ir.Computed]bool, len(cg.nodes))
	alias := make(map[ir.Computed]ir.Computed) // coalesced-away node -> surviving representative
	for v := range a.precolored {
		removed[v] = true // precolored nodes are fixed; never pushed, never simplified.
	}
	nonPrecolored := lo.Filter(cg.nodes, func(v ir.Computed, _ int) bool {
		_, pre := a.precolored[v]
		return !pre
	})

	var stack []ir.Computed
	remaining := len(nonPrecolored)
	for remaining > 0 {
		progressed := false

		for _, v := range nonPrecolored {
			if removed[v] || isAliased(alias, v) {
				continue
			}
			if cg.degree(v, removed) < k {
				stack = append(stack, v)
				removed[v] = true
				remaining--
				progressed = true
			}
		}
		if progressed {
			continue
		}

		if from, into, ok := cg.findCoalesceCandidate(graph, removed, alias, a.precolored, k); ok {
			cg.merge(into, from)
			alias[from] = into
			remaining--
			progressed = true
			continue
		}

		// Spill: pick the live node with the highest degree/use-frequency
		// ratio (spec.md §4.9 step 3; the heuristic decided in DESIGN.md).
		var best ir.Computed
		bestCost := -1.0
		found := false
		for _, v := range nonPrecolored {
			if removed[v] || isAliased(alias, v) {
				continue
			}
			cost := spillCost(cg.degree(v, removed), useCounts[v])
			if !found || cost > bestCost {
				best, bestCost, found = v, cost, true
			}
		}
		if !found {
			break
		}
		stack = append(stack, best)
		removed[best] = true
		remaining--
	}

	colors := make(map[ir.Computed]PhysReg, len(cg.nodes))
	for v, c := range a.precolored {
		colors[v] = c
	}
	spills := make(map[ir.Computed]int)
	for i := len(stack) - 1; i >= 0; i-- {
		v := stack[i]
		used := make(map[PhysReg]bool)
		for nb := range cg.adj[v] {
			if c, ok := colors[resolve(alias, nb)]; ok {
				used[c] = true
			}
		}
		assigned := false
		for _, c := range a.palette {
			if !used[c] {
				colors[v] = c
				assigned = true
				break
			}
		}
		if !assigned {
			spills[v] = len(spills)
		}
	}
	for aliasedNode, rep := range alias {
		if c, ok := colors[rep]; ok {
			colors[aliasedNode] = c
		} else if slot, ok := spills[rep]; ok {
			spills[aliasedNode] = slot
		}
	}

	return &Allocation{Colors: colors, Spills: spills}
}

// spillCost is the heuristic of spec.md §4.9 step 3: nodes with many
// conflicts and few uses are the cheapest to move to memory.
func spillCost(degree, useCount int) float64 {
	if useCount == 0 {
		return math.Inf(1)
	}
	return float64(degree) / float64(useCount)
}

func isAliased(alias map[ir.Computed]ir.Computed, v ir.Computed) bool {
	_, ok := alias[v]
	return ok
}

func resolve(alias map[ir.Computed]ir.Computed, v ir.Computed) ir.Computed {
	for {
		r, ok := alias[v]
		if !ok {
			return v
		}
		v = r
	}
}

// countUses tallies how many times each Computed value is used anywhere in
// f, feeding the spill-cost heuristic.
func countUses(f *ir.Func) map[ir.Computed]int {
	counts := make(map[ir.Computed]int)
	for _, b := range f.Blocks() {
		for _, instr := range b.Instrs() {
			for _, use := range instr.Uses() {
				if c, ok := use.(ir.Computed); ok {
					counts[c]++
				}
			}
		}
	}
	return counts
}

// coloringGraph is a mutable adjacency-set copy of an interference graph,
// local to one allocation attempt, so Coalesce can merge nodes without
// touching the liveness package's (otherwise immutable) InterferenceGraph.
type coloringGraph struct {
	adj   map[ir.Computed]map[ir.Computed]bool
	nodes []ir.Computed
}

func buildColoringGraph(g *liveness.InterferenceGraph) *coloringGraph {
	nodes := g.Nodes()
	adj := make(map[ir.Computed]map[ir.Computed]bool, len(nodes))
	for _, v := range nodes {
		adj[v] = make(map[ir.Computed]bool)
	}
	for _, v := range nodes {
		for _, n := range g.Neighbors(v) {
			adj[v][n] = true
			adj[n][v] = true
		}
	}
	return &coloringGraph{adj: adj, nodes: nodes}
}

func (cg *coloringGraph) degree(v ir.Computed, removed map[ir.Computed]bool) int {
	n := 0
	for nb := range cg.adj[v] {
		if !removed[nb] {
			n++
		}
	}
	return n
}

// merge folds from's adjacency into into's (Briggs coalescing) and removes
// from's own entry from cg.adj; callers track the coalesced identity via
// the alias map.
func (cg *coloringGraph) merge(into, from ir.Computed) {
	for nb := range cg.adj[from] {
		if nb == into {
			continue
		}
		delete(cg.adj[nb], from)
		cg.adj[nb][into] = true
		cg.adj[into][nb] = true
	}
	delete(cg.adj, from)
}

// findCoalesceCandidate looks for one move-related pair whose combined
// degree stays under k (the conservative Briggs test of spec.md §4.9 step
// 5), preferring to fold the higher-id node into the lower-id one so the
// choice is deterministic.
func (cg *coloringGraph) findCoalesceCandidate(
	g *liveness.InterferenceGraph,
	removed map[ir.Computed]bool,
	alias map[ir.Computed]ir.Computed,
	precolored map[ir.Computed]PhysReg,
	k int,
) (from, into ir.Computed, ok bool) {
	for _, v := range cg.nodes {
		if removed[v] || isAliased(alias, v) {
			continue
		}
		if _, pre := precolored[v]; pre {
			continue
		}
		for _, w := range g.MoveNeighbors(v) {
			if removed[w] || isAliased(alias, w) || v.Equal(w) {
				continue
			}
			if _, pre := precolored[w]; pre {
				continue
			}
			if g.Interferes(v, w) {
				continue
			}
			combined := make(map[ir.Computed]bool)
			for nb := range cg.adj[v] {
				if !removed[nb] {
					combined[nb] = true
				}
			}
			for nb := range cg.adj[w] {
				if !removed[nb] {
					combined[nb] = true
				}
			}
			delete(combined, v)
			delete(combined, w)
			if len(combined) < k {
				if w.Less(v) {
					return v, w, true
				}
				return w, v, true
			}
		}
	}
	return ir.Computed{}, ir.Computed{}, false
}
