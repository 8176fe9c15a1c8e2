package liveness

import (
	"github.com/arneph/katara/pkg/ir"
	"github.com/samber/lo"
)

// InterferenceGraph is an undirected graph on Computed values: an edge means
// "simultaneously live somewhere in the same function" (spec.md §3.7). Self
// edges are never recorded. Move-related pairs (the two ends of a Mov
// instruction) are tracked separately so the register allocator's Briggs
// coalescing pass (spec.md §4.9 step 5) can find coalescing candidates
// without rescanning the IR.
type InterferenceGraph struct {
	edges       map[ir.Computed]map[ir.Computed]bool
	moveRelated map[ir.Computed]map[ir.Computed]bool
}

// NewInterferenceGraph returns an empty graph.
func NewInterferenceGraph() *InterferenceGraph {
	return &InterferenceGraph{
		edges:       make(map[ir.Computed]map[ir.Computed]bool),
		moveRelated: make(map[ir.Computed]map[ir.Computed]bool),
	}
}

// AddNode ensures v has an entry in the graph even if it ends up with no
// edges (an otherwise-unconstrained value still needs a color).
func (g *InterferenceGraph) AddNode(v ir.Computed) {
	if _, ok := g.edges[v]; !ok {
		g.edges[v] = make(map[ir.Computed]bool)
	}
}

// AddEdge records that a and b interfere. A self-edge (a == b) is a no-op
// per spec.md §3.7.
func (g *InterferenceGraph) AddEdge(a, b ir.Computed) {
	if a.Equal(b) {
		return
	}
	g.AddNode(a)
	g.AddNode(b)
	g.edges[a][b] = true
	g.edges[b][a] = true
}

// AddMoveEdge marks a and b as move-related (candidates for coalescing).
func (g *InterferenceGraph) AddMoveEdge(a, b ir.Computed) {
	if a.Equal(b) {
		return
	}
	if _, ok := g.moveRelated[a]; !ok {
		g.moveRelated[a] = make(map[ir.Computed]bool)
	}
	if _, ok := g.moveRelated[b]; !ok {
		g.moveRelated[b] = make(map[ir.Computed]bool)
	}
	g.moveRelated[a][b] = true
	g.moveRelated[b][a] = true
}

// Interferes reports whether a and b share an edge.
func (g *InterferenceGraph) Interferes(a, b ir.Computed) bool {
	return g.edges[a][b]
}

// IsMoveRelated reports whether a and b are linked by a Mov instruction
// somewhere and do not interfere (a prerequisite for coalescing them).
func (g *InterferenceGraph) IsMoveRelated(a, b ir.Computed) bool {
	return g.moveRelated[a][b] && !g.Interferes(a, b)
}

// MoveNeighbors returns the values move-related to v, regardless of whether
// they also interfere (callers should consult IsMoveRelated for that).
func (g *InterferenceGraph) MoveNeighbors(v ir.Computed) []ir.Computed {
	return lo.Keys(g.moveRelated[v])
}

// Neighbors returns v's interference neighbors.
func (g *InterferenceGraph) Neighbors(v ir.Computed) []ir.Computed {
	return lo.Keys(g.edges[v])
}

// Degree returns the number of distinct values v interferes with.
func (g *InterferenceGraph) Degree(v ir.Computed) int {
	return len(g.edges[v])
}

// Nodes returns every value with at least one recorded range in the graph.
func (g *InterferenceGraph) Nodes() []ir.Computed {
	return lo.Keys(g.edges)
}

// BuildInterferenceGraph derives the interference graph of f from its
// live-range info (spec.md §4.8): for every instruction index in every
// block, every pair of simultaneously-live values gets an edge, and every
// Mov's source/destination pair is flagged move-related.
func BuildInterferenceGraph(f *ir.Func, fr *FuncRange) *InterferenceGraph {
	g := NewInterferenceGraph()
	for _, b := range f.Blocks() {
		br := fr.Block(b.ID())
		n := len(b.Instrs())
		for i := -1; i <= n; i++ {
			live := br.LiveAt(i)
			for x := 0; x < len(live); x++ {
				g.AddNode(live[x])
				for y := x + 1; y < len(live); y++ {
					g.AddEdge(live[x], live[y])
				}
			}
		}
		for _, instr := range b.Instrs() {
			mov, ok := instr.(*ir.Mov)
			if !ok {
				continue
			}
			if src, ok := mov.Origin.(ir.Computed); ok {
				g.AddMoveEdge(mov.Result, src)
			}
		}
	}
	return g
}
