// Package callgraph builds a program's func call graph and partitions it
// into strongly connected components with Tarjan's algorithm, grounded on
// original_source/src/ir/info/func_call_graph.cc.
package callgraph

import (
	"fmt"
	"sort"

	"github.com/arneph/katara/pkg/ir"
	"github.com/samber/lo"
)

// FuncCall is one call site: the *ir.Call instruction, the func containing
// it, and the set of funcs it may invoke. A direct call (Callee is an
// ir.Constant of FuncType) has exactly one callee; an indirect call (Callee
// is ir.Computed) is over-approximated per spec.md §3.8 as every func whose
// address is ever taken as a Constant anywhere in the program.
type FuncCall struct {
	Instr   *ir.Call
	Caller  ir.FuncID
	Callees map[ir.FuncID]bool
}

// Component is one strongly connected component of the call graph: a set of
// mutually (possibly transitively) recursive funcs, and its edges to other
// components. A func with no recursive callers is its own singleton
// Component.
type Component struct {
	index   int
	members map[ir.FuncID]bool
	callers map[*Component]bool
	callees map[*Component]bool
}

// Members returns the func ids in this component, in no particular order.
func (c *Component) Members() []ir.FuncID { return lo.Keys(c.members) }

// HasMember reports whether id belongs to this component.
func (c *Component) HasMember(id ir.FuncID) bool { return c.members[id] }

// Callers returns the components with an edge into this one.
func (c *Component) Callers() []*Component { return lo.Keys(c.callers) }

// Callees returns the components this one has an edge to.
func (c *Component) Callees() []*Component { return lo.Keys(c.callees) }

func (c *Component) String() string {
	return fmt.Sprintf("component(%v)", c.Members())
}

// CallGraph is a program's func call graph: every func, every call site, and
// (lazily, since it's invalidated by every AddFunc/AddFuncCall) the
// partition of funcs into strongly connected Components.
//
// Grounded on original_source/src/ir/info/func_call_graph.h's FuncCallGraph:
// the lazy component_cache_ with invalidation on every mutating call becomes
// a nil-until-built components slice here, rebuilt by Components() on first
// access after a change.
type CallGraph struct {
	funcs map[ir.FuncID]bool
	calls []*FuncCall

	components    []*Component
	componentOf   map[ir.FuncID]*Component
}

// New returns an empty call graph.
func New() *CallGraph {
	return &CallGraph{funcs: make(map[ir.FuncID]bool)}
}

// AddFunc registers a func as a node of the graph, invalidating any cached
// component partition.
func (g *CallGraph) AddFunc(id ir.FuncID) {
	g.funcs[id] = true
	g.invalidate()
}

// AddFuncCall registers a call site, invalidating any cached component
// partition.
func (g *CallGraph) AddFuncCall(call *FuncCall) {
	g.calls = append(g.calls, call)
	g.invalidate()
}

func (g *CallGraph) invalidate() {
	g.components = nil
	g.componentOf = nil
}

// Funcs returns every func id registered with the graph.
func (g *CallGraph) Funcs() []ir.FuncID { return lo.Keys(g.funcs) }

// FuncCallsWithCaller returns every call site whose caller is id.
func (g *CallGraph) FuncCallsWithCaller(id ir.FuncID) []*FuncCall {
	return lo.Filter(g.calls, func(c *FuncCall, _ int) bool { return c.Caller == id })
}

// FuncCallsWithCallee returns every call site that may invoke id.
func (g *CallGraph) FuncCallsWithCallee(id ir.FuncID) []*FuncCall {
	return lo.Filter(g.calls, func(c *FuncCall, _ int) bool { return c.Callees[id] })
}

// FuncCallAtInstr returns the FuncCall wrapping instr, or nil if instr was
// never registered via AddFuncCall.
func (g *CallGraph) FuncCallAtInstr(instr *ir.Call) *FuncCall {
	for _, c := range g.calls {
		if c.Instr == instr {
			return c
		}
	}
	return nil
}

// CalleesOfFunc returns the union of the possible callees of every call
// site in id, direct and indirect alike, deduplicated.
func (g *CallGraph) CalleesOfFunc(id ir.FuncID) []ir.FuncID {
	callees := make(map[ir.FuncID]bool)
	for _, c := range g.FuncCallsWithCaller(id) {
		for callee := range c.Callees {
			callees[callee] = true
		}
	}
	return lo.Keys(callees)
}

// CallersOfFunc returns every func with a call site that may invoke id.
func (g *CallGraph) CallersOfFunc(id ir.FuncID) []ir.FuncID {
	callers := make(map[ir.FuncID]bool)
	for _, c := range g.FuncCallsWithCallee(id) {
		callers[c.Caller] = true
	}
	return lo.Keys(callers)
}

// ComponentOfFunc returns the strongly connected component containing id,
// building the partition first if it's stale. Returns nil if id was never
// registered with AddFunc.
func (g *CallGraph) ComponentOfFunc(id ir.FuncID) *Component {
	g.ensureComponents()
	return g.componentOf[id]
}

// Components returns every strongly connected component of the graph,
// building the partition first if it's stale.
func (g *CallGraph) Components() []*Component {
	g.ensureComponents()
	out := make([]*Component, len(g.components))
	copy(out, g.components)
	return out
}

func (g *CallGraph) ensureComponents() {
	if g.components != nil {
		return
	}
	g.generateComponents()
}

// generateComponents runs Tarjan's SCC algorithm over every func, then links
// caller/callee edges between the resulting components.
//
// Grounded on func_call_graph.cc's GenerateComponents/GenerateComponent: the
// per-func on_stack/index/low_link bookkeeping becomes the tarjan struct
// below, with the same index-assign/push/recurse-or-min/pop-on-root shape.
func (g *CallGraph) generateComponents() {
	st := &tarjan{
		g:       g,
		index:   make(map[ir.FuncID]int),
		lowlink: make(map[ir.FuncID]int),
		onStack: make(map[ir.FuncID]bool),
	}
	funcs := g.Funcs()
	sort.Slice(funcs, func(i, j int) bool { return funcs[i] < funcs[j] })
	for _, id := range funcs {
		if _, visited := st.index[id]; !visited {
			st.strongConnect(id)
		}
	}

	componentOf := make(map[ir.FuncID]*Component, len(funcs))
	for _, c := range st.components {
		for member := range c.members {
			componentOf[member] = c
		}
	}
	for _, call := range g.calls {
		from := componentOf[call.Caller]
		if from == nil {
			continue
		}
		for callee := range call.Callees {
			to := componentOf[callee]
			if to == nil || to == from {
				continue
			}
			from.callees[to] = true
			to.callers[from] = true
		}
	}

	g.components = st.components
	g.componentOf = componentOf
}

// tarjan is the mutable state of one run of Tarjan's strongly-connected-
// components algorithm, mirroring func_call_graph.cc's SCCAlgorithmState.
type tarjan struct {
	g *CallGraph

	nextIndex int
	index     map[ir.FuncID]int
	lowlink   map[ir.FuncID]int
	onStack   map[ir.FuncID]bool
	stack     []ir.FuncID

	components []*Component
}

func (st *tarjan) strongConnect(v ir.FuncID) {
	st.index[v] = st.nextIndex
	st.lowlink[v] = st.nextIndex
	st.nextIndex++
	st.stack = append(st.stack, v)
	st.onStack[v] = true

	callees := st.g.CalleesOfFunc(v)
	sort.Slice(callees, func(i, j int) bool { return callees[i] < callees[j] })
	for _, w := range callees {
		if _, visited := st.index[w]; !visited {
			st.strongConnect(w)
			if st.lowlink[w] < st.lowlink[v] {
				st.lowlink[v] = st.lowlink[w]
			}
		} else if st.onStack[w] {
			if st.index[w] < st.lowlink[v] {
				st.lowlink[v] = st.index[w]
			}
		}
	}

	if st.lowlink[v] != st.index[v] {
		return
	}
	members := make(map[ir.FuncID]bool)
	for {
		n := len(st.stack) - 1
		w := st.stack[n]
		st.stack = st.stack[:n]
		st.onStack[w] = false
		members[w] = true
		if w == v {
			break
		}
	}
	st.components = append(st.components, &Component{
		index:   len(st.components),
		members: members,
		callers: make(map[*Component]bool),
		callees: make(map[*Component]bool),
	})
}

// ComponentsReachableFrom returns every component reachable from root by
// following callee edges, including root itself.
func (g *CallGraph) ComponentsReachableFrom(root *Component) []*Component {
	seen := map[*Component]bool{root: true}
	frontier := []*Component{root}
	for len(frontier) > 0 {
		var next []*Component
		for _, c := range frontier {
			for callee := range c.callees {
				if !seen[callee] {
					seen[callee] = true
					next = append(next, callee)
				}
			}
		}
		frontier = next
	}
	return lo.Keys(seen)
}

// FuncsReachableFrom returns every func belonging to a component reachable
// from root, including root's own members.
func (g *CallGraph) FuncsReachableFrom(root *Component) []ir.FuncID {
	var out []ir.FuncID
	for _, c := range g.ComponentsReachableFrom(root) {
		out = append(out, c.Members()...)
	}
	return out
}

// PruneUnreachable removes every func of prog that the entry func's
// component cannot reach, grounded on
// func_call_graph_optimizer.cc's RemoveUnusedFunctions: build the call
// graph, find the entry func's component, take FuncsReachableFrom it, and
// remove everything outside that set. Returns an error if prog has no
// entry func designated.
func PruneUnreachable(prog *ir.Program) error {
	entry := prog.EntryFunc()
	if entry == nil {
		return fmt.Errorf("callgraph: cannot prune unreachable funcs: program has no entry func")
	}

	g := Build(prog)
	comp := g.ComponentOfFunc(entry.ID())
	if comp == nil {
		return fmt.Errorf("callgraph: entry func %s is not registered in its own call graph", entry.Name())
	}
	keep := make(map[ir.FuncID]bool, len(g.funcs))
	for _, id := range g.FuncsReachableFrom(comp) {
		keep[id] = true
	}

	for _, f := range prog.Funcs() {
		if !keep[f.ID()] {
			prog.RemoveFunc(f.ID())
		}
	}
	return nil
}

// Build scans prog for Call instructions and returns the resulting call
// graph, one node per func plus one FuncCall per call site. An indirect call
// (Callee is ir.Computed, not a Constant func reference) is over-
// approximated per spec.md §3.8 as capable of reaching every func whose
// address is taken as a Constant anywhere in the program.
func Build(prog *ir.Program) *CallGraph {
	g := New()
	for _, f := range prog.Funcs() {
		g.AddFunc(f.ID())
	}

	addressTaken := make(map[ir.FuncID]bool)
	for _, f := range prog.Funcs() {
		for _, b := range f.Blocks() {
			for _, instr := range b.Instrs() {
				for _, use := range instr.Uses() {
					if c, ok := use.(ir.Constant); ok && c.Typ == ir.FuncType {
						addressTaken[ir.FuncID(c.Pattern)] = true
					}
				}
			}
		}
	}

	for _, f := range prog.Funcs() {
		for _, b := range f.Blocks() {
			for _, instr := range b.Instrs() {
				call, ok := instr.(*ir.Call)
				if !ok {
					continue
				}
				callees := make(map[ir.FuncID]bool)
				if c, ok := call.Callee.(ir.Constant); ok && c.Typ == ir.FuncType {
					callees[ir.FuncID(c.Pattern)] = true
				} else {
					for id := range addressTaken {
						callees[id] = true
					}
				}
				g.AddFuncCall(&FuncCall{Instr: call, Caller: f.ID(), Callees: callees})
			}
		}
	}
	return g
}

// Node is one entry of a ToGraph export, mirroring common::graph::Node: a
// call-graph vertex tagged with the component it belongs to, so a renderer
// can cluster mutually recursive funcs together.
type Node struct {
	Number   ir.FuncID
	Title    string
	Subgraph int
}

// Edge is a directed caller-to-callee edge of a ToGraph export.
type Edge struct {
	Source, Target ir.FuncID
}

// Graph is the renderer-agnostic node/edge view of a CallGraph, mirroring
// common::graph::Graph; pkg/callgraph supplies this data, not a VCG/dot
// renderer (spec.md's Non-goals exclude graph pretty-printing as a feature
// of the core).
type Graph struct {
	Nodes     []Node
	Edges     []Edge
	Directed  bool
}

// ToGraph renders g as a renderer-agnostic node/edge graph, naming each node
// "@N" or "@N_name" (when prog has a name for it) and tagging it with its
// component's index as a subgraph number, so a dot/VCG exporter can draw one
// cluster per strongly connected component.
func (g *CallGraph) ToGraph(prog *ir.Program) *Graph {
	out := &Graph{Directed: true}
	for _, id := range g.Funcs() {
		title := fmt.Sprintf("@%d", id)
		if f := prog.Func(id); f != nil && f.Name() != "" {
			title = fmt.Sprintf("@%d_%s", id, f.Name())
		}
		comp := g.ComponentOfFunc(id)
		subgraph := 0
		if comp != nil {
			subgraph = comp.index
		}
		out.Nodes = append(out.Nodes, Node{Number: id, Title: title, Subgraph: subgraph})
	}
	for _, call := range g.calls {
		for callee := range call.Callees {
			out.Edges = append(out.Edges, Edge{Source: call.Caller, Target: callee})
		}
	}
	return out
}
