// Package domtree computes dominator trees for ir.Func CFGs using the
// Lengauer-Tarjan algorithm.
//
// The result is cached on the ir.Func itself (ir.Func.SetDomTree /
// ir.Func.IDom / ir.Func.DomChildren), the same way a builder caches its
// own (simpler) dominator computation alongside CFG state, and is
// invalidated by any block or edge mutation (ir.Func.invalidateDomTree,
// called from AllocateBlock/Link/Unlink/RemoveBlock).
package domtree

import (
	"fmt"

	"github.com/arneph/katara/pkg/ir"
)

// DomError reports that a dominator tree was requested for a func with no
// entry block (spec.md §4.6, §7).
type DomError struct{ Msg string }

func (e *DomError) Error() string { return "domtree: " + e.Msg }

// Tree is the computed dominator tree of a single ir.Func.
type Tree struct {
	entry    ir.BlockID
	idom     map[ir.BlockID]ir.BlockID
	children map[ir.BlockID][]ir.BlockID
	order    []ir.BlockID // DFS preorder, entry first
}

// IDom returns the immediate dominator of b, and whether b is defined in the
// tree (the entry block has no idom and returns false).
func (t *Tree) IDom(b ir.BlockID) (ir.BlockID, bool) {
	if b == t.entry {
		return 0, false
	}
	p, ok := t.idom[b]
	return p, ok
}

// Children returns the dominator-tree children of b.
func (t *Tree) Children(b ir.BlockID) []ir.BlockID { return t.children[b] }

// Dominates reports whether a dominates b (every path from entry to b passes
// through a), including a dominating itself.
func (t *Tree) Dominates(a, b ir.BlockID) bool {
	for cur := b; ; {
		if cur == a {
			return true
		}
		p, ok := t.IDom(cur)
		if !ok {
			return cur == a
		}
		cur = p
	}
}

// Build computes the dominator tree of f using Lengauer-Tarjan and caches it
// on f. It fails with DomError if f has no entry block.
func Build(f *ir.Func) (*Tree, error) {
	entry := f.Entry()
	if entry == nil {
		return nil, &DomError{Msg: fmt.Sprintf("func %s has no entry block", f.Name())}
	}

	// Step 1: DFS numbering from entry (spec.md §4.6 step 1).
	order, numOf, parent := iterativeDFS(f, entry.ID())

	n := len(order)
	semi := make([]int, n)     // semi[i] = DFS number of sdom(order[i])
	ancestor := make([]int, n) // union-find "forest" parent, -1 if none
	label := make([]int, n)    // Eval/Link path-compression label
	idomNum := make([]int, n)
	bucket := make(map[int][]int, n) // bucket[sdom_num] = [w_num...]
	pred := make([][]int, n)
	for i := range semi {
		semi[i] = i
		ancestor[i] = -1
		label[i] = i
	}
	for _, bid := range order {
		b := f.Block(bid)
		bi := numOf[bid]
		for _, pid := range b.Parents() {
			if pi, ok := numOf[pid]; ok {
				pred[bi] = append(pred[bi], pi)
			}
		}
	}

	var eval func(v int) int
	eval = func(v int) int {
		if ancestor[v] == -1 {
			return v
		}
		compress(v, ancestor, label, semi)
		return label[v]
	}

	link := func(v, w int) { ancestor[w] = v }

	// Step 2: compute semidominators in decreasing DFS order (spec.md §4.6
	// step 2), bucketing each w under its semidominator.
	for i := n - 1; i >= 1; i-- {
		w := i
		for _, v := range pred[w] {
			u := eval(v)
			if semi[u] < semi[w] {
				semi[w] = semi[u]
			}
		}
		bucket[semi[w]] = append(bucket[semi[w]], w)
		link(parent[w], w)

		// Step 3: process w's parent's bucket now that w is linked
		// (spec.md §4.6 step 3).
		p := parent[w]
		for _, v := range bucket[p] {
			u := eval(v)
			if semi[u] < semi[v] {
				idomNum[v] = u
			} else {
				idomNum[v] = p
			}
		}
		delete(bucket, p)
	}

	// Step 4: finalize idom for vertices where idom != sdom (spec.md §4.6
	// step 4).
	for i := 1; i < n; i++ {
		if idomNum[i] != semi[i] {
			idomNum[i] = idomNum[idomNum[i]]
		}
	}

	idom := make(map[ir.BlockID]ir.BlockID, n-1)
	children := make(map[ir.BlockID][]ir.BlockID, n)
	for i := 1; i < n; i++ {
		child := order[i]
		par := order[idomNum[i]]
		idom[child] = par
		children[par] = append(children[par], child)
	}

	f.SetDomTree(idom, children)
	return &Tree{entry: entry.ID(), idom: idom, children: children, order: order}, nil
}

// iterativeDFS performs a preorder DFS from entry, returning the order of
// first-visit, a block-id -> DFS-number map, and a DFS-number -> parent-DFS-
// number map (the DFS spanning tree Lengauer-Tarjan builds its sdom/idom
// computation on top of).
func iterativeDFS(f *ir.Func, entry ir.BlockID) ([]ir.BlockID, map[ir.BlockID]int, map[int]int) {
	var order []ir.BlockID
	numOf := map[ir.BlockID]int{}
	parent := map[int]int{}

	type frame struct {
		id       ir.BlockID
		childIdx int
	}
	numOf[entry] = 0
	order = append(order, entry)
	stack := []frame{{id: entry}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		b := f.Block(top.id)
		if b == nil || top.childIdx >= len(b.Children()) {
			stack = stack[:len(stack)-1]
			continue
		}
		cid := b.Children()[top.childIdx]
		top.childIdx++
		if _, seen := numOf[cid]; seen {
			continue
		}
		numOf[cid] = len(order)
		parent[len(order)] = numOf[top.id]
		order = append(order, cid)
		stack = append(stack, frame{id: cid})
	}
	return order, numOf, parent
}

// compress applies Lengauer-Tarjan's path-compression Eval helper iteratively
// along the ancestor chain rooted at v's nearest ancestor with a root
// ancestor, updating label[v] to the vertex with minimal semi() on that
// path.
func compress(v int, ancestor, label, semi []int) {
	// Collect the chain of ancestors up to (but not including) a root.
	var chain []int
	for a := v; ancestor[a] != -1 && ancestor[ancestor[a]] != -1; a = ancestor[a] {
		chain = append(chain, a)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		a := chain[i]
		if semi[label[ancestor[a]]] < semi[label[a]] {
			label[a] = label[ancestor[a]]
		}
		ancestor[a] = ancestor[ancestor[a]]
	}
}
