package suggest

import (
	"container/heap"
	"iter"
	"math"
)

// Node is one rune position in the PrefixIndex. Parents own their children
// exclusively; there are no back references.
type Node struct {
	children map[rune]*Node
	terminal bool
	id       TermID
	term     string
	score    float64
	// best is the highest score of any term at or below this node.
	best float64
}

func newNode() *Node {
	return &Node{best: math.Inf(-1)}
}

// Best returns the highest score reachable in the subtree rooted at n.
func (n *Node) Best() float64 {
	return n.best
}

func (n *Node) localBest() float64 {
	best := math.Inf(-1)
	if n.terminal {
		best = n.score
	}
	for _, c := range n.children {
		if c.best > best {
			best = c.best
		}
	}
	return best
}

// PrefixIndex maps every prefix of every stored term to the subtree of terms below it.
// It is not safe for concurrent use; Completer serializes access.
type PrefixIndex struct {
	root  *Node
	nodes int
	terms int
}

// NewPrefixIndex returns an index holding only the root, which stands for the empty prefix.
func NewPrefixIndex() *PrefixIndex {
	return &PrefixIndex{root: newNode(), nodes: 1}
}

// Insert adds term under id, or updates the score if term is already terminal.
func (ix *PrefixIndex) Insert(term string, id TermID, score float64) {
	path := make([]*Node, 1, len(term)+1)
	path[0] = ix.root
	n := ix.root
	for _, r := range term {
		child, ok := n.children[r]
		if !ok {
			if n.children == nil {
				n.children = make(map[rune]*Node)
			}
			child = newNode()
			n.children[r] = child
			ix.nodes++
		}
		n = child
		path = append(path, n)
	}

	lowered := n.terminal && score < n.score
	if !n.terminal {
		ix.terms++
	}
	n.terminal = true
	n.id = id
	n.term = term
	n.score = score

	if lowered {
		recomputeBest(path)
		return
	}
	// best never decreases walking toward the root, so stop at the first
	// ancestor that already dominates.
	for i := len(path) - 1; i >= 0; i-- {
		if path[i].best >= score {
			break
		}
		path[i].best = score
	}
}

// Remove unmarks the terminal for term if it carries id, prunes every node
// left childless and non-terminal, and refreshes cached best scores.
// It reports whether anything was removed.
func (ix *PrefixIndex) Remove(id TermID, term string) bool {
	keys := []rune(term)
	path := make([]*Node, 1, len(keys)+1)
	path[0] = ix.root
	n := ix.root
	for _, r := range keys {
		child, ok := n.children[r]
		if !ok {
			return false
		}
		n = child
		path = append(path, n)
	}
	if !n.terminal || n.id != id {
		return false
	}

	n.terminal = false
	n.id = 0
	n.term = ""
	n.score = 0
	ix.terms--

	last := len(path) - 1
	for last > 0 && !path[last].terminal && len(path[last].children) == 0 {
		parent := path[last-1]
		delete(parent.children, keys[last-1])
		if len(parent.children) == 0 {
			parent.children = nil
		}
		ix.nodes--
		last--
	}
	recomputeBest(path[:last+1])
	return true
}

// recomputeBest refreshes best from the deepest node of path toward the root,
// stopping once a node's value is unchanged.
func recomputeBest(path []*Node) {
	for i := len(path) - 1; i >= 0; i-- {
		nb := path[i].localBest()
		if nb == path[i].best {
			return
		}
		path[i].best = nb
	}
}

// Subtree resolves prefix to its node. A prefix no term extends is a normal
// miss and reports false. The empty prefix resolves to the root.
func (ix *PrefixIndex) Subtree(prefix string) (*Node, bool) {
	n := ix.root
	for _, r := range prefix {
		child, ok := n.children[r]
		if !ok {
			return nil, false
		}
		n = child
	}
	return n, true
}

// Collect lazily yields the term ids under node in rank order: descending
// score, then ascending text.
//
// Traversal is best-first over a max-heap keyed by each subtree's cached best
// score, so only the branches that can still hold the next result are
// expanded. At equal keys subtrees expand before terminals are emitted, which
// guarantees every tied term is queued before the first of them is yielded.
// limitHint only sizes the frontier; stop ranging to stop the traversal.
func (ix *PrefixIndex) Collect(node *Node, limitHint int) iter.Seq[TermID] {
	return func(yield func(TermID) bool) {
		if node == nil || math.IsInf(node.best, -1) {
			return
		}
		if limitHint < 0 {
			limitHint = 0
		}
		q := make(frontier, 0, limitHint+16)
		heap.Push(&q, frontierItem{node: node, key: node.best})
		for q.Len() > 0 {
			it := heap.Pop(&q).(frontierItem)
			if it.emit {
				if !yield(it.node.id) {
					return
				}
				continue
			}
			n := it.node
			if n.terminal {
				heap.Push(&q, frontierItem{node: n, key: n.score, emit: true})
			}
			for _, c := range n.children {
				heap.Push(&q, frontierItem{node: c, key: c.best})
			}
		}
	}
}

// Size returns the number of nodes, root included.
func (ix *PrefixIndex) Size() int {
	return ix.nodes
}

// Len returns the number of terminal nodes.
func (ix *PrefixIndex) Len() int {
	return ix.terms
}

// Reset drops every node except a fresh root.
func (ix *PrefixIndex) Reset() {
	ix.root = newNode()
	ix.nodes = 1
	ix.terms = 0
}

type frontierItem struct {
	node *Node
	key  float64
	// emit marks a terminal ready to be yielded rather than a subtree to expand.
	emit bool
}

type frontier []frontierItem

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	a, b := f[i], f[j]
	if a.key != b.key {
		return a.key > b.key
	}
	if a.emit != b.emit {
		return !a.emit
	}
	if a.emit {
		return a.node.term < b.node.term
	}
	return false
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(frontierItem)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	it := old[n-1]
	old[n-1] = frontierItem{}
	*f = old[:n-1]
	return it
}
