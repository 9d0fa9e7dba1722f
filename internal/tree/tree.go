// Package tree implements the interaction tree: a rooted record of observed
// action sequences where each node aggregates frequency and success counts
// for "this action occurred at this point along this context path".
package tree

import (
	"sort"
	"strconv"

	"github.com/perchlabs/echotree/internal/actionkey"
)

// DefaultMaxDepth bounds tree growth when no explicit limit is configured.
const DefaultMaxDepth = 10

// Node is one action occurrence point in the interaction history. The root
// uses the reserved empty action key. Children are exclusively owned; there
// are no parent pointers.
type Node struct {
	ActionKey    actionkey.Key
	Context      map[string]string
	Frequency    int
	SuccessCount int
	Children     map[actionkey.Key]*Node
}

// NewNode creates an empty node for the given key.
func NewNode(key actionkey.Key) *Node {
	return &Node{
		ActionKey: key,
		Context:   make(map[string]string),
		Children:  make(map[actionkey.Key]*Node),
	}
}

// SuccessRate returns SuccessCount/Frequency, or 0 for an untraversed node.
func (n *Node) SuccessRate() float64 {
	if n.Frequency == 0 {
		return 0
	}
	return float64(n.SuccessCount) / float64(n.Frequency)
}

// Child returns the child reached by the given transition key.
func (n *Node) Child(key actionkey.Key) (*Node, bool) {
	c, ok := n.Children[key]
	return c, ok
}

// update applies one traversal outcome. SuccessCount can never exceed
// Frequency because both only move here.
func (n *Node) update(succeeded bool) {
	n.Frequency++
	if succeeded {
		n.SuccessCount++
	}
}

// ensureChild returns the child for key, creating it with zero stats on the
// first observation of that transition. depth is recorded as context metadata
// only; it plays no part in prediction.
func (n *Node) ensureChild(key actionkey.Key, depth int) *Node {
	if c, ok := n.Children[key]; ok {
		return c
	}
	c := NewNode(key)
	c.Context["depth"] = strconv.Itoa(depth)
	c.Context["parent"] = string(n.ActionKey)
	n.Children[key] = c
	return c
}

// Tree owns the root node and the depth policy. Not safe for concurrent use;
// the owning session serializes access.
type Tree struct {
	root     *Node
	maxDepth int
}

// New creates an empty tree with the given depth limit. Limits below 1 fall
// back to DefaultMaxDepth.
func New(maxDepth int) *Tree {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}
	return &Tree{root: NewNode(""), maxDepth: maxDepth}
}

// NewFromRoot wraps an already-built node hierarchy (a loaded snapshot) in a
// tree with the given depth limit.
func NewFromRoot(root *Node, maxDepth int) *Tree {
	t := New(maxDepth)
	if root != nil {
		t.root = root
	}
	return t
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// MaxDepth returns the configured depth limit.
func (t *Tree) MaxDepth() int { return t.maxDepth }

// Reset discards the whole tree, leaving a fresh root.
func (t *Tree) Reset() { t.root = NewNode("") }

// Record walks from the root along pathSoFar and applies one traversal of
// next with the given outcome, creating the child on first observation. The
// affected child is returned.
//
// When the recorded node would sit deeper than the depth limit, no node is
// created; the outcome folds into the deepest existing ancestor along
// pathSoFar at or above the limit. Callers never see an error, only the
// folded ancestor.
func (t *Tree) Record(pathSoFar []actionkey.Key, next actionkey.Key, succeeded bool) *Node {
	if len(pathSoFar)+1 > t.maxDepth {
		n := t.root
		for depth := 0; depth < len(pathSoFar) && depth < t.maxDepth; depth++ {
			c, ok := n.Children[pathSoFar[depth]]
			if !ok {
				break
			}
			n = c
		}
		n.update(succeeded)
		return n
	}

	n := t.root
	for i, k := range pathSoFar {
		n = n.ensureChild(k, i+1)
	}
	child := n.ensureChild(next, len(pathSoFar)+1)
	child.update(succeeded)
	return child
}

// NodeStat describes one ranked node in a summary.
type NodeStat struct {
	Key         actionkey.Key `json:"key"`
	Depth       int           `json:"depth"`
	Frequency   int           `json:"frequency"`
	SuccessRate float64       `json:"success_rate"`
}

// Summary is an aggregate, read-only view of the tree.
type Summary struct {
	TotalNodes     int        `json:"total_nodes"` // including the root
	TotalFrequency int        `json:"total_frequency"`
	MaxDepth       int        `json:"max_depth"` // deepest existing node
	TopNodes       []NodeStat `json:"top_nodes"`
}

// Summary walks the tree and returns aggregate statistics with the topK
// non-root nodes ranked by frequency (ties by success rate, then key).
func (t *Tree) Summary(topK int) Summary {
	s := Summary{}
	var stats []NodeStat

	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		s.TotalNodes++
		s.TotalFrequency += n.Frequency
		if depth > s.MaxDepth {
			s.MaxDepth = depth
		}
		if depth > 0 {
			stats = append(stats, NodeStat{
				Key:         n.ActionKey,
				Depth:       depth,
				Frequency:   n.Frequency,
				SuccessRate: n.SuccessRate(),
			})
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(t.root, 0)

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		if stats[i].SuccessRate != stats[j].SuccessRate {
			return stats[i].SuccessRate > stats[j].SuccessRate
		}
		return stats[i].Key < stats[j].Key
	})

	if topK > 0 && len(stats) > topK {
		stats = stats[:topK]
	}
	s.TopNodes = stats
	return s
}
