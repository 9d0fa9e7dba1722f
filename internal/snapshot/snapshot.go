// Package snapshot owns the persisted form of the interaction tree and the
// pattern learner: a single structured document that round-trips both, plus
// the file store that reads and writes it atomically.
package snapshot

import (
	"errors"
	"fmt"
	"math"

	"github.com/perchlabs/echotree/internal/actionkey"
	"github.com/perchlabs/echotree/internal/learner"
	"github.com/perchlabs/echotree/internal/tree"
)

// Error kinds surfaced by loading and saving. Wrapped errors carry detail;
// match with errors.Is.
var (
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
	ErrIO              = errors.New("snapshot io")
)

// TreeState is the serialized form of one tree node. success_rate is
// denormalized: the writer always emits success_count/frequency, and the
// loader rebuilds success_count from it.
type TreeState struct {
	ActionType  string                `json:"action_type"`
	Context     map[string]string     `json:"context"`
	Frequency   int                   `json:"frequency"`
	SuccessRate float64               `json:"success_rate"`
	Children    map[string]*TreeState `json:"children"`
}

// PatternState is the serialized pattern table. The two maps always agree:
// frequencies[k] == len(success_patterns[k]) for every pattern k.
type PatternState struct {
	Frequencies     map[string]int    `json:"frequencies"`
	SuccessPatterns map[string][]bool `json:"success_patterns"`
}

// Snapshot is the full serializable state of one session's memory. It holds
// plain values only, never live references, so a captured snapshot is immune
// to later mutation of the session.
type Snapshot struct {
	Tree       *TreeState   `json:"tree"`
	MLPatterns PatternState `json:"ml_patterns"`
}

// Empty returns the snapshot of a fresh session: a bare root and no
// patterns.
func Empty() *Snapshot {
	return &Snapshot{
		Tree: &TreeState{
			Context:  make(map[string]string),
			Children: make(map[string]*TreeState),
		},
		MLPatterns: PatternState{
			Frequencies:     make(map[string]int),
			SuccessPatterns: make(map[string][]bool),
		},
	}
}

// Capture deep-copies the live tree and learner into a snapshot. The result
// shares no memory with its sources; mutating them afterwards does not
// change what a later Save writes.
func Capture(t *tree.Tree, l *learner.Learner) *Snapshot {
	freqs, outcomes := l.Export()
	return &Snapshot{
		Tree: captureNode(t.Root()),
		MLPatterns: PatternState{
			Frequencies:     freqs,
			SuccessPatterns: outcomes,
		},
	}
}

func captureNode(n *tree.Node) *TreeState {
	st := &TreeState{
		ActionType:  string(n.ActionKey),
		Context:     make(map[string]string, len(n.Context)),
		Frequency:   n.Frequency,
		SuccessRate: n.SuccessRate(),
		Children:    make(map[string]*TreeState, len(n.Children)),
	}
	for k, v := range n.Context {
		st.Context[k] = v
	}
	for key, child := range n.Children {
		st.Children[string(key)] = captureNode(child)
	}
	return st
}

// Validate checks the snapshot against the format's invariants. It returns a
// plain descriptive error; Load wraps violations as ErrCorruptSnapshot.
func (s *Snapshot) Validate() error {
	if s.Tree == nil {
		return errors.New("missing tree")
	}
	if err := validateNode(s.Tree, "root"); err != nil {
		return err
	}
	for key, freq := range s.MLPatterns.Frequencies {
		if key == "" {
			return errors.New("pattern table: empty sequence key")
		}
		if freq <= 0 {
			return fmt.Errorf("pattern %q: non-positive frequency %d", key, freq)
		}
		if got := len(s.MLPatterns.SuccessPatterns[key]); got != freq {
			return fmt.Errorf("pattern %q: frequency %d does not match %d recorded outcomes", key, freq, got)
		}
	}
	for key := range s.MLPatterns.SuccessPatterns {
		if _, ok := s.MLPatterns.Frequencies[key]; !ok {
			return fmt.Errorf("pattern %q: outcomes without a frequency entry", key)
		}
	}
	return nil
}

func validateNode(st *TreeState, path string) error {
	if st == nil {
		return fmt.Errorf("node %q: null child", path)
	}
	if st.Frequency < 0 {
		return fmt.Errorf("node %q: negative frequency %d", path, st.Frequency)
	}
	if st.SuccessRate < 0 || st.SuccessRate > 1 {
		return fmt.Errorf("node %q: success_rate %v out of range", path, st.SuccessRate)
	}
	for key, child := range st.Children {
		if key == "" {
			return fmt.Errorf("node %q: empty transition label", path)
		}
		if err := validateNode(child, path+actionkey.Delimiter+key); err != nil {
			return err
		}
	}
	return nil
}

// Restore validates the snapshot and rebuilds the live structures. Nodes
// deeper than maxDepth in the stored tree are kept as-is; the limit only
// governs future recording.
func (s *Snapshot) Restore(maxDepth int) (*tree.Tree, *learner.Learner, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	root := restoreNode(s.Tree, "")
	l := learner.New()
	l.Import(s.MLPatterns.SuccessPatterns)
	return tree.NewFromRoot(root, maxDepth), l, nil
}

// restoreNode rebuilds a node from its stored state. The transition label in
// the parent's children map is authoritative for the node's action key, so
// the root always comes back under the reserved empty key whatever its
// stored action_type says. success_count is recovered by rounding
// success_rate*frequency, which inverts what Capture wrote.
func restoreNode(st *TreeState, key actionkey.Key) *tree.Node {
	n := tree.NewNode(key)
	n.Frequency = st.Frequency
	n.SuccessCount = int(math.Round(st.SuccessRate * float64(st.Frequency)))
	for k, v := range st.Context {
		n.Context[k] = v
	}
	for label, child := range st.Children {
		n.Children[actionkey.Key(label)] = restoreNode(child, actionkey.Key(label))
	}
	return n
}
