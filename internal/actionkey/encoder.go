// Package actionkey derives coarse, comparable keys from raw action
// descriptions. Keys are the statistics buckets used by the interaction tree
// and the pattern learner: two near-identical actions (a click in the same
// screen region, typed text of similar length) must encode to the same key so
// their outcomes aggregate.
package actionkey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Key is a deterministic, comparable label for one action. The empty Key is
// reserved for the tree root and is never produced by Encode.
type Key string

// Delimiter joins keys into canonical sequence strings. It is part of the
// persisted snapshot format and must not change.
const Delimiter = "->"

// Action is a raw action description as supplied by an action source. The
// encoder only reads the fields relevant to the action's type; everything
// else is ignored. Meta is carried for journaling and never affects the key.
type Action struct {
	Type    string         `json:"type"`
	Name    string         `json:"name,omitempty"` // function name when Type is "function_call"
	X       int            `json:"x,omitempty"`
	Y       int            `json:"y,omitempty"`
	Text    string         `json:"text,omitempty"`
	ScrollX int            `json:"scroll_x,omitempty"`
	ScrollY int            `json:"scroll_y,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// regionSize is the edge length in pixels of the coordinate buckets used for
// pointer actions.
const regionSize = 100

// Text length thresholds for the type-action buckets.
const (
	shortTextMax  = 10
	mediumTextMax = 50
)

// Encode derives the key for a raw action. Encoding is pure and
// deterministic: the same action always yields the same key.
//
// Pointer actions are bucketed into a coarse screen grid, typed text by
// length, scrolls and drags by direction, and function calls by name. Any
// other action type encodes as the type itself. Malformed input (missing
// type, negative pointer coordinates, unnamed function call) is rejected
// with a descriptive error; no ambiguous key is ever produced.
func Encode(a Action) (Key, error) {
	switch a.Type {
	case "":
		return "", fmt.Errorf("action has no type")

	case "click", "double_click", "move":
		if a.X < 0 || a.Y < 0 {
			return "", fmt.Errorf("%s action has negative coordinates (%d, %d)", a.Type, a.X, a.Y)
		}
		return Key(fmt.Sprintf("%s_region_%d_%d", a.Type, a.X/regionSize, a.Y/regionSize)), nil

	case "type":
		return Key("type_" + textBucket(a.Text)), nil

	case "scroll", "drag":
		return Key(a.Type + "_" + scrollDirection(a.ScrollY)), nil

	case "function_call":
		if a.Name == "" {
			return "", fmt.Errorf("function_call action has no name")
		}
		return Key("function_" + a.Name), nil

	default:
		return Key(a.Type), nil
	}
}

// textBucket coarsens typed text to a length class so statistics generalize
// across inputs of similar size.
func textBucket(text string) string {
	switch n := utf8.RuneCountInString(text); {
	case n < shortTextMax:
		return "short"
	case n < mediumTextMax:
		return "medium"
	default:
		return "long"
	}
}

// scrollDirection maps a vertical scroll delta to a direction label.
// Negative deltas scroll up, positive down; zero means horizontal movement.
func scrollDirection(dy int) string {
	switch {
	case dy < 0:
		return "up"
	case dy > 0:
		return "down"
	default:
		return "horizontal"
	}
}

// TurnKey derives the context key for a user turn from its input text. The
// hash keeps the tree's turn roots stable for repeated inputs without
// retaining the raw text.
func TurnKey(input string) Key {
	sum := sha256.Sum256([]byte(input))
	return Key("input_" + hex.EncodeToString(sum[:4]))
}

// JoinKeys builds the canonical sequence string for an ordered key sequence.
func JoinKeys(keys []Key) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, Delimiter)
}

// SplitKey parses a canonical sequence string back into its ordered keys.
// The empty string yields nil.
func SplitKey(s string) []Key {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, Delimiter)
	keys := make([]Key, len(parts))
	for i, p := range parts {
		keys[i] = Key(p)
	}
	return keys
}

// CommonPrefixLen reports how many leading keys two sequences share.
func CommonPrefixLen(a, b []Key) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
