package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/perchlabs/echotree/internal/actionkey"
)

// Script reads a JSONL action stream: one JSON object per line. A line is
// either a turn boundary or an action:
//
//	{"turn": "find pictures of cats"}
//	{"type": "click", "x": 240, "y": 310}
//	{"type": "type", "text": "cats", "success": false}
//
// Action lines carry the raw action fields plus an optional "success" bool
// (absent means succeeded). Blank lines and lines starting with '#' are
// skipped.
type Script struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// OpenScript opens a script file.
func OpenScript(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	s := NewScript(f)
	s.closer = f
	return s, nil
}

// NewScript reads a script from r. The caller keeps ownership of r.
func NewScript(r io.Reader) *Script {
	return &Script{scanner: bufio.NewScanner(r)}
}

type scriptLine struct {
	Turn    string `json:"turn"`
	Success *bool  `json:"success"`
	actionkey.Action
}

// Next returns the next step, or io.EOF when the script is exhausted. Errors
// name the offending line.
func (s *Script) Next() (Step, error) {
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var ln scriptLine
		if err := json.Unmarshal([]byte(text), &ln); err != nil {
			return Step{}, fmt.Errorf("script line %d: %w", s.line, err)
		}
		if ln.Turn != "" {
			return Step{Kind: KindTurn, Input: ln.Turn}, nil
		}
		if ln.Action.Type == "" {
			return Step{}, fmt.Errorf("script line %d: neither a turn nor an action", s.line)
		}
		success := true
		if ln.Success != nil {
			success = *ln.Success
		}
		return Step{Kind: KindAction, Action: ln.Action, Success: success}, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Step{}, fmt.Errorf("failed to read script: %w", err)
	}
	return Step{}, io.EOF
}

// Close releases the underlying file, if Script owns one.
func (s *Script) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
