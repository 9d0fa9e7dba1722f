package source

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/perchlabs/echotree/internal/actionkey"
)

// Interactive reads steps from a line-oriented prompt. The grammar keeps the
// demo/REPL surface small:
//
//	turn <text>        open a new turn for the given input
//	click X Y          pointer actions (also double_click, move)
//	type <text>        typed text
//	scroll <dy>        vertical scroll, negative scrolls up (also drag)
//	fn <name>          function call
//	<word>             any other bare action type (keypress, wait, ...)
//
// A standalone trailing "!" marks the action as failed: "click 240 310 !".
// Control commands (summary, patterns, echo on|off|status, help) pass through
// as KindCommand; "exit" and "quit" end the stream.
type Interactive struct {
	reader *bufio.Reader
	out    io.Writer
	prompt string
}

// NewInteractive builds a prompt-driven source reading from r and writing the
// prompt to w.
func NewInteractive(r io.Reader, w io.Writer) *Interactive {
	return &Interactive{reader: bufio.NewReader(r), out: w, prompt: "> "}
}

// Next prompts for and parses one step. Returns io.EOF on "exit", "quit", or
// end of input; a parse error leaves the stream usable so the driver can
// report it and keep prompting.
func (i *Interactive) Next() (Step, error) {
	for {
		fmt.Fprint(i.out, i.prompt)
		line, err := i.reader.ReadString('\n')
		if err != nil && line == "" {
			return Step{}, io.EOF
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if err != nil {
				return Step{}, io.EOF
			}
			continue
		}
		return i.parse(line)
	}
}

func (i *Interactive) parse(line string) (Step, error) {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "exit", "quit":
		return Step{}, io.EOF

	case "summary", "tree_summary":
		return Step{Kind: KindCommand, Command: "summary"}, nil

	case "patterns":
		return Step{Kind: KindCommand, Command: "patterns"}, nil

	case "help":
		return Step{Kind: KindCommand, Command: "help"}, nil

	case "echo":
		switch rest {
		case "on", "off":
			return Step{Kind: KindCommand, Command: "echo " + rest}, nil
		case "":
			return Step{Kind: KindCommand, Command: "echo status"}, nil
		default:
			return Step{}, fmt.Errorf("usage: echo [on|off]")
		}

	case "turn":
		if rest == "" {
			return Step{}, fmt.Errorf("usage: turn <text>")
		}
		return Step{Kind: KindTurn, Input: rest}, nil

	case "type":
		text, failed := cutFailureMark(rest)
		return Step{Kind: KindAction, Action: actionkey.Action{Type: "type", Text: text}, Success: !failed}, nil

	default:
		return i.parseAction(verb, rest)
	}
}

func (i *Interactive) parseAction(verb, rest string) (Step, error) {
	args := strings.Fields(rest)
	failed := false
	if n := len(args); n > 0 && args[n-1] == "!" {
		failed = true
		args = args[:n-1]
	}

	a := actionkey.Action{Type: verb}
	switch verb {
	case "click", "double_click", "move":
		if len(args) != 2 {
			return Step{}, fmt.Errorf("usage: %s X Y", verb)
		}
		x, errX := strconv.Atoi(args[0])
		y, errY := strconv.Atoi(args[1])
		if errX != nil || errY != nil {
			return Step{}, fmt.Errorf("%s: coordinates must be integers", verb)
		}
		a.X, a.Y = x, y

	case "scroll", "drag":
		if len(args) != 1 {
			return Step{}, fmt.Errorf("usage: %s <dy>", verb)
		}
		dy, err := strconv.Atoi(args[0])
		if err != nil {
			return Step{}, fmt.Errorf("%s: delta must be an integer", verb)
		}
		a.ScrollY = dy

	case "fn":
		if len(args) != 1 {
			return Step{}, fmt.Errorf("usage: fn <name>")
		}
		a.Type = "function_call"
		a.Name = args[0]

	default:
		// Bare action type such as keypress, screenshot, or wait.
		if len(args) != 0 {
			return Step{}, fmt.Errorf("unknown command %q (try help)", verb)
		}
	}
	return Step{Kind: KindAction, Action: a, Success: !failed}, nil
}

// cutFailureMark strips a standalone trailing "!" token. Text ending in "!"
// without a separating space is left intact.
func cutFailureMark(s string) (string, bool) {
	if s == "!" {
		return "", true
	}
	if trimmed, ok := strings.CutSuffix(s, " !"); ok {
		return strings.TrimSpace(trimmed), true
	}
	return s, false
}

// Close is a no-op; the caller owns the reader.
func (i *Interactive) Close() error { return nil }
