// Package source supplies action streams to a session. A Source yields turn
// boundaries, executed actions with their verdicts, and (for interactive use)
// control commands; the engine core never executes actions itself, it only
// consumes what a source reports.
package source

import "github.com/perchlabs/echotree/internal/actionkey"

// Kind discriminates the Step variants.
type Kind string

const (
	// KindTurn opens a new turn with the user input in Step.Input.
	KindTurn Kind = "turn"
	// KindAction reports one executed action and its verdict.
	KindAction Kind = "action"
	// KindCommand is a control command for the driving loop (interactive
	// sources only): "summary", "patterns", "echo on", "echo off",
	// "echo status", "help".
	KindCommand Kind = "command"
)

// Step is one unit from a source.
type Step struct {
	Kind    Kind
	Input   string           // KindTurn
	Action  actionkey.Action // KindAction
	Success bool             // KindAction
	Command string           // KindCommand
}

// Source yields steps until io.EOF. A non-EOF error describes a malformed
// step; whether that aborts the run is the driver's policy.
type Source interface {
	Next() (Step, error)
	Close() error
}
