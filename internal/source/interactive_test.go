package source

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func nextStep(t *testing.T, src *Interactive) Step {
	t.Helper()
	step, err := src.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	return step
}

func TestInteractiveParsesActions(t *testing.T) {
	input := strings.Join([]string{
		"turn find cats",
		"click 240 310",
		"type hello world",
		"scroll -3",
		"fn submit",
		"keypress",
		"exit",
	}, "\n")
	var out bytes.Buffer
	src := NewInteractive(strings.NewReader(input), &out)

	step := nextStep(t, src)
	if step.Kind != KindTurn || step.Input != "find cats" {
		t.Errorf("step = %+v, want turn 'find cats'", step)
	}

	step = nextStep(t, src)
	if step.Action.Type != "click" || step.Action.X != 240 || step.Action.Y != 310 {
		t.Errorf("step = %+v, want click 240 310", step)
	}
	if !step.Success {
		t.Error("plain action should default to success")
	}

	step = nextStep(t, src)
	if step.Action.Type != "type" || step.Action.Text != "hello world" {
		t.Errorf("step = %+v, want typed text 'hello world'", step)
	}

	step = nextStep(t, src)
	if step.Action.Type != "scroll" || step.Action.ScrollY != -3 {
		t.Errorf("step = %+v, want scroll -3", step)
	}

	step = nextStep(t, src)
	if step.Action.Type != "function_call" || step.Action.Name != "submit" {
		t.Errorf("step = %+v, want function_call submit", step)
	}

	step = nextStep(t, src)
	if step.Action.Type != "keypress" {
		t.Errorf("step = %+v, want bare keypress", step)
	}

	if _, err := src.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want io.EOF after exit", err)
	}
	if !strings.Contains(out.String(), "> ") {
		t.Error("prompt was never written")
	}
}

func TestInteractiveFailureMark(t *testing.T) {
	tests := []struct {
		line        string
		wantSuccess bool
		wantText    string
	}{
		{"click 240 310 !", false, ""},
		{"type hello !", false, "hello"},
		{"type hello!", true, "hello!"},
		{"scroll 5", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			src := NewInteractive(strings.NewReader(tt.line+"\n"), io.Discard)
			step := nextStep(t, src)
			if step.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", step.Success, tt.wantSuccess)
			}
			if step.Action.Type == "type" && step.Action.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", step.Action.Text, tt.wantText)
			}
		})
	}
}

func TestInteractiveCommands(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"summary", "summary"},
		{"tree_summary", "summary"},
		{"patterns", "patterns"},
		{"echo on", "echo on"},
		{"echo off", "echo off"},
		{"echo", "echo status"},
		{"help", "help"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			src := NewInteractive(strings.NewReader(tt.line+"\n"), io.Discard)
			step := nextStep(t, src)
			if step.Kind != KindCommand {
				t.Fatalf("Kind = %s, want command", step.Kind)
			}
			if step.Command != tt.want {
				t.Errorf("Command = %q, want %q", step.Command, tt.want)
			}
		})
	}
}

func TestInteractiveSkipsBlankLines(t *testing.T) {
	src := NewInteractive(strings.NewReader("\n\n   \nsummary\n"), io.Discard)
	step := nextStep(t, src)
	if step.Command != "summary" {
		t.Errorf("Command = %q, want summary", step.Command)
	}
}

func TestInteractiveParseErrorsKeepStreamUsable(t *testing.T) {
	src := NewInteractive(strings.NewReader("click nope\nclick 1 2\n"), io.Discard)

	if _, err := src.Next(); err == nil {
		t.Fatal("expected parse error for bad coordinates")
	}
	step := nextStep(t, src)
	if step.Action.Type != "click" {
		t.Errorf("stream unusable after parse error: %+v", step)
	}
}

func TestInteractiveEOFWithoutExit(t *testing.T) {
	src := NewInteractive(strings.NewReader("summary"), io.Discard)

	if step := nextStep(t, src); step.Command != "summary" {
		t.Fatalf("Command = %q, want summary", step.Command)
	}
	if _, err := src.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want io.EOF at end of input", err)
	}
}

func TestInteractiveUnknownCommand(t *testing.T) {
	src := NewInteractive(strings.NewReader("frobnicate everything\n"), io.Discard)
	if _, err := src.Next(); err == nil {
		t.Fatal("expected error for unknown multi-word command")
	}
}
