package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/perchlabs/echotree/internal/autosave"
	"github.com/perchlabs/echotree/internal/banner"
	"github.com/perchlabs/echotree/internal/config"
	"github.com/perchlabs/echotree/internal/logging"
	"github.com/perchlabs/echotree/internal/report"
	"github.com/perchlabs/echotree/internal/session"
	"github.com/perchlabs/echotree/internal/source"
)

// progressEvery is how many recorded actions pass between learning progress lines.
const progressEvery = 5

func newRunCmd() *cobra.Command {
	var (
		scriptPath     string
		snapshotFile   string
		maxDepth       int
		echoThreshold  float64
		minSamples     int
		disableEcho    bool
		saveEvery      int
		journalOn      bool
		autosaveOn     bool
		discardCorrupt bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Record an action stream and surface echo suggestions",
		Long: `Record actions into the interaction tree, one turn at a time, and print
echo suggestions whenever a familiar pattern crosses the confidence gate.

Without --script an interactive prompt reads actions line by line:

  turn <text>        open a new turn for the given input
  click X Y          pointer actions (also double_click, move)
  type <text>        typed text
  scroll <dy>        vertical scroll, negative scrolls up (also drag)
  fn <name>          function call
  summary            print the tree summary

Append a standalone '!' to mark an action failed: click 240 310 !

Script files are JSON Lines: {"turn":"pay the invoice"} opens a turn,
{"type":"click","x":240,"y":310,"success":false} records an action.

Examples:
  echotree run                            # Interactive prompt
  echotree run --script actions.jsonl    # Feed a recorded script
  echotree run --disable-echo            # Record without suggestions
  echotree run --echo-threshold 0.9      # Only echo near-certain patterns`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// Flag overrides, applied only when set explicitly.
			if cmd.Flags().Changed("snapshot-file") {
				cfg.Snapshot.Path = snapshotFile
			}
			if cmd.Flags().Changed("save-every") {
				cfg.Snapshot.SaveEvery = saveEvery
			}
			if cmd.Flags().Changed("max-depth") {
				cfg.Tree.MaxDepth = maxDepth
			}
			if cmd.Flags().Changed("echo-threshold") {
				cfg.Echo.Threshold = echoThreshold
			}
			if cmd.Flags().Changed("min-samples") {
				cfg.Echo.MinSamples = minSamples
			}
			if disableEcho {
				cfg.Echo.Enabled = false
			}
			if cmd.Flags().Changed("journal") {
				cfg.Journal.Enabled = journalOn
			}
			if cmd.Flags().Changed("autosave") {
				cfg.Snapshot.Autosave.Enabled = autosaveOn
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			if err := logging.Init(cfg.Logging); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Println("\n⚠️  Interrupted, saving memory...")
				cancel()
			}()

			interactive := scriptPath == ""
			var src source.Source
			sourceName := "script"
			if interactive {
				banner.Startup(version, cfg)
				fmt.Println("Type 'help' for commands, 'exit' to finish.")
				fmt.Println()
				src = source.NewInteractive(os.Stdin, os.Stdout)
				sourceName = "interactive"
			} else {
				banner.PrintCompact()
				fmt.Printf("   Script: %s\n\n", scriptPath)
				script, err := source.OpenScript(scriptPath)
				if err != nil {
					return err
				}
				src = script
			}
			defer func() { _ = src.Close() }()

			sess, err := session.New(cfg, session.Options{
				Source:         sourceName,
				DiscardCorrupt: discardCorrupt,
			})
			if err != nil {
				return err
			}

			var sched *autosave.Scheduler
			if cfg.Snapshot.Autosave != nil && cfg.Snapshot.Autosave.Enabled {
				sched = autosave.NewScheduler(sess, cfg.Snapshot.Autosave.Schedule)
				if err := sched.Start(); err != nil {
					_ = sess.Close()
					return fmt.Errorf("failed to start autosave: %w", err)
				}
			}

			driveErr := driveSession(ctx, sess, src, cfg, interactive)

			if sched != nil {
				sched.Stop()
			}

			sum := sess.Summary(cfg.Report.TopPatterns)
			fmt.Println()
			fmt.Println(report.Summary(sum))

			if err := sess.Close(); err != nil {
				if driveErr == nil {
					driveErr = fmt.Errorf("failed to save memory: %w", err)
				} else {
					fmt.Fprintf(os.Stderr, "failed to save memory: %v\n", err)
				}
			} else {
				fmt.Printf("💾 Memory saved to %s\n", cfg.Snapshot.Path)
			}

			return driveErr
		},
	}

	cmd.Flags().StringVar(&scriptPath, "script", "", "Read actions from a JSONL script instead of the prompt")
	cmd.Flags().StringVar(&snapshotFile, "snapshot-file", "", "Memory snapshot path (overrides config)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Interaction tree depth limit (overrides config)")
	cmd.Flags().Float64Var(&echoThreshold, "echo-threshold", 0, "Minimum success rate before a pattern echoes (overrides config)")
	cmd.Flags().IntVar(&minSamples, "min-samples", 0, "Minimum observations before a pattern echoes (overrides config)")
	cmd.Flags().BoolVar(&disableEcho, "disable-echo", false, "Record without emitting suggestions")
	cmd.Flags().IntVar(&saveEvery, "save-every", 0, "Snapshot cadence in recorded actions (overrides config)")
	cmd.Flags().BoolVar(&journalOn, "journal", true, "Journal the action stream to SQLite (overrides config)")
	cmd.Flags().BoolVar(&autosaveOn, "autosave", false, "Run the background snapshot schedule (overrides config)")
	cmd.Flags().BoolVar(&discardCorrupt, "discard-corrupt", false, "Start fresh instead of failing when the snapshot is corrupt")

	return cmd
}

// driveSession pumps steps from the source into the session until the stream
// ends, the context is cancelled, or (in script mode) a step fails.
func driveSession(ctx context.Context, sess *session.Session, src source.Source, cfg *config.Config, interactive bool) error {
	turnOK := true

	defer func() {
		// Flush the trailing turn so its sequence is learned.
		if a := sess.EndTurn(turnOK); a != nil {
			fmt.Println(report.TurnAnalysis(a))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		step, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if interactive {
				fmt.Printf("  ⚠️  %v\n", err)
				continue
			}
			return err
		}

		switch step.Kind {
		case source.KindTurn:
			if a := sess.EndTurn(turnOK); a != nil {
				fmt.Println(report.TurnAnalysis(a))
			}
			sess.StartTurn(step.Input)
			turnOK = true

		case source.KindAction:
			sug, err := sess.Record(step.Action, step.Success)
			if err != nil {
				if interactive {
					fmt.Printf("  ⚠️  %v\n", err)
					continue
				}
				return err
			}
			if !step.Success {
				turnOK = false
			}
			if sug != nil {
				fmt.Println(report.Echo(sug))
			}
			if n := sess.Actions(); n > 0 && n%progressEvery == 0 {
				sum := sess.Summary(0)
				fmt.Println(report.Progress(sum.Patterns, sum.Tree.TotalNodes))
			}

		case source.KindCommand:
			runControlCommand(sess, cfg, step.Command)
		}
	}
}

// runControlCommand handles the pass-through prompt commands.
func runControlCommand(sess *session.Session, cfg *config.Config, command string) {
	switch command {
	case "summary":
		fmt.Println(report.Summary(sess.Summary(cfg.Report.TopPatterns)))
	case "patterns":
		fmt.Println(report.Patterns(sess.Summary(cfg.Report.TopPatterns).TopPatterns))
	case "echo on":
		sess.SetEchoEnabled(true)
		fmt.Println("  Echo suggestions on")
	case "echo off":
		sess.SetEchoEnabled(false)
		fmt.Println("  Echo suggestions off")
	case "echo status":
		if sess.EchoEnabled() {
			fmt.Println("  Echo suggestions are on")
		} else {
			fmt.Println("  Echo suggestions are off")
		}
	case "help":
		printPromptHelp()
	}
}

func printPromptHelp() {
	fmt.Println(`
  ACTIONS
  ─────────────────────────────────────
  turn <text>        Open a new turn for the given input
  click X Y          Pointer click (also: double_click, move)
  type <text>        Typed text
  scroll <dy>        Vertical scroll, negative scrolls up (also: drag)
  fn <name>          Function call
  <word>             Any bare action type (keypress, wait, ...)

  Append a standalone '!' to mark an action failed: click 240 310 !

  COMMANDS
  ─────────────────────────────────────
  summary            Print the tree summary
  patterns           Print the top learned patterns
  echo [on|off]      Toggle suggestions, or show the current state
  help               Show this help
  exit               Save memory and quit`)
}
