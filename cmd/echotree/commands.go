package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/perchlabs/echotree/internal/banner"
	"github.com/perchlabs/echotree/internal/config"
	"github.com/perchlabs/echotree/internal/journal"
	"github.com/perchlabs/echotree/internal/learner"
	"github.com/perchlabs/echotree/internal/logging"
	"github.com/perchlabs/echotree/internal/replay"
	"github.com/perchlabs/echotree/internal/report"
	"github.com/perchlabs/echotree/internal/snapshot"
	"github.com/perchlabs/echotree/internal/tree"
)

func newSummaryCmd() *cobra.Command {
	var (
		jsonOutput bool
		top        int
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the learned memory without starting a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store := snapshot.NewStore(cfg.Snapshot.Path)
			snap, err := store.Load()
			if err != nil {
				return err
			}
			tr, ln, err := snap.Restore(cfg.Tree.MaxDepth)
			if err != nil {
				return err
			}

			if jsonOutput {
				out := struct {
					Snapshot string                `json:"snapshot"`
					Tree     tree.Summary          `json:"tree"`
					Patterns int                   `json:"patterns"`
					Top      []learner.PatternStat `json:"top_patterns,omitempty"`
				}{store.Path(), tr.Summary(top), ln.Len(), ln.Top(top)}
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Println(report.MemorySummary(store.Path(), tr.Summary(top), ln.Len(), ln.Top(top)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&top, "top", 5, "How many top patterns to include")

	return cmd
}

func newPatternsCmd() *cobra.Command {
	var (
		jsonOutput bool
		top        int
	)

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List the most frequent learned action patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store := snapshot.NewStore(cfg.Snapshot.Path)
			snap, err := store.Load()
			if err != nil {
				return err
			}
			_, ln, err := snap.Restore(cfg.Tree.MaxDepth)
			if err != nil {
				return err
			}

			stats := ln.Top(top)
			if jsonOutput {
				data, err := json.MarshalIndent(stats, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Println(report.Patterns(stats))
			if len(stats) == 0 {
				fmt.Println("💡 Run 'echotree run' to record a session")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&top, "top", 10, "How many patterns to list")

	return cmd
}

func newSessionsCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := journal.Open(cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			sessions, err := store.RecentSessions(limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := json.MarshalIndent(sessions, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			if len(sessions) == 0 {
				fmt.Println("No sessions recorded yet.")
				fmt.Println("💡 Run 'echotree run' to record one")
				return nil
			}

			fmt.Printf("🌳 Recent Sessions (%d)\n", len(sessions))
			fmt.Println("────────────────────────────────────────")
			for _, rec := range sessions {
				icon := "🔄"
				duration := "running"
				if rec.EndedAt != nil {
					icon = "✅"
					duration = rec.EndedAt.Sub(rec.StartedAt).Round(time.Second).String()
				}
				fmt.Printf("%s %s\n", icon, rec.ID)
				fmt.Printf("   %s │ started %s │ %s │ %d actions │ %d turns\n",
					rec.Source,
					rec.StartedAt.Local().Format("2006-01-02 15:04"),
					duration,
					rec.Actions,
					rec.Turns)
			}
			fmt.Println()
			fmt.Println("💡 echotree replay <session-id> to step back through one")
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum sessions to list")

	return cmd
}

func newReplayCmd() *cobra.Command {
	var (
		speed      float64
		from       int
		to         int
		verbose    bool
		runReport  bool
		jsonOutput bool
		noView     bool
	)

	cmd := &cobra.Command{
		Use:   "replay <session-id>",
		Short: "Step back through a recorded session",
		Long: `Replay a session from the journal.

In a terminal this opens an interactive viewer. Pass --no-view to stream
events to stdout instead, or --report to print outcome statistics.

Examples:
  echotree replay 5f2a91c4-...             # Interactive viewer
  echotree replay 5f2a91c4-... --no-view   # Plain event stream
  echotree replay 5f2a91c4-... --report    # Outcome statistics
  echotree replay 5f2a91c4-... --from 10 --to 25 --speed 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := journal.Open(cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if runReport {
				player, err := replay.NewPlayer(store, sessionID, replay.DefaultOptions())
				if err != nil {
					return err
				}
				events := make([]*journal.Event, 0, player.EventCount())
				for i := 0; i < player.EventCount(); i++ {
					events = append(events, player.Event(i))
				}
				rep := replay.Analyze(player.Session(), events)
				if jsonOutput {
					data, err := json.MarshalIndent(rep, "", "  ")
					if err != nil {
						return err
					}
					fmt.Println(string(data))
					return nil
				}
				fmt.Println(replay.FormatReport(rep))
				return nil
			}

			if !noView && replay.CheckTerminalSupport() {
				logging.Suppress()
				return replay.RunViewer(store, sessionID)
			}

			opts := &replay.Options{
				StartAt: from,
				StopAt:  to,
				Speed:   speed,
				Verbose: verbose,
			}
			player, err := replay.NewPlayer(store, sessionID, opts)
			if err != nil {
				return err
			}
			player.OnEvent(func(ev *journal.Event, index, total int) error {
				fmt.Println(replay.FormatEvent(ev, verbose))
				return nil
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				cancel()
			}()

			fmt.Printf("▶ Replaying %s (%d events)\n\n", sessionID, player.EventCount())
			if err := player.Play(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&speed, "speed", 0, "Playback speed multiplier, 0 plays without delays")
	cmd.Flags().IntVar(&from, "from", 0, "First action sequence number to play")
	cmd.Flags().IntVar(&to, "to", 0, "Last action sequence number to play, 0 plays to the end")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show turn keys and full echo text")
	cmd.Flags().BoolVar(&runReport, "report", false, "Print outcome statistics instead of playing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON (with --report)")
	cmd.Flags().BoolVar(&noView, "no-view", false, "Stream events to stdout instead of the viewer")

	return cmd
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			banner.PrintWithVersion(version)

			path := cfgFile
			if path == "" {
				path = config.DefaultConfigPath()
			}

			if _, err := os.Stat(path); err == nil {
				if !force {
					fmt.Printf("⚠️  Config already exists at %s\n", path)
					fmt.Println("   Use --force to overwrite (a backup is kept)")
					return nil
				}
				backup := path + ".bak"
				if err := os.Rename(path, backup); err != nil {
					return fmt.Errorf("failed to back up existing config: %w", err)
				}
				fmt.Printf("📦 Existing config backed up to %s\n", backup)
			}

			if err := config.Save(config.DefaultConfig(), path); err != nil {
				return err
			}

			fmt.Printf("✅ Config created at %s\n", path)
			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  1. Review the config:   echotree config show")
			fmt.Println("  2. Record a session:    echotree run")
			fmt.Println("  3. Inspect the memory:  echotree summary")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config (keeps a .bak)")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("echotree v%s\n", version)
			if buildTime != "unknown" {
				fmt.Printf("  built %s\n", buildTime)
			}
		},
	}
}
