package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clocktower/grimoire-server-go/internal/backup"
	"github.com/clocktower/grimoire-server-go/internal/common/clock"
	"github.com/clocktower/grimoire-server-go/internal/game"
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
	"github.com/clocktower/grimoire-server-go/internal/scenario"
	"github.com/clocktower/grimoire-server-go/internal/storage"
)

type scenarioFlags struct {
	save      bool
	replayDir string
	events    bool
	grimoire  bool
}

func newScenarioCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Play scripted games",
	}
	cmd.AddCommand(newScenarioRunCmd(a))
	return cmd
}

func newScenarioRunCmd(a *app) *cobra.Command {
	var flags scenarioFlags
	cmd := &cobra.Command{
		Use:   "run <scenario files...>",
		Short: "Play scenarios and check their expectations",
		Long: `Plays each scenario against a fresh game. With --save the games are
backed up to the configured store while they run, and with --replay-dir a
snapshot of every phase is written for later inspection.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			failed := 0
			for _, path := range args {
				if err := runScenario(ctx, a, flags, cmd.OutOrStdout(), path); err != nil {
					if errors.Is(err, context.Canceled) {
						return err
					}
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", path, err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&flags.save, "save", false, "back up the games to the configured store")
	cmd.Flags().StringVar(&flags.replayDir, "replay-dir", "", "write a per-phase replay of each game to this directory")
	cmd.Flags().BoolVar(&flags.events, "events", false, "print the public event log")
	cmd.Flags().BoolVar(&flags.grimoire, "grimoire", false, "print the full event log, hidden events included")
	return cmd
}

func runScenario(ctx context.Context, a *app, flags scenarioFlags, out io.Writer, path string) error {
	s, err := scenario.LoadFile(path)
	if err != nil {
		return err
	}
	logger := a.logger.With(zap.String("scenario_file", filepath.Base(path)))

	opts := []scenario.RunnerOption{
		scenario.WithLogger(logger),
		scenario.WithScriptsDir(a.cfg.Scripts.Dir),
		scenario.WithScriptOverrides(a.cfg.Rules.Apply),
	}

	var replay *game.Replay
	if flags.replayDir != "" {
		replay = game.NewReplay("")
		opts = append(opts, scenario.WithGameOptions(game.WithReplay(replay)))
	}

	var (
		scheduler *backup.Scheduler
		done      chan error
		cancel    context.CancelFunc = func() {}
	)
	if flags.save {
		store, err := storage.Open(ctx, a.cfg.Storage, &clock.DefaultClock{}, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		scheduler = backup.NewScheduler(store,
			backup.WithInterval(a.cfg.Backup.Interval),
			backup.WithLogger(logger),
		)
		opts = append(opts, scenario.WithObserver(func(ctrl *game.Controller) {
			scheduler.Attach(ctrl)
		}))
		// without periodic backups only the final state is written
		if a.cfg.Backup.Enabled {
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(ctx)
			done = make(chan error, 1)
			go func() { done <- scheduler.Run(runCtx) }()
		}
	}

	result, runErr := scenario.NewRunner(opts...).Run(ctx, s)

	if scheduler != nil {
		var saveErr error
		if done != nil {
			cancel()
			saveErr = <-done
		} else {
			saveErr = scheduler.Flush(context.WithoutCancel(ctx))
		}
		if saveErr != nil {
			logger.Error("failed to save game", zap.Error(saveErr))
			if runErr == nil {
				runErr = saveErr
			}
		}
	}
	if replay != nil && replay.Len() > 0 {
		if err := replay.SaveToFile(flags.replayDir); err != nil {
			logger.Error("failed to write replay", zap.Error(err))
		} else {
			logger.Info("replay written",
				zap.String("game_id", replay.GameID()),
				zap.Int("frames", replay.Len()),
			)
		}
	}
	if runErr != nil {
		return runErr
	}

	ctrl := result.Controller
	summary := ctrl.PublicState()
	fmt.Fprintf(out, "PASS %s: %d steps, %d events, %s day %d", s.Name, result.Steps, len(result.Events), summary.Phase, summary.Day)
	if summary.Winner != "" {
		fmt.Fprintf(out, ", %s wins (%s)", summary.Winner, summary.WinReason)
	}
	fmt.Fprintf(out, " [game %s]\n", summary.GameID)

	switch {
	case flags.grimoire:
		printEvents(out, result.Events)
	case flags.events:
		printEvents(out, ctrl.PublicEvents())
	}
	return nil
}

func printEvents(out io.Writer, events []rules.Event) {
	for _, e := range events {
		fmt.Fprintf(out, "  %3d  day %d %-11s %-19s", e.Seq, e.Day, e.Phase, e.Type)
		if e.PlayerID != "" {
			fmt.Fprintf(out, " player=%s", e.PlayerID)
		}
		if e.SourceID != "" {
			fmt.Fprintf(out, " source=%s", e.SourceID)
		}
		if e.Character != "" {
			fmt.Fprintf(out, " character=%s", e.Character)
		}
		for _, k := range sortedKeys(e.Metadata) {
			fmt.Fprintf(out, " %s=%s", k, e.Metadata[k])
		}
		for _, k := range sortedKeys(e.Audit) {
			fmt.Fprintf(out, " [%s=%s]", k, e.Audit[k])
		}
		fmt.Fprintln(out)
	}
}
