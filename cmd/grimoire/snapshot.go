package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clocktower/grimoire-server-go/internal/common/clock"
	"github.com/clocktower/grimoire-server-go/internal/game"
	"github.com/clocktower/grimoire-server-go/internal/storage"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect saved games",
	}
	cmd.AddCommand(
		newSnapshotListCmd(a),
		newSnapshotShowCmd(a),
		newSnapshotVerifyCmd(a),
		newSnapshotDeleteCmd(a),
		newSnapshotReplayCmd(a),
	)
	return cmd
}

// withStore opens the configured store for the duration of fn.
func withStore(ctx context.Context, a *app, fn func(storage.Store) error) error {
	store, err := storage.Open(ctx, a.cfg.Storage, &clock.DefaultClock{}, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("failed to close store", zap.Error(err))
		}
	}()
	return fn(store)
}

func newSnapshotListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved games",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), a, func(store storage.Store) error {
				records, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, r := range records {
					fmt.Fprintf(out, "%-36s %-11s day %-2d %4d events  %s  %s\n",
						r.GameID, r.Phase, r.Day, r.Events, r.SavedAt.Format("2006-01-02 15:04:05"), shortHash(r.Hash))
				}
				if len(records) == 0 {
					fmt.Fprintln(out, "no saved games")
				}
				return nil
			})
		},
	}
}

func newSnapshotShowCmd(a *app) *cobra.Command {
	var grimoire bool
	cmd := &cobra.Command{
		Use:   "show <game-id>",
		Short: "Print the table's view of a saved game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), a, func(store storage.Store) error {
				snapshot, err := store.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if grimoire {
					data, err := json.MarshalIndent(snapshot, "", "  ")
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return nil
				}
				ctrl, err := game.Restore(snapshot, game.WithLogger(a.logger))
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(ctrl.PublicState(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&grimoire, "grimoire", false, "print the full snapshot, hidden state included")
	return cmd
}

func newSnapshotVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [game-ids...]",
		Short: "Check saved games against their checksums",
		Long: `Loads each game, checks its checksum, restores it and confirms the
restored game snapshots to the same content. Without arguments every saved
game is checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), a, func(store storage.Store) error {
				ids := args
				if len(ids) == 0 {
					records, err := store.List(cmd.Context())
					if err != nil {
						return err
					}
					for _, r := range records {
						ids = append(ids, r.GameID)
					}
				}

				failed := 0
				out := cmd.OutOrStdout()
				for _, id := range ids {
					hash, err := verifyGame(cmd.Context(), a, store, id)
					if err != nil {
						failed++
						fmt.Fprintf(out, "FAIL %s: %v\n", id, err)
						continue
					}
					fmt.Fprintf(out, "ok   %s %s\n", id, shortHash(hash))
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d games failed verification", failed, len(ids))
				}
				return nil
			})
		},
	}
}

func verifyGame(ctx context.Context, a *app, store storage.Store, id string) (string, error) {
	snapshot, err := store.Load(ctx, id)
	if err != nil {
		return "", err
	}
	if err := game.ValidateSerializationRoundtrip(snapshot); err != nil {
		return "", err
	}
	ctrl, err := game.Restore(snapshot, game.WithLogger(a.logger))
	if err != nil {
		return "", err
	}
	want, err := snapshot.ComputeChecksum()
	if err != nil {
		return "", err
	}
	ok, err := ctrl.Snapshot().VerifyChecksum(want)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("restored game differs from its snapshot")
	}
	return want.Hash, nil
}

func newSnapshotDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <game-id>",
		Short: "Delete a saved game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), a, func(store storage.Store) error {
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newSnapshotReplayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <dir> <game-id>",
		Short: "Step through a replay written by scenario run --replay-dir",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			replay, err := game.LoadReplayFromFile(args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "game %s, %d frames\n", replay.GameID(), replay.Len())
			for i := 0; i < replay.Len(); i++ {
				state := replay.Frame(i)
				alive := 0
				for _, p := range state.Players {
					if p.Alive {
						alive++
					}
				}
				fmt.Fprintf(out, "%3d. day %d %-11s %2d alive %4d events", i, state.Day, state.Phase, alive, len(state.Events))
				if state.Winner != "" {
					fmt.Fprintf(out, "  %s wins (%s)", state.Winner, state.WinReason)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
