package integration

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/clocktower/grimoire-server-go/internal/backup"
	"github.com/clocktower/grimoire-server-go/internal/common/clock"
	"github.com/clocktower/grimoire-server-go/internal/game"
	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
	"github.com/clocktower/grimoire-server-go/internal/storage"
)

var testClock = clock.Fixed{At: time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)}

type seat struct {
	player    string
	character characters.ID
}

func newGame(t *testing.T, gameID string, script *characters.Script, seats ...seat) *game.Controller {
	t.Helper()
	ids := make([]string, len(seats))
	for i, s := range seats {
		ids[i] = s.player
	}
	ctrl, err := game.New(script, ids,
		game.WithGameID(gameID),
		game.WithClock(testClock),
		game.WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)
	for _, s := range seats {
		require.NoError(t, ctrl.AssignCharacter(s.player, s.character))
	}
	return ctrl
}

func advance(t *testing.T, ctrl *game.Controller, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		_, err := ctrl.AdvancePhase()
		require.NoError(t, err)
	}
}

func advanceTo(t *testing.T, ctrl *game.Controller, phase rules.Phase) {
	t.Helper()
	for i := 0; i < 20 && ctrl.Phase() != phase; i++ {
		advance(t, ctrl, 1)
	}
	require.Equal(t, phase, ctrl.Phase())
}

type storeFactory func(t *testing.T) storage.Store

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"file": func(t *testing.T) storage.Store {
			store, err := storage.NewFileStore(t.TempDir(), testClock, zaptest.NewLogger(t))
			require.NoError(t, err)
			return store
		},
		"redis": func(t *testing.T) storage.Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			store, err := storage.NewRedisStore(context.Background(), &storage.RedisConfig{
				RedisClient: client,
				Clock:       testClock,
				Logger:      zaptest.NewLogger(t),
			})
			require.NoError(t, err)
			return store
		},
	}
}

// playToSecondNight runs a first night, a day with a failed vote and queues
// actions for the second night.
func playToSecondNight(t *testing.T, ctrl *game.Controller) {
	t.Helper()
	require.NoError(t, ctrl.SubmitNightAction("dan", []string{"cat"}))
	advanceTo(t, ctrl, rules.PhaseNomination)

	handle, _, err := ctrl.Nominate("bob", "dan")
	require.NoError(t, err)
	advance(t, ctrl, 1)
	_, err = ctrl.Vote(handle, "bob", true)
	require.NoError(t, err)
	_, err = ctrl.Vote(handle, "cat", false)
	require.NoError(t, err)
	advanceTo(t, ctrl, rules.PhaseNight)

	require.NoError(t, ctrl.SubmitNightAction("dan", []string{"cat"}))
	require.NoError(t, ctrl.SubmitNightAction("eve", []string{"bob"}))
	require.NoError(t, ctrl.SubmitNightAction("ann", []string{"bob"}))
}

func TestBackedUpGameResumesIdentically(t *testing.T) {
	script, err := characters.NewScript("integration",
		characters.Imp, characters.Poisoner, characters.Monk, characters.Chef, characters.Empath)
	require.NoError(t, err)

	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			defer store.Close()

			ctrl := newGame(t, "resume-"+name, script,
				seat{"ann", characters.Imp},
				seat{"bob", characters.Chef},
				seat{"cat", characters.Empath},
				seat{"dan", characters.Poisoner},
				seat{"eve", characters.Monk},
			)
			scheduler := backup.NewScheduler(store,
				backup.WithInterval(0),
				backup.WithClock(testClock),
				backup.WithLogger(zaptest.NewLogger(t)),
			)
			scheduler.Attach(ctrl)

			_, err := ctrl.Start()
			require.NoError(t, err)
			playToSecondNight(t, ctrl)
			require.NotEmpty(t, scheduler.Pending())
			require.NoError(t, scheduler.Flush(ctx))

			records, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, "NIGHT", records[0].Phase)
			assert.Equal(t, 1, records[0].Day)

			saved, err := store.Load(ctx, ctrl.ID())
			require.NoError(t, err)
			restored, err := game.Restore(saved, game.WithClock(testClock), game.WithLogger(zaptest.NewLogger(t)))
			require.NoError(t, err)

			// the monk protects bob from the imp on both copies
			for _, c := range []*game.Controller{ctrl, restored} {
				events, err := c.AdvancePhase()
				require.NoError(t, err)
				var prevented bool
				for _, e := range events {
					if e.Type == rules.EventDeathPrevented && e.PlayerID == "bob" {
						prevented = true
					}
				}
				assert.True(t, prevented)
				assert.Equal(t, rules.PhaseDay, c.Phase())
				assert.Equal(t, 2, c.Day())
			}

			want, err := ctrl.Snapshot().ComputeChecksum()
			require.NoError(t, err)
			ok, err := restored.Snapshot().VerifyChecksum(want)
			require.NoError(t, err)
			assert.True(t, ok, "original and restored games diverged")
			assert.Equal(t, ctrl.PublicState(), restored.PublicState())
		})
	}
}

func TestNominationHistorySurvivesRestore(t *testing.T) {
	script, err := characters.NewScript("virgin",
		characters.Virgin, characters.Washerwoman, characters.Chef, characters.Imp, characters.Poisoner)
	require.NoError(t, err)
	ctx := context.Background()
	store, err := storage.NewFileStore(t.TempDir(), testClock, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctrl := newGame(t, "virgin-history", script,
		seat{"ann", characters.Virgin},
		seat{"bob", characters.Washerwoman},
		seat{"cat", characters.Imp},
		seat{"dan", characters.Poisoner},
		seat{"eve", characters.Chef},
	)
	_, err = ctrl.Start()
	require.NoError(t, err)
	advanceTo(t, ctrl, rules.PhaseNomination)

	// a minion spends the virgin's first nomination
	_, _, err = ctrl.Nominate("dan", "ann")
	require.NoError(t, err)
	assert.Equal(t, rules.PhaseNomination, ctrl.Phase())
	advanceTo(t, ctrl, rules.PhaseNight)
	advanceTo(t, ctrl, rules.PhaseDay)
	require.Equal(t, 2, ctrl.Day())

	_, err = store.Save(ctx, ctrl.Snapshot())
	require.NoError(t, err)
	saved, err := store.Load(ctx, "virgin-history")
	require.NoError(t, err)
	restored, err := game.Restore(saved, game.WithClock(testClock))
	require.NoError(t, err)

	advanceTo(t, restored, rules.PhaseNomination)
	_, events, err := restored.Nominate("bob", "ann")
	require.NoError(t, err)
	for _, e := range events {
		assert.NotEqual(t, rules.EventExecution, e.Type, "the virgin only triggers on her first nomination")
	}
	state := restored.PublicState()
	for _, p := range state.Players {
		assert.True(t, p.Alive, p.ID)
	}
	assert.Equal(t, rules.PhaseNomination, restored.Phase())
}
