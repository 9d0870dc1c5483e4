package storage

import (
	"testing"
	"time"

	"github.com/clocktower/grimoire-server-go/internal/common/clock"
	"github.com/clocktower/grimoire-server-go/internal/game"
	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/stretchr/testify/require"
)

var testClock = clock.Fixed{At: time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)}

// testSnapshot starts a small game and advances it into the first day.
func testSnapshot(t *testing.T, gameID string) *game.Snapshot {
	t.Helper()
	script, err := characters.NewScript("storage", characters.Imp, characters.Chef, characters.Empath, characters.Poisoner)
	require.NoError(t, err)

	seats := map[string]characters.ID{
		"ann": characters.Imp,
		"bob": characters.Chef,
		"cat": characters.Empath,
		"dan": characters.Poisoner,
		"eve": characters.Chef,
	}
	ctrl, err := game.New(script, []string{"ann", "bob", "cat", "dan", "eve"},
		game.WithGameID(gameID),
		game.WithClock(testClock),
	)
	require.NoError(t, err)
	for player, id := range seats {
		require.NoError(t, ctrl.AssignCharacter(player, id))
	}
	_, err = ctrl.Start()
	require.NoError(t, err)
	_, err = ctrl.AdvancePhase()
	require.NoError(t, err)
	return ctrl.Snapshot()
}
