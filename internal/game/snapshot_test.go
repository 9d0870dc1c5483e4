package game

import (
	"testing"

	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func midGame(t *testing.T) *GameHarness {
	t.Helper()
	h := NewStartedGame(t, testScript(t, characters.Poisoner, characters.Imp, characters.Empath, characters.Chef, characters.Monk, characters.Drunk),
		Seat{Player: "ann", Character: characters.Poisoner},
		Seat{Player: "bob", Character: characters.Imp},
		Seat{Player: "cat", Character: characters.Empath},
		Seat{Player: "dan", Character: characters.Chef},
		Seat{Player: "eve", Character: characters.Drunk, Appears: characters.Monk},
		Seat{Player: "fay", Character: characters.Monk},
	)
	h.Act("ann", "cat")
	h.Advance()
	h.AdvanceTo(rules.PhaseNomination)
	handle := h.Nominate("cat", "ann")
	h.VoteYes(handle, "cat", "dan")
	return h
}

// continueGame drives the same inputs through any controller positioned where
// midGame left off.
func continueGame(t *testing.T, ctrl *Controller) {
	t.Helper()
	h := &GameHarness{t: t, ctrl: ctrl}
	current, ok := ctrl.state.Voting.Current()
	require.True(t, ok)
	_, err := ctrl.Vote(current.Handle, "eve", true)
	require.NoError(t, err)
	_, err = ctrl.Vote(current.Handle, "fay", true)
	require.NoError(t, err)
	h.AdvanceTo(rules.PhaseNight)
	h.Act("fay", "dan")
	h.Act("bob", "dan")
	h.Advance()
}

func TestSnapshotRoundTrip(t *testing.T) {
	h := midGame(t)
	snap := h.ctrl.Snapshot()

	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.Equal(t, "test-game", snap.GameID)
	assert.Equal(t, rules.PhaseVote, snap.Phase)
	assert.Equal(t, testClock.At, snap.Timestamp)
	require.NoError(t, ValidateSerializationRoundtrip(snap))

	data, err := snap.EncodeJSON()
	require.NoError(t, err)
	decoded, err := DecodeJSON(data)
	require.NoError(t, err)

	want, err := snap.ComputeChecksum()
	require.NoError(t, err)
	ok, err := decoded.VerifyChecksum(want)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRestoredGameContinuesIdentically(t *testing.T) {
	original := midGame(t)
	data, err := original.ctrl.Snapshot().SerializeToBytes()
	require.NoError(t, err)
	decoded, err := DeserializeFromBytes(data)
	require.NoError(t, err)

	restored, err := Restore(decoded, WithLogger(zaptest.NewLogger(t)), WithClock(testClock))
	require.NoError(t, err)
	assert.Equal(t, original.ctrl.Phase(), restored.Phase())
	assert.Equal(t, original.ctrl.PublicState(), restored.PublicState())

	continueGame(t, original.ctrl)
	continueGame(t, restored)

	want, err := original.ctrl.Snapshot().ComputeChecksum()
	require.NoError(t, err)
	got, err := restored.Snapshot().ComputeChecksum()
	require.NoError(t, err)
	assert.Equal(t, want.Hash, got.Hash)
	assert.True(t, restored.state.Players[3].Alive, "the monk kept the chef alive")
	assert.False(t, restored.state.Players[0].Alive)
}

func TestRestoredGameRebuildsHistory(t *testing.T) {
	original := midGame(t)
	restored, err := Restore(original.ctrl.Snapshot())
	require.NoError(t, err)

	// the restored nomination watcher still knows ann was nominated today
	_, _, err = restored.Nominate("dan", "ann")
	assert.ErrorIs(t, err, rules.ErrIllegalTransition, "voting is still open")
	_, err = restored.Vote("stale", "dan", true)
	assert.ErrorIs(t, err, rules.ErrNominationClosed)
	assert.Equal(t, 1, restored.history.Nominations.TimesNominated("ann"))
}

func TestChecksumIgnoresTimestamps(t *testing.T) {
	h := midGame(t)
	a := h.ctrl.Snapshot()
	b := h.ctrl.Snapshot()
	b.Timestamp = b.Timestamp.Add(42)
	for i := range b.Events {
		b.Events[i].Timestamp = b.Events[i].Timestamp.Add(42)
	}

	sumA, err := a.ComputeChecksum()
	require.NoError(t, err)
	sumB, err := b.ComputeChecksum()
	require.NoError(t, err)
	assert.Equal(t, sumA.Hash, sumB.Hash)

	b.Players[0].Alive = false
	sumB, err = b.ComputeChecksum()
	require.NoError(t, err)
	assert.NotEqual(t, sumA.Hash, sumB.Hash)
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	_, err := Restore(nil)
	assert.ErrorIs(t, err, rules.ErrInvalidSetup)

	snap := midGame(t).ctrl.Snapshot()
	snap.Version = SnapshotVersion + 1
	_, err = Restore(snap)
	assert.ErrorIs(t, err, rules.ErrInvalidSetup)

	_, err = DecodeJSON([]byte("{not json"))
	assert.Error(t, err)
}
