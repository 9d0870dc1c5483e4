package game

import (
	"testing"
	"time"

	"github.com/clocktower/grimoire-server-go/internal/common/clock"
	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testClock = clock.Fixed{At: time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)}

// Seat describes one player of a test game.
type Seat struct {
	Player    string
	Character characters.ID
	Appears   characters.ID
	Alignment characters.Alignment
}

// GameHarness drives a Controller through a scripted game.
type GameHarness struct {
	t    *testing.T
	ctrl *Controller
}

// NewGameHarness creates a game with every seat assigned, still in Setup.
func NewGameHarness(t *testing.T, script *characters.Script, seats ...Seat) *GameHarness {
	t.Helper()
	ids := make([]string, len(seats))
	for i, s := range seats {
		ids[i] = s.Player
	}
	ctrl, err := New(script, ids,
		WithLogger(zaptest.NewLogger(t)),
		WithClock(testClock),
		WithGameID("test-game"),
	)
	require.NoError(t, err)
	for _, s := range seats {
		var opts []AssignOption
		if s.Appears != "" {
			opts = append(opts, AppearingAs(s.Appears))
		}
		if s.Alignment != "" {
			opts = append(opts, WithAlignment(s.Alignment))
		}
		require.NoError(t, ctrl.AssignCharacter(s.Player, s.Character, opts...))
	}
	return &GameHarness{t: t, ctrl: ctrl}
}

// NewStartedGame creates a game and moves it into the first night.
func NewStartedGame(t *testing.T, script *characters.Script, seats ...Seat) *GameHarness {
	t.Helper()
	h := NewGameHarness(t, script, seats...)
	h.Start()
	return h
}

func testScript(t *testing.T, ids ...characters.ID) *characters.Script {
	t.Helper()
	script, err := characters.NewScript("test", ids...)
	require.NoError(t, err)
	return script
}

func (h *GameHarness) Start() {
	h.t.Helper()
	_, err := h.ctrl.Start()
	require.NoError(h.t, err)
}

// Act submits a night action.
func (h *GameHarness) Act(player string, targets ...string) {
	h.t.Helper()
	require.NoError(h.t, h.ctrl.SubmitNightAction(player, targets))
}

// Advance moves one phase forward and fails the test on error.
func (h *GameHarness) Advance() []rules.Event {
	h.t.Helper()
	events, err := h.ctrl.AdvancePhase()
	require.NoError(h.t, err)
	return events
}

// AdvanceTo advances until the game reaches phase.
func (h *GameHarness) AdvanceTo(phase rules.Phase) {
	h.t.Helper()
	for i := 0; i < 20 && h.ctrl.Phase() != phase; i++ {
		h.Advance()
	}
	require.Equal(h.t, phase, h.ctrl.Phase())
}

// SkipDay advances from a day phase to the following night without
// nominating anyone.
func (h *GameHarness) SkipDay() {
	h.t.Helper()
	h.AdvanceTo(rules.PhaseNomination)
	h.Advance()
	require.Equal(h.t, rules.PhaseNight, h.ctrl.Phase())
}

func (h *GameHarness) Nominate(nominator, nominee string) string {
	h.t.Helper()
	handle, _, err := h.ctrl.Nominate(nominator, nominee)
	require.NoError(h.t, err)
	return handle
}

// VoteYes opens the next vote and casts a vote in favour for each voter.
func (h *GameHarness) VoteYes(handle string, voters ...string) {
	h.t.Helper()
	if h.ctrl.Phase() == rules.PhaseNomination {
		h.Advance()
	}
	require.Equal(h.t, rules.PhaseVote, h.ctrl.Phase())
	for _, v := range voters {
		_, err := h.ctrl.Vote(handle, v, true)
		require.NoError(h.t, err)
	}
}

func (h *GameHarness) Player(id string) Player {
	h.t.Helper()
	p, err := h.ctrl.state.Player(id)
	require.NoError(h.t, err)
	return *p
}

// Mark returns the current log length for use with Since.
func (h *GameHarness) Mark() int {
	return h.ctrl.state.Log.Len()
}

func (h *GameHarness) Since(mark int) []rules.Event {
	return h.ctrl.state.Log.Since(mark)
}

// AbilityEvents returns the primary events of night abilities logged after
// mark: one per firing.
func (h *GameHarness) AbilityEvents(mark int) []rules.Event {
	var out []rules.Event
	for _, e := range h.Since(mark) {
		if e.Character != "" && e.Phase.IsNight() {
			out = append(out, e)
		}
	}
	return out
}

func eventTypes(events []rules.Event) []rules.EventType {
	out := make([]rules.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func findEvent(events []rules.Event, eventType rules.EventType) (rules.Event, bool) {
	for _, e := range events {
		if e.Type == eventType {
			return e, true
		}
	}
	return rules.Event{}, false
}
