package rules

import (
	"fmt"
	"strings"
)

// Phase represents the broad phases of a game.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseFirstNight
	PhaseDay
	PhaseNomination
	PhaseVote
	PhaseExecution
	PhaseNight
	PhaseGameOver
)

var phaseNames = map[Phase]string{
	PhaseSetup:      "SETUP",
	PhaseFirstNight: "FIRST_NIGHT",
	PhaseDay:        "DAY",
	PhaseNomination: "NOMINATION",
	PhaseVote:       "VOTE",
	PhaseExecution:  "EXECUTION",
	PhaseNight:      "NIGHT",
	PhaseGameOver:   "GAME_OVER",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// ParsePhase converts a phase name back into a Phase.
func ParsePhase(name string) (Phase, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for phase, phaseName := range phaseNames {
		if phaseName == upper {
			return phase, nil
		}
	}
	return PhaseSetup, fmt.Errorf("unknown phase %q", name)
}

// IsNight reports whether night abilities resolve when leaving this phase.
func (p Phase) IsNight() bool {
	return p == PhaseFirstNight || p == PhaseNight
}

// IsDaytime reports whether the phase belongs to the public part of a day.
func (p Phase) IsDaytime() bool {
	switch p {
	case PhaseDay, PhaseNomination, PhaseVote, PhaseExecution:
		return true
	default:
		return false
	}
}

// legalTransitions lists every edge of the phase graph. GameOver is reachable
// from any phase in which a death or an ability can end the game.
var legalTransitions = map[Phase][]Phase{
	PhaseSetup:      {PhaseFirstNight},
	PhaseFirstNight: {PhaseDay, PhaseGameOver},
	PhaseDay:        {PhaseNomination, PhaseGameOver},
	PhaseNomination: {PhaseVote, PhaseExecution, PhaseNight, PhaseGameOver},
	PhaseVote:       {PhaseNomination, PhaseExecution, PhaseNight, PhaseGameOver},
	PhaseExecution:  {PhaseNight, PhaseGameOver},
	PhaseNight:      {PhaseDay, PhaseGameOver},
	PhaseGameOver:   nil,
}

// CanTransition reports whether the phase graph has an edge from -> to.
func CanTransition(from, to Phase) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PhaseTracker tracks the current phase and the day counter.
// The day counter starts at 0 and increments at each dawn.
type PhaseTracker struct {
	phase Phase
	day   int
}

// NewPhaseTracker creates a tracker positioned at Setup, day 0.
func NewPhaseTracker() *PhaseTracker {
	return &PhaseTracker{phase: PhaseSetup}
}

// RestorePhaseTracker rebuilds a tracker from persisted values.
func RestorePhaseTracker(phase Phase, day int) *PhaseTracker {
	return &PhaseTracker{phase: phase, day: day}
}

// Current returns the phase currently in progress.
func (pt *PhaseTracker) Current() Phase {
	return pt.phase
}

// Day returns the current day number.
func (pt *PhaseTracker) Day() int {
	return pt.day
}

// Transition moves to the requested phase. Entering Day from a night
// increments the day counter.
func (pt *PhaseTracker) Transition(to Phase) error {
	if !CanTransition(pt.phase, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, pt.phase, to)
	}
	if to == PhaseDay && pt.phase.IsNight() {
		pt.day++
	}
	pt.phase = to
	return nil
}
