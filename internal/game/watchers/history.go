// Package watchers keeps game history that abilities and legality checks query.
package watchers

import (
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
)

const (
	NominationHistoryKey = "NominationHistoryWatcher"
	ExecutionHistoryKey  = "ExecutionHistoryWatcher"
	DeathsTodayKey       = "DeathsTodayWatcher"
)

// NominationHistoryWatcher counts how often each player has been nominated
// over the whole game.
type NominationHistoryWatcher struct {
	*rules.BaseWatcher
	nominated  map[string]int
	nominators map[string]int
}

// NewNominationHistoryWatcher creates a nomination history watcher.
func NewNominationHistoryWatcher() *NominationHistoryWatcher {
	return &NominationHistoryWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame, NominationHistoryKey),
		nominated:   make(map[string]int),
		nominators:  make(map[string]int),
	}
}

// Watch implements the Watcher interface.
func (w *NominationHistoryWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventNomination || event.PlayerID == "" {
		return
	}
	w.nominated[event.PlayerID]++
	if event.SourceID != "" {
		w.nominators[event.SourceID]++
	}
}

// Reset clears the watcher's state.
func (w *NominationHistoryWatcher) Reset() {
	w.nominated = make(map[string]int)
	w.nominators = make(map[string]int)
}

// TimesNominated returns how many times the player has been nominated.
func (w *NominationHistoryWatcher) TimesNominated(playerID string) int {
	return w.nominated[playerID]
}

// NominationsMade returns how many nominations the player has made.
func (w *NominationHistoryWatcher) NominationsMade(playerID string) int {
	return w.nominators[playerID]
}

// ExecutionHistoryWatcher remembers who was executed on each day.
type ExecutionHistoryWatcher struct {
	*rules.BaseWatcher
	byDay map[int]string
}

// NewExecutionHistoryWatcher creates an execution history watcher.
func NewExecutionHistoryWatcher() *ExecutionHistoryWatcher {
	return &ExecutionHistoryWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame, ExecutionHistoryKey),
		byDay:       make(map[int]string),
	}
}

// Watch implements the Watcher interface.
func (w *ExecutionHistoryWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventExecution || event.PlayerID == "" {
		return
	}
	w.byDay[event.Day] = event.PlayerID
}

// Reset clears the watcher's state.
func (w *ExecutionHistoryWatcher) Reset() {
	w.byDay = make(map[int]string)
}

// ExecutedOn returns the player executed on the given day.
func (w *ExecutionHistoryWatcher) ExecutedOn(day int) (string, bool) {
	id, ok := w.byDay[day]
	return id, ok
}

// DeathsTodayWatcher lists the players who died since the last dawn, in
// order of death. Night deaths are announced at dawn and are not included.
type DeathsTodayWatcher struct {
	*rules.BaseWatcher
	died []string
}

// NewDeathsTodayWatcher creates a day scoped deaths watcher.
func NewDeathsTodayWatcher() *DeathsTodayWatcher {
	return &DeathsTodayWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeDay, DeathsTodayKey),
	}
}

// Watch implements the Watcher interface.
func (w *DeathsTodayWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventDeath || event.PlayerID == "" {
		return
	}
	w.died = append(w.died, event.PlayerID)
}

// Reset clears the watcher's state.
func (w *DeathsTodayWatcher) Reset() {
	w.died = nil
}

// Died returns a copy of today's deaths.
func (w *DeathsTodayWatcher) Died() []string {
	return append([]string(nil), w.died...)
}

// History bundles the watchers every game installs.
type History struct {
	Nominations *NominationHistoryWatcher
	Executions  *ExecutionHistoryWatcher
	DeathsToday *DeathsTodayWatcher
}

// Install registers the standard history watchers and returns them.
func Install(registry *rules.WatcherRegistry) *History {
	h := &History{
		Nominations: NewNominationHistoryWatcher(),
		Executions:  NewExecutionHistoryWatcher(),
		DeathsToday: NewDeathsTodayWatcher(),
	}
	registry.Add(h.Nominations)
	registry.Add(h.Executions)
	registry.Add(h.DeathsToday)
	return h
}
