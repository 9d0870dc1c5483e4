package rules

import "sync"

// WatcherScope says when a watcher forgets what it has seen.
type WatcherScope int

const (
	// WatcherScopeGame watchers remember the whole game.
	WatcherScopeGame WatcherScope = iota
	// WatcherScopeDay watchers are cleared at dawn.
	WatcherScopeDay
)

func (ws WatcherScope) String() string {
	switch ws {
	case WatcherScopeGame:
		return "GAME"
	case WatcherScopeDay:
		return "DAY"
	default:
		return "UNKNOWN"
	}
}

// Watcher folds logged events into history that abilities query, such as
// whether the virgin has been nominated before or who died today.
type Watcher interface {
	// Watch sees every event appended to the game log, in order.
	Watch(event Event)
	Reset()
	Scope() WatcherScope
	// Key identifies the watcher within a registry.
	Key() string
}

// BaseWatcher carries the scope and key of a watcher.
type BaseWatcher struct {
	scope WatcherScope
	key   string
}

func NewBaseWatcher(scope WatcherScope, key string) *BaseWatcher {
	return &BaseWatcher{scope: scope, key: key}
}

func (bw *BaseWatcher) Scope() WatcherScope { return bw.scope }

func (bw *BaseWatcher) Key() string { return bw.key }

// WatcherRegistry holds the watchers of one game. Events reach watchers in
// registration order so a rebuilt registry ends in the same state.
type WatcherRegistry struct {
	mu       sync.RWMutex
	order    []string
	watchers map[string]Watcher
}

func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{watchers: make(map[string]Watcher)}
}

// Add registers a watcher. A watcher with the same key is replaced in place.
func (wr *WatcherRegistry) Add(w Watcher) {
	if w == nil {
		return
	}
	wr.mu.Lock()
	defer wr.mu.Unlock()
	if _, ok := wr.watchers[w.Key()]; !ok {
		wr.order = append(wr.order, w.Key())
	}
	wr.watchers[w.Key()] = w
}

// Get returns the watcher registered under key, or nil.
func (wr *WatcherRegistry) Get(key string) Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	return wr.watchers[key]
}

// Notify forwards an event to every watcher.
func (wr *WatcherRegistry) Notify(event Event) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, key := range wr.order {
		wr.watchers[key].Watch(event)
	}
}

// ResetScope clears the watchers of one scope.
func (wr *WatcherRegistry) ResetScope(scope WatcherScope) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, key := range wr.order {
		if w := wr.watchers[key]; w.Scope() == scope {
			w.Reset()
		}
	}
}

// Rebuild clears every watcher and feeds it the log again. Day watchers are
// cleared after each logged dawn, as they are in a live game.
func (wr *WatcherRegistry) Rebuild(log []Event) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, key := range wr.order {
		wr.watchers[key].Reset()
	}
	for _, event := range log {
		for _, key := range wr.order {
			wr.watchers[key].Watch(event)
		}
		if IsDawn(event) {
			for _, key := range wr.order {
				if w := wr.watchers[key]; w.Scope() == WatcherScopeDay {
					w.Reset()
				}
			}
		}
	}
}

// IsDawn reports whether the event is the phase change into a day.
func IsDawn(event Event) bool {
	return event.Type == EventPhaseChanged && event.Phase == PhaseDay
}
