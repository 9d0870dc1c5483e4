package rules

import (
	"sync"
	"time"
)

// EventType indicates the category of a game event.
type EventType string

const (
	// Lifecycle events
	EventGameStarted  EventType = "GAME_STARTED"
	EventPhaseChanged EventType = "PHASE_CHANGED"
	EventWin          EventType = "WIN"
	EventError        EventType = "ERROR"

	// Life and death
	EventDeath          EventType = "DEATH"
	EventDeathPrevented EventType = "DEATH_PREVENTED"
	EventRevive         EventType = "REVIVE"

	// Ability outcomes
	EventReveal            EventType = "REVEAL"
	EventStatusApplied     EventType = "STATUS_APPLIED"
	EventStatusRemoved     EventType = "STATUS_REMOVED"
	EventStatusExpired     EventType = "STATUS_EXPIRED"
	EventProtectionGranted EventType = "PROTECTION_GRANTED"
	EventVoteWeightChanged EventType = "VOTE_WEIGHT_CHANGED"
	EventAbilityNoOp       EventType = "ABILITY_NO_OP"
	EventCharacterChanged  EventType = "CHARACTER_CHANGED"
	EventAlignmentChanged  EventType = "ALIGNMENT_CHANGED"

	// Day events
	EventNomination  EventType = "NOMINATION"
	EventVoteCast    EventType = "VOTE_CAST"
	EventVoteTallied EventType = "VOTE_TALLIED"
	EventExecution   EventType = "EXECUTION"
)

// Visibility controls who may observe an event.
type Visibility string

const (
	// VisibilityPublic events are announced to every player.
	VisibilityPublic Visibility = "public"
	// VisibilityPrivate events are shown only to the event's PlayerID.
	VisibilityPrivate Visibility = "private"
	// VisibilityStoryteller events are part of the audit trail only.
	VisibilityStoryteller Visibility = "storyteller"
)

// Metadata keys shared by engine and watchers.
const (
	MetaCause      = "cause"
	MetaSource     = "source"
	MetaReason     = "reason"
	MetaStatus     = "status"
	MetaExpiry     = "expiry"
	MetaSubject    = "subject"
	MetaWeight     = "weight"
	MetaInFavor    = "in_favor"
	MetaNomination = "nomination"
	MetaVotes      = "votes"
	MetaThreshold  = "threshold"
	MetaAlive      = "alive"
	MetaOutcome    = "outcome"
	MetaCharacter  = "character"
	MetaPrevious   = "previous"
	MetaAlignment  = "alignment"
	MetaFrom       = "from"
	MetaTo         = "to"
	MetaTrigger    = "trigger"
	MetaCode       = "code"
	MetaMessage    = "message"
	MetaRefreshed  = "refreshed"
	MetaReplaced   = "replaced"
)

// Event represents a state change recorded in the game log.
type Event struct {
	Seq        int               `json:"seq"`
	Type       EventType         `json:"type"`
	Day        int               `json:"day"`
	Phase      Phase             `json:"phase"`
	PlayerID   string            `json:"player_id"` // player the event is about
	SourceID   string            `json:"source_id"` // acting player, if any
	Character  string            `json:"character"` // acting character, if any
	Visibility Visibility        `json:"visibility"`
	Metadata   map[string]string `json:"metadata"`
	Audit      map[string]string `json:"audit"` // storyteller-only detail
	Timestamp  time.Time         `json:"timestamp"`
}

// NewEvent creates a new public event with common fields populated.
func NewEvent(eventType EventType, playerID, sourceID string) Event {
	return Event{
		Type:       eventType,
		PlayerID:   playerID,
		SourceID:   sourceID,
		Visibility: VisibilityPublic,
		Metadata:   make(map[string]string),
		Audit:      make(map[string]string),
	}
}

// NewPrivateEvent creates an event visible only to playerID.
func NewPrivateEvent(eventType EventType, playerID, sourceID string) Event {
	evt := NewEvent(eventType, playerID, sourceID)
	evt.Visibility = VisibilityPrivate
	return evt
}

// NewStorytellerEvent creates an audit-only event.
func NewStorytellerEvent(eventType EventType, playerID, sourceID string) Event {
	evt := NewEvent(eventType, playerID, sourceID)
	evt.Visibility = VisibilityStoryteller
	return evt
}

// NewErrorEvent wraps a rejected operation for the driver. Error events are
// returned to the caller and never appended to the log.
func NewErrorEvent(err error) Event {
	evt := NewEvent(EventError, "", "")
	evt.Metadata[MetaCode] = string(CodeOf(err))
	evt.Metadata[MetaMessage] = err.Error()
	return evt
}

// With returns a copy of the event with a metadata key set. The receiver's
// metadata is left untouched.
func (e Event) With(key, value string) Event {
	e.Metadata = withKey(e.Metadata, key, value)
	return e
}

// WithAudit returns a copy of the event with a storyteller-only key set.
func (e Event) WithAudit(key, value string) Event {
	e.Audit = withKey(e.Audit, key, value)
	return e
}

func withKey(m map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = value
	return out
}

// Clone returns a copy that shares no maps with e.
func (e Event) Clone() Event {
	e.Metadata = copyMap(e.Metadata)
	e.Audit = copyMap(e.Audit)
	return e
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Public returns the event as seen by the table: audit detail and the acting
// character are removed.
func (e Event) Public() Event {
	out := e
	out.Audit = nil
	out.Character = ""
	out.Metadata = make(map[string]string, len(e.Metadata))
	for k, v := range e.Metadata {
		out.Metadata[k] = v
	}
	return out
}

// VisibleTo reports whether playerID may observe the event.
// An empty playerID stands for the public table.
func (e Event) VisibleTo(playerID string) bool {
	switch e.Visibility {
	case VisibilityPublic:
		return true
	case VisibilityPrivate:
		return playerID != "" && e.PlayerID == playerID
	default:
		return false
	}
}

// EventLog is the append-only record of everything that happened in a game.
type EventLog struct {
	events []Event
}

// NewEventLog creates an empty log.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// RestoreEventLog rebuilds a log from persisted events.
func RestoreEventLog(events []Event) *EventLog {
	return &EventLog{events: cloneEvents(events)}
}

// Append assigns the next sequence number and records a copy of the event.
func (l *EventLog) Append(event Event) Event {
	event.Seq = len(l.events) + 1
	l.events = append(l.events, event.Clone())
	return event
}

// Len returns the number of recorded events.
func (l *EventLog) Len() int {
	return len(l.events)
}

// All returns a copy of every recorded event. Callers may modify the result
// without touching the log.
func (l *EventLog) All() []Event {
	return cloneEvents(l.events)
}

func cloneEvents(events []Event) []Event {
	if events == nil {
		return nil
	}
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out
}

// Since returns the events recorded after the given length mark.
func (l *EventLog) Since(mark int) []Event {
	if mark < 0 {
		mark = 0
	}
	if mark >= len(l.events) {
		return nil
	}
	return cloneEvents(l.events[mark:])
}

// Filter returns the events matching keep, in log order.
func (l *EventLog) Filter(keep func(Event) bool) []Event {
	var out []Event
	for _, e := range l.events {
		if keep(e) {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
// Listeners run in handle order so replays observe the same sequence. They
// are called without the bus lock held and may subscribe or unsubscribe.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	calls := make([]func(Event), 0, len(bus.listeners)+len(bus.typedListeners[event.Type]))
	for handle := 0; handle < bus.nextHandle; handle++ {
		if listener, ok := bus.listeners[handle]; ok {
			calls = append(calls, listener)
		}
	}
	for _, listener := range bus.typedListeners[event.Type] {
		calls = append(calls, listener.Callback)
	}
	bus.mu.RUnlock()

	for _, call := range calls {
		call(event)
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}
