// Package game runs a single game of social deduction: setup, the night and
// day cycle, ability resolution, nominations and votes.
package game

import (
	"fmt"
	"sync"

	"github.com/clocktower/grimoire-server-go/internal/common/clock"
	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
	"github.com/clocktower/grimoire-server-go/internal/game/status"
	"github.com/clocktower/grimoire-server-go/internal/game/watchers"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Controller owns one game and serialises every operation on it. Each public
// operation either applies fully or leaves the game unchanged.
type Controller struct {
	mu sync.Mutex

	logger   *zap.Logger
	clock    clock.Clock
	replay   *Replay
	state    *GameState
	registry *characters.Registry
	bus      *rules.EventBus

	watchers *rules.WatcherRegistry
	history  *watchers.History
	resolver *Resolver

	pending []rules.Event
	// outbox holds committed batches until publish delivers them.
	outbox      [][]rules.Event
	dispatching bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the clock used to timestamp events.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithReplay records a snapshot after every operation that changes phase.
func WithReplay(replay *Replay) Option {
	return func(c *Controller) {
		c.replay = replay
	}
}

// WithGameID fixes the game id instead of generating one.
func WithGameID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.state.GameID = id
		}
	}
}

// New creates a game in Setup for the given script and seating order.
func New(script *characters.Script, playerIDs []string, opts ...Option) (*Controller, error) {
	registry, err := characters.NewRegistry(script)
	if err != nil {
		return nil, err
	}
	if len(playerIDs) == 0 {
		return nil, fmt.Errorf("%w: no players", rules.ErrInvalidSetup)
	}
	seen := make(map[string]bool, len(playerIDs))
	for _, id := range playerIDs {
		if id == "" || id == status.SourceScript || id == status.SourceStoryteller {
			return nil, fmt.Errorf("%w: invalid player id %q", rules.ErrInvalidSetup, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate player %q", rules.ErrInvalidSetup, id)
		}
		seen[id] = true
	}

	c := newController(newGameState(uuid.New().String(), script, playerIDs), registry)
	c.apply(opts)
	c.logger.Info("game created",
		zap.String("game_id", c.state.GameID),
		zap.String("script", script.Name),
		zap.Int("players", len(playerIDs)),
	)
	return c, nil
}

func newController(state *GameState, registry *characters.Registry) *Controller {
	c := &Controller{
		logger:   zap.NewNop(),
		clock:    &clock.DefaultClock{},
		state:    state,
		registry: registry,
		bus:      rules.NewEventBus(),
		watchers: rules.NewWatcherRegistry(),
	}
	c.history = watchers.Install(c.watchers)
	c.resolver = &Resolver{
		state:    state,
		registry: registry,
		view:     &stateView{state: state, history: c.history},
		emit:     c.emit,
		logger:   c.logger,
	}
	return c
}

func (c *Controller) apply(opts []Option) {
	for _, opt := range opts {
		opt(c)
	}
	c.resolver.logger = c.logger
}

// ID returns the game id.
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.GameID
}

// Subscribe registers a listener for committed events. Listeners run after
// the operation returns its lock and may query or drive the controller; events
// of an operation started from a listener arrive once that listener returns.
func (c *Controller) Subscribe(listener rules.Listener) int {
	return c.bus.Subscribe(listener)
}

// Unsubscribe removes a listener.
func (c *Controller) Unsubscribe(handle int) {
	c.bus.Unsubscribe(handle)
}

// emit stamps an event, appends it to the log and notifies watchers. Bus
// subscribers only see it once the operation commits.
func (c *Controller) emit(evt rules.Event) rules.Event {
	evt.Day = c.state.Day()
	evt.Phase = c.state.Phase()
	evt.Timestamp = c.clock.Now()
	evt = c.state.Log.Append(evt)
	c.watchers.Notify(evt)
	c.pending = append(c.pending, evt)
	return evt
}

// transact runs op atomically. On error the state is restored and a single
// error event is returned.
func (c *Controller) transact(op string, fn func() error) ([]rules.Event, error) {
	bookmark := c.state.clone()
	startPhase := c.state.Phase()
	c.pending = nil

	if err := fn(); err != nil {
		*c.state = *bookmark
		c.rebuildWatchers()
		c.pending = nil
		c.logger.Debug("operation rejected",
			zap.String("game_id", c.state.GameID),
			zap.String("op", op),
			zap.String("code", string(rules.CodeOf(err))),
			zap.Error(err),
		)
		return []rules.Event{rules.NewErrorEvent(err)}, err
	}

	events := c.pending
	c.pending = nil
	if len(events) > 0 {
		c.outbox = append(c.outbox, events)
	}
	if c.replay != nil && c.state.Phase() != startPhase {
		if err := c.replay.Record(c.snapshot()); err != nil {
			c.logger.Warn("replay frame dropped", zap.Error(err))
		}
	}
	return events, nil
}

// publish delivers committed batches to subscribers in commit order. It runs
// after the operation has released the lock, so listeners may call back into
// the controller. Batches committed while a delivery is under way, including
// by a listener, are delivered by the caller that is already delivering.
func (c *Controller) publish() {
	c.mu.Lock()
	if c.dispatching {
		c.mu.Unlock()
		return
	}
	c.dispatching = true
	for len(c.outbox) > 0 {
		batch := c.outbox[0]
		c.outbox = c.outbox[1:]
		c.mu.Unlock()
		c.bus.PublishBatch(batch)
		c.mu.Lock()
	}
	c.dispatching = false
	c.mu.Unlock()
}

// rebuildWatchers replays the log into fresh watchers.
func (c *Controller) rebuildWatchers() {
	c.watchers.Rebuild(c.state.Log.All())
}

func (c *Controller) player(id string) (*Player, error) {
	return c.state.Player(id)
}

func (c *Controller) requirePhase(allowed ...rules.Phase) error {
	current := c.state.Phase()
	if current == rules.PhaseGameOver {
		return rules.ErrGameOver
	}
	for _, p := range allowed {
		if current == p {
			return nil
		}
	}
	return fmt.Errorf("%w: not allowed during %s", rules.ErrIllegalTransition, current)
}

// AssignOption adjusts a character assignment.
type AssignOption func(*Player)

// AppearingAs makes a drunk believe they are the given townsfolk.
func AppearingAs(id characters.ID) AssignOption {
	return func(p *Player) {
		p.Apparent = id
	}
}

// WithAlignment overrides the character's default alignment.
func WithAlignment(a characters.Alignment) AssignOption {
	return func(p *Player) {
		p.Alignment = a
	}
}

// AssignCharacter gives a player their character during Setup.
func (c *Controller) AssignCharacter(playerID string, id characters.ID, opts ...AssignOption) error {
	defer c.publish()
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.transact("assign", func() error {
		if err := c.requirePhase(rules.PhaseSetup); err != nil {
			return err
		}
		p, err := c.player(playerID)
		if err != nil {
			return err
		}
		def, err := c.registry.Lookup(id)
		if err != nil {
			return err
		}
		assigned := *p
		assigned.Character = id
		assigned.Apparent = ""
		assigned.Alignment = def.Alignment
		assigned.Traveller = def.Type == characters.Traveller
		for _, opt := range opts {
			opt(&assigned)
		}
		if assigned.Apparent != "" {
			if id != characters.Drunk {
				return fmt.Errorf("%w: only the drunk may appear as another character", rules.ErrInvalidSetup)
			}
			apparent, err := c.registry.Lookup(assigned.Apparent)
			if err != nil {
				return err
			}
			if apparent.Type != characters.Townsfolk {
				return fmt.Errorf("%w: drunk must appear as a townsfolk, not %s", rules.ErrInvalidSetup, apparent.ID)
			}
		}
		if _, err := characters.ParseAlignment(string(assigned.Alignment)); err != nil {
			return fmt.Errorf("%w: %v", rules.ErrInvalidSetup, err)
		}
		*p = assigned
		return nil
	})
	return err
}

// Start validates the roster and moves the game into the first night.
func (c *Controller) Start() ([]rules.Event, error) {
	defer c.publish()
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transact("start", func() error {
		if err := c.requirePhase(rules.PhaseSetup); err != nil {
			return err
		}
		if err := c.validateRoster(); err != nil {
			return err
		}
		c.emit(rules.NewEvent(rules.EventGameStarted, "", "").
			With(rules.MetaAlive, fmt.Sprint(c.state.AliveCount())))
		for _, p := range c.state.Players {
			if p.Character != characters.Drunk {
				continue
			}
			drunk := status.Effect{
				Kind:   status.KindDrunk,
				Source: status.SourceScript,
				Expiry: status.ExpiryPermanent,
			}
			c.state.Statuses.Apply(p.ID, drunk)
			c.emit(rules.NewStorytellerEvent(rules.EventStatusApplied, p.ID, status.SourceScript).
				With(rules.MetaStatus, string(drunk.Kind)).
				With(rules.MetaExpiry, string(drunk.Expiry)).
				WithAudit(rules.MetaCharacter, string(p.Apparent)))
		}
		if err := c.transition(rules.PhaseFirstNight); err != nil {
			return err
		}
		c.logger.Info("game started",
			zap.String("game_id", c.state.GameID),
			zap.Int("players", len(c.state.Players)),
		)
		return nil
	})
}

func (c *Controller) validateRoster() error {
	residents := 0
	for _, p := range c.state.Players {
		if p.Character == "" {
			return fmt.Errorf("%w: %s has no character", rules.ErrInvalidSetup, p.ID)
		}
		if !c.state.Script.Contains(p.Character) {
			return fmt.Errorf("%w: %s is not on the script", rules.ErrInvalidSetup, p.Character)
		}
		if !p.Traveller {
			residents++
		}
	}
	limits := c.state.Script.Rules
	if residents < limits.MinPlayers || residents > limits.MaxPlayers {
		return fmt.Errorf("%w: %d players, script allows %d to %d",
			rules.ErrInvalidSetup, residents, limits.MinPlayers, limits.MaxPlayers)
	}
	switch demons := c.state.LivingDemons(); len(demons) {
	case 0:
		return fmt.Errorf("%w: no demon assigned", rules.ErrInvalidSetup)
	case 1:
	default:
		return fmt.Errorf("%w: %d demons assigned", rules.ErrInvalidSetup, len(demons))
	}
	return nil
}

// transition moves the phase tracker and logs the change.
func (c *Controller) transition(to rules.Phase) error {
	from := c.state.Phase()
	if err := c.state.Phases.Transition(to); err != nil {
		return err
	}
	c.emit(rules.NewEvent(rules.EventPhaseChanged, "", "").
		With(rules.MetaFrom, from.String()).
		With(rules.MetaTo, to.String()))
	c.logger.Info("phase changed",
		zap.String("game_id", c.state.GameID),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("day", c.state.Day()),
	)
	return nil
}

// ActionOption adjusts a night action.
type ActionOption func(*NightAction)

// WithChoice names a character alongside the chosen players.
func WithChoice(id characters.ID) ActionOption {
	return func(a *NightAction) {
		a.Choice = id
	}
}

// SubmitNightAction records a player's choice for tonight. A later
// submission replaces an earlier one.
func (c *Controller) SubmitNightAction(playerID string, targets []string, opts ...ActionOption) error {
	defer c.publish()
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.transact("night_action", func() error {
		if err := c.requirePhase(rules.PhaseFirstNight, rules.PhaseNight); err != nil {
			return err
		}
		p, err := c.player(playerID)
		if err != nil {
			return err
		}
		if !p.Alive {
			return fmt.Errorf("%w: %s is dead", rules.ErrNotEligible, p.ID)
		}
		def, err := c.registry.Lookup(p.ActingCharacter())
		if err != nil {
			return err
		}
		if !def.WakesAt(c.state.Phase() == rules.PhaseFirstNight) {
			return fmt.Errorf("%w: %s does not wake tonight", rules.ErrNotEligible, def.ID)
		}
		if len(targets) != def.Targets {
			return fmt.Errorf("%w: %s chooses %d players, got %d", rules.ErrInvalidTarget, def.ID, def.Targets, len(targets))
		}
		for _, id := range targets {
			if _, err := c.player(id); err != nil {
				return err
			}
		}
		action := NightAction{Targets: append([]string(nil), targets...)}
		for _, opt := range opts {
			opt(&action)
		}
		if def.TakesChoice {
			if _, err := c.registry.Lookup(action.Choice); err != nil {
				return err
			}
		} else if action.Choice != "" {
			return fmt.Errorf("%w: %s does not choose a character", rules.ErrInvalidTarget, def.ID)
		}
		c.state.NightActions[p.ID] = action
		return nil
	})
	return err
}

// Phase returns the current phase.
func (c *Controller) Phase() rules.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Phase()
}

// Day returns the current day number.
func (c *Controller) Day() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Day()
}

// Winner returns the winning alignment once the game is over.
func (c *Controller) Winner() (characters.Alignment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Winner, c.state.GameOver()
}

// Events returns the full log, storyteller detail included.
func (c *Controller) Events() []rules.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Log.All()
}

// PublicEvents returns what the whole table has seen.
func (c *Controller) PublicEvents() []rules.Event {
	return c.EventsFor("")
}

// EventsFor returns the events a player may see: public ones plus their own
// private ones.
func (c *Controller) EventsFor(playerID string) []rules.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	visible := c.state.Log.Filter(func(e rules.Event) bool { return e.VisibleTo(playerID) })
	for i := range visible {
		visible[i] = visible[i].Public()
	}
	return visible
}
