package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clocktower/grimoire-server-go/internal/common/clock"
	"github.com/clocktower/grimoire-server-go/internal/game"
	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
)

// maxAdvances bounds an "advance to" step so a typo cannot loop forever.
const maxAdvances = 50

// StepError reports the step at which a scenario diverged.
type StepError struct {
	Index int
	Do    string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Do, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ErrExpectation is wrapped by every failed check.
var ErrExpectation = errors.New("expectation failed")

// Result is the outcome of a completed run.
type Result struct {
	Controller *game.Controller
	Steps      int
	Events     []rules.Event
}

// Runner plays scenarios.
type Runner struct {
	scriptsDir string
	logger     *zap.Logger
	clock      clock.Clock
	gameOpts   []game.Option
	overrides  func(*characters.Script)
	observers  []func(*game.Controller)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithScriptsDir sets where named scripts are looked up.
func WithScriptsDir(dir string) RunnerOption {
	return func(r *Runner) { r.scriptsDir = dir }
}

func WithLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithClock(c clock.Clock) RunnerOption {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithGameOptions passes extra options to every controller the runner creates.
func WithGameOptions(opts ...game.Option) RunnerOption {
	return func(r *Runner) { r.gameOpts = append(r.gameOpts, opts...) }
}

// WithScriptOverrides adjusts each script's rules before the game is created.
func WithScriptOverrides(fn func(*characters.Script)) RunnerOption {
	return func(r *Runner) { r.overrides = fn }
}

// WithObserver is called with every controller before the game starts.
func WithObserver(fn func(*game.Controller)) RunnerOption {
	return func(r *Runner) { r.observers = append(r.observers, fn) }
}

// NewRunner creates a runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: zap.NewNop(),
		clock:  &clock.DefaultClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run is the state of one scenario run.
type run struct {
	ctrl    *game.Controller
	handles map[string]string // nominee -> latest nomination handle
	logger  *zap.Logger
}

// Run plays the scenario to its end. It stops at the first step that fails
// or diverges from an expectation and returns a *StepError.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Result, error) {
	script, err := s.resolveScript(r.scriptsDir)
	if err != nil {
		return nil, err
	}
	if r.overrides != nil {
		r.overrides(script)
		if err := script.Validate(); err != nil {
			return nil, err
		}
	}

	players := make([]string, len(s.Seats))
	for i, seat := range s.Seats {
		players[i] = seat.Player
	}
	logger := r.logger.With(zap.String("scenario", s.Name))
	opts := append([]game.Option{game.WithLogger(logger), game.WithClock(r.clock)}, r.gameOpts...)
	ctrl, err := game.New(script, players, opts...)
	if err != nil {
		return nil, err
	}
	for _, seat := range s.Seats {
		var assign []game.AssignOption
		if seat.Appears != "" {
			assign = append(assign, game.AppearingAs(seat.Appears))
		}
		if seat.Alignment != "" {
			assign = append(assign, game.WithAlignment(seat.Alignment))
		}
		if err := ctrl.AssignCharacter(seat.Player, seat.Character, assign...); err != nil {
			return nil, fmt.Errorf("seat %s: %w", seat.Player, err)
		}
	}
	for _, observe := range r.observers {
		observe(ctrl)
	}
	if _, err := ctrl.Start(); err != nil {
		return nil, err
	}

	st := &run{ctrl: ctrl, handles: make(map[string]string), logger: logger}
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := st.step(step); err != nil {
			return nil, &StepError{Index: i + 1, Do: step.Do, Err: err}
		}
	}
	if s.Expect != nil {
		if err := st.check(*s.Expect); err != nil {
			return nil, &StepError{Index: len(s.Steps) + 1, Do: "final", Err: err}
		}
	}

	events := ctrl.Events()
	logger.Info("scenario finished",
		zap.Int("steps", len(s.Steps)),
		zap.Int("events", len(events)),
		zap.String("phase", ctrl.Phase().String()),
	)
	return &Result{Controller: ctrl, Steps: len(s.Steps), Events: events}, nil
}

// step executes one step and checks its error code and logged events.
func (st *run) step(step Step) error {
	events, err := st.do(step)
	st.logger.Debug("scenario step",
		zap.String("do", step.Do),
		zap.String("player", step.Player),
		zap.Int("events", len(events)),
		zap.Error(err),
	)
	switch {
	case step.Error != "":
		if err == nil {
			return fmt.Errorf("%w: wanted %s, step succeeded", ErrExpectation, step.Error)
		}
		if code := rules.CodeOf(err); code != step.Error {
			return fmt.Errorf("%w: wanted %s, got %s (%v)", ErrExpectation, step.Error, code, err)
		}
	case err != nil:
		return err
	}

	for _, want := range step.Logged {
		if !containsType(events, want) {
			return fmt.Errorf("%w: no %s event in %v", ErrExpectation, want, typesOf(events))
		}
	}
	if step.Expect != nil && step.Do != StepExpect {
		return st.check(*step.Expect)
	}
	return nil
}

func (st *run) do(step Step) ([]rules.Event, error) {
	c := st.ctrl
	switch step.Do {
	case StepAct:
		var opts []game.ActionOption
		if step.Choice != "" {
			opts = append(opts, game.WithChoice(step.Choice))
		}
		return nil, c.SubmitNightAction(step.Player, step.Targets, opts...)

	case StepAdvance:
		return st.advance(step)

	case StepNominate:
		handle, events, err := c.Nominate(step.Player, step.Nominee)
		if err == nil {
			st.handles[step.Nominee] = handle
		}
		return events, err

	case StepVote:
		handle, ok := st.handles[step.Nominee]
		if !ok {
			return nil, fmt.Errorf("%s was never nominated", step.Nominee)
		}
		var all []rules.Event
		for _, voters := range []struct {
			ids     []string
			inFavor bool
		}{{step.Yes, true}, {step.No, false}} {
			for _, voter := range voters.ids {
				events, err := c.Vote(handle, voter, voters.inFavor)
				if err != nil {
					return all, err
				}
				all = append(all, events...)
			}
		}
		return all, nil

	case StepKill:
		return c.Kill(step.Player)

	case StepRevive:
		return c.Revive(step.Player)

	case StepApplyStatus, StepRemoveStatus:
		effect, err := step.Status.Effect()
		if err != nil {
			return nil, err
		}
		if step.Do == StepApplyStatus {
			return c.ApplyStatus(step.Player, effect)
		}
		return c.RemoveStatus(step.Player, effect)

	case StepChangeCharacter:
		return c.ChangeCharacter(step.Player, step.Character)

	case StepChangeAlignment:
		return c.ChangeAlignment(step.Player, step.Alignment)

	case StepExpect:
		return nil, st.check(*step.Expect)
	}
	return nil, fmt.Errorf("unknown step %q", step.Do)
}

func (st *run) advance(step Step) ([]rules.Event, error) {
	var all []rules.Event
	if step.To != "" {
		target, err := rules.ParsePhase(step.To)
		if err != nil {
			return nil, err
		}
		for i := 0; st.ctrl.Phase() != target; i++ {
			if i == maxAdvances {
				return all, fmt.Errorf("phase %s not reached after %d advances", target, maxAdvances)
			}
			events, err := st.ctrl.AdvancePhase()
			if err != nil {
				return all, err
			}
			all = append(all, events...)
		}
		return all, nil
	}

	times := step.Times
	if times == 0 {
		times = 1
	}
	for i := 0; i < times; i++ {
		events, err := st.ctrl.AdvancePhase()
		if err != nil {
			return all, err
		}
		all = append(all, events...)
	}
	return all, nil
}

// check compares the game with an expectation.
func (st *run) check(want Expectation) error {
	ps := st.ctrl.PublicState()
	var problems []string

	if want.Phase != "" {
		phase, err := rules.ParsePhase(want.Phase)
		if err != nil {
			return err
		}
		if ps.Phase != phase.String() {
			problems = append(problems, fmt.Sprintf("phase %s, want %s", ps.Phase, phase))
		}
	}
	if want.Day != nil && ps.Day != *want.Day {
		problems = append(problems, fmt.Sprintf("day %d, want %d", ps.Day, *want.Day))
	}

	alive := make(map[string]bool, len(ps.Players))
	for _, p := range ps.Players {
		alive[p.ID] = p.Alive
	}
	for _, id := range want.Alive {
		if a, ok := alive[id]; !ok || !a {
			problems = append(problems, id+" should be alive")
		}
	}
	for _, id := range want.Dead {
		if a, ok := alive[id]; !ok || a {
			problems = append(problems, id+" should be dead")
		}
	}

	if want.Winner != "" && ps.Winner != want.Winner {
		problems = append(problems, fmt.Sprintf("winner %q, want %q", ps.Winner, want.Winner))
	}
	if want.Reason != "" && ps.WinReason != want.Reason {
		problems = append(problems, fmt.Sprintf("win reason %q, want %q", ps.WinReason, want.Reason))
	}
	if want.Events > 0 {
		if n := len(st.ctrl.Events()); n != want.Events {
			problems = append(problems, fmt.Sprintf("%d events logged, want %d", n, want.Events))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrExpectation, strings.Join(problems, "; "))
	}
	return nil
}

func containsType(events []rules.Event, t rules.EventType) bool {
	for _, e := range events {
		if e.Type == t {
			return true
		}
	}
	return false
}

func typesOf(events []rules.Event) []rules.EventType {
	out := make([]rules.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
