// Package voting runs the nominations and votes of a single day.
package voting

import (
	"fmt"

	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
)

// Status is the lifecycle state of a nomination.
type Status string

const (
	StatusPending Status = "pending"
	StatusVoting  Status = "voting"
	StatusClosed  Status = "closed"
)

// Outcome summarises what a resolved vote did.
type Outcome string

const (
	OutcomeFails    Outcome = "fails"
	OutcomeExecutes Outcome = "executes"
	OutcomeOnBlock  Outcome = "on_block"
	OutcomeTied     Outcome = "tied"
)

// Ballot is one recorded vote.
type Ballot struct {
	Voter   string `json:"voter"`
	InFavor bool   `json:"in_favor"`
	Weight  int    `json:"weight"`
	Ghost   bool   `json:"ghost"` // the voter spent their ghost vote
}

// Tally is the weighted count of a nomination.
type Tally struct {
	For       int     `json:"for"`
	Against   int     `json:"against"`
	Alive     int     `json:"alive"`
	Threshold int     `json:"threshold"` // votes in favour needed
	Meets     bool    `json:"meets"`
	Outcome   Outcome `json:"outcome"`
}

// Nomination is one accusation and the votes cast on it.
type Nomination struct {
	Handle    string   `json:"handle"`
	Day       int      `json:"day"`
	Order     int      `json:"order"`
	Nominator string   `json:"nominator"`
	Nominee   string   `json:"nominee"`
	Status    Status   `json:"status"`
	Ballots   []Ballot `json:"ballots"`
	Result    *Tally   `json:"result"`
}

func (n *Nomination) clone() Nomination {
	out := *n
	out.Ballots = append([]Ballot(nil), n.Ballots...)
	if n.Result != nil {
		result := *n.Result
		out.Result = &result
	}
	return out
}

// Threshold returns the votes in favour needed with alive living players:
// strictly more than half.
func Threshold(alive int) int {
	return alive/2 + 1
}

// Options configure an Engine.
type Options struct {
	Mode                      characters.ExecutionMode
	OneNominationPerNominator bool
}

// State is the persisted form of an Engine.
type State struct {
	Day          int          `json:"day"`
	Nominations  []Nomination `json:"nominations"`
	Current      string       `json:"current"`
	BlockNominee string       `json:"block_nominee"`
	BlockVotes   int          `json:"block_votes"`
}

// Engine tracks the nominations of the current day.
type Engine struct {
	opts         Options
	day          int
	nominations  []*Nomination
	current      string
	blockNominee string
	blockVotes   int
}

// NewEngine creates an engine for the given day.
func NewEngine(day int, opts Options) *Engine {
	if opts.Mode == "" {
		opts.Mode = characters.ExecutionImmediate
	}
	return &Engine{opts: opts, day: day}
}

// RestoreEngine rebuilds an engine from persisted state.
func RestoreEngine(state State, opts Options) *Engine {
	e := NewEngine(state.Day, opts)
	for i := range state.Nominations {
		n := state.Nominations[i].clone()
		e.nominations = append(e.nominations, &n)
	}
	e.current = state.Current
	e.blockNominee = state.BlockNominee
	e.blockVotes = state.BlockVotes
	return e
}

// Export returns a deep copy of the engine state.
func (e *Engine) Export() State {
	return State{
		Day:          e.day,
		Nominations:  e.Nominations(),
		Current:      e.current,
		BlockNominee: e.blockNominee,
		BlockVotes:   e.blockVotes,
	}
}

// Reset clears every nomination and starts a new day.
func (e *Engine) Reset(day int) {
	e.day = day
	e.nominations = nil
	e.current = ""
	e.blockNominee = ""
	e.blockVotes = 0
}

// Empty reports whether no nomination was made today.
func (e *Engine) Empty() bool {
	return len(e.nominations) == 0
}

// Open records a nomination. The nominee may be nominated once per day and,
// when the rule is on, each nominator may nominate once per day.
func (e *Engine) Open(handle, nominator, nominee string) (Nomination, error) {
	for _, n := range e.nominations {
		if n.Nominee == nominee {
			return Nomination{}, fmt.Errorf("%w: %s on day %d", rules.ErrAlreadyNominated, nominee, e.day)
		}
		if e.opts.OneNominationPerNominator && n.Nominator == nominator {
			return Nomination{}, fmt.Errorf("%w: %s on day %d", rules.ErrNominatorExhausted, nominator, e.day)
		}
	}
	n := &Nomination{
		Handle:    handle,
		Day:       e.day,
		Order:     len(e.nominations) + 1,
		Nominator: nominator,
		Nominee:   nominee,
		Status:    StatusPending,
	}
	e.nominations = append(e.nominations, n)
	return n.clone(), nil
}

// Withdraw drops a pending nomination that never reached a vote.
func (e *Engine) Withdraw(handle string) error {
	n, err := e.lookup(handle)
	if err != nil {
		return err
	}
	if n.Status != StatusPending {
		return fmt.Errorf("%w: %s is %s", rules.ErrNominationClosed, handle, n.Status)
	}
	n.Status = StatusClosed
	n.Result = &Tally{Outcome: OutcomeFails}
	return nil
}

// NextPending returns the earliest nomination still waiting for its vote.
func (e *Engine) NextPending() (Nomination, bool) {
	for _, n := range e.nominations {
		if n.Status == StatusPending {
			return n.clone(), true
		}
	}
	return Nomination{}, false
}

// Begin opens voting on a pending nomination.
func (e *Engine) Begin(handle string) error {
	if e.current != "" {
		return fmt.Errorf("%w: vote on %s still open", rules.ErrIllegalTransition, e.current)
	}
	n, err := e.lookup(handle)
	if err != nil {
		return err
	}
	if n.Status != StatusPending {
		return fmt.Errorf("%w: %s is %s", rules.ErrNominationClosed, handle, n.Status)
	}
	n.Status = StatusVoting
	e.current = handle
	return nil
}

// Current returns the nomination being voted on.
func (e *Engine) Current() (Nomination, bool) {
	if e.current == "" {
		return Nomination{}, false
	}
	n, err := e.lookup(e.current)
	if err != nil {
		return Nomination{}, false
	}
	return n.clone(), true
}

// Get returns a nomination by handle.
func (e *Engine) Get(handle string) (Nomination, bool) {
	n, err := e.lookup(handle)
	if err != nil {
		return Nomination{}, false
	}
	return n.clone(), true
}

// Nominations returns copies of today's nominations in order.
func (e *Engine) Nominations() []Nomination {
	out := make([]Nomination, len(e.nominations))
	for i, n := range e.nominations {
		out[i] = n.clone()
	}
	return out
}

// TimesNominated counts today's nominations of a player.
func (e *Engine) TimesNominated(player string) int {
	count := 0
	for _, n := range e.nominations {
		if n.Nominee == player {
			count++
		}
	}
	return count
}

// Cast records a ballot on the nomination being voted on.
func (e *Engine) Cast(handle string, ballot Ballot) error {
	n, err := e.lookup(handle)
	if err != nil {
		return err
	}
	if n.Status != StatusVoting || e.current != handle {
		return fmt.Errorf("%w: %s is %s", rules.ErrNominationClosed, handle, n.Status)
	}
	for _, b := range n.Ballots {
		if b.Voter == ballot.Voter {
			return fmt.Errorf("%w: %s on %s", rules.ErrAlreadyVoted, ballot.Voter, handle)
		}
	}
	n.Ballots = append(n.Ballots, ballot)
	return nil
}

// VotedInFavor reports whether voter has a ballot in favour on the nomination.
func (e *Engine) VotedInFavor(handle, voter string) bool {
	n, err := e.lookup(handle)
	if err != nil {
		return false
	}
	for _, b := range n.Ballots {
		if b.Voter == voter {
			return b.InFavor
		}
	}
	return false
}

// Tally counts the weighted ballots of a nomination against the threshold
// for the given number of living players.
func (e *Engine) Tally(handle string, alive int) (Tally, error) {
	n, err := e.lookup(handle)
	if err != nil {
		return Tally{}, err
	}
	if n.Result != nil {
		return *n.Result, nil
	}
	return count(n, alive), nil
}

func count(n *Nomination, alive int) Tally {
	t := Tally{Alive: alive, Threshold: Threshold(alive), Outcome: OutcomeFails}
	for _, b := range n.Ballots {
		if b.InFavor {
			t.For += b.Weight
		} else {
			t.Against++
		}
	}
	t.Meets = t.For >= t.Threshold
	return t
}

// Resolve closes voting on the nomination and decides its outcome. Later
// ballots fail with ErrNominationClosed.
func (e *Engine) Resolve(handle string, alive int) (Tally, error) {
	n, err := e.lookup(handle)
	if err != nil {
		return Tally{}, err
	}
	if n.Status == StatusClosed {
		return Tally{}, fmt.Errorf("%w: %s already resolved", rules.ErrNominationClosed, handle)
	}
	t := count(n, alive)
	if t.Meets {
		t.Outcome = e.decide(n.Nominee, t.For)
	}
	n.Status = StatusClosed
	n.Result = &t
	if e.current == handle {
		e.current = ""
	}
	return t, nil
}

func (e *Engine) decide(nominee string, votes int) Outcome {
	if e.opts.Mode != characters.ExecutionBlock {
		return OutcomeExecutes
	}
	switch {
	case votes > e.blockVotes:
		e.blockNominee = nominee
		e.blockVotes = votes
		return OutcomeOnBlock
	case votes == e.blockVotes:
		e.blockNominee = ""
		return OutcomeTied
	default:
		return OutcomeFails
	}
}

// Block returns the player currently about to be executed in block mode.
func (e *Engine) Block() (string, bool) {
	return e.blockNominee, e.blockNominee != ""
}

func (e *Engine) lookup(handle string) (*Nomination, error) {
	for _, n := range e.nominations {
		if n.Handle == handle {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown nomination %q", rules.ErrNominationClosed, handle)
}
