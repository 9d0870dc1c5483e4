package game

import (
	"fmt"

	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
	"github.com/clocktower/grimoire-server-go/internal/game/status"
	"github.com/clocktower/grimoire-server-go/internal/game/voting"
)

// Player is one seat at the table.
type Player struct {
	ID         string               `json:"id"`
	Seat       int                  `json:"seat"`
	Character  characters.ID        `json:"character"`
	Apparent   characters.ID        `json:"apparent"` // what a drunk believes they are
	Alignment  characters.Alignment `json:"alignment"`
	Alive      bool                 `json:"alive"`
	GhostVotes int                  `json:"ghost_votes"`
	Traveller  bool                 `json:"traveller"`
}

// ActingCharacter is the character whose ability the player uses.
func (p *Player) ActingCharacter() characters.ID {
	if p.Apparent != "" {
		return p.Apparent
	}
	return p.Character
}

// NightAction is a player's submitted choice for tonight.
type NightAction struct {
	Targets []string      `json:"targets"`
	Choice  characters.ID `json:"choice"`
}

// GameState is the complete mutable state of one game.
type GameState struct {
	GameID           string
	Script           *characters.Script
	Phases           *rules.PhaseTracker
	Players          []*Player // seat order
	Statuses         *status.Tracker
	Voting           *voting.Engine
	Log              *rules.EventLog
	NightActions     map[string]NightAction
	PendingExecution string
	Winner           characters.Alignment
	WinReason        string
	Revealed         map[string]bool
}

func newGameState(gameID string, script *characters.Script, playerIDs []string) *GameState {
	players := make([]*Player, len(playerIDs))
	for i, id := range playerIDs {
		players[i] = &Player{ID: id, Seat: i, Alive: true}
	}
	return &GameState{
		GameID:       gameID,
		Script:       script,
		Phases:       rules.NewPhaseTracker(),
		Players:      players,
		Statuses:     status.NewTracker(),
		Voting:       voting.NewEngine(0, votingOptions(script)),
		Log:          rules.NewEventLog(),
		NightActions: make(map[string]NightAction),
		Revealed:     make(map[string]bool),
	}
}

func votingOptions(script *characters.Script) voting.Options {
	return voting.Options{
		Mode:                      script.Rules.ExecutionMode,
		OneNominationPerNominator: script.Rules.OneNominationPerNominator,
	}
}

// clone returns a deep copy used to roll back a failed operation.
func (s *GameState) clone() *GameState {
	players := make([]*Player, len(s.Players))
	for i, p := range s.Players {
		cp := *p
		players[i] = &cp
	}
	actions := make(map[string]NightAction, len(s.NightActions))
	for id, a := range s.NightActions {
		actions[id] = NightAction{Targets: append([]string(nil), a.Targets...), Choice: a.Choice}
	}
	revealed := make(map[string]bool, len(s.Revealed))
	for id, v := range s.Revealed {
		revealed[id] = v
	}
	return &GameState{
		GameID:           s.GameID,
		Script:           s.Script,
		Phases:           rules.RestorePhaseTracker(s.Phases.Current(), s.Phases.Day()),
		Players:          players,
		Statuses:         status.RestoreTracker(s.Statuses.Export()),
		Voting:           voting.RestoreEngine(s.Voting.Export(), votingOptions(s.Script)),
		Log:              rules.RestoreEventLog(s.Log.All()),
		NightActions:     actions,
		PendingExecution: s.PendingExecution,
		Winner:           s.Winner,
		WinReason:        s.WinReason,
		Revealed:         revealed,
	}
}

// Phase returns the current phase.
func (s *GameState) Phase() rules.Phase {
	return s.Phases.Current()
}

// Day returns the current day number.
func (s *GameState) Day() int {
	return s.Phases.Day()
}

// Player looks a player up by id.
func (s *GameState) Player(id string) (*Player, error) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", rules.ErrUnknownPlayer, id)
}

// AliveCount counts every living player, travellers included.
func (s *GameState) AliveCount() int {
	n := 0
	for _, p := range s.Players {
		if p.Alive {
			n++
		}
	}
	return n
}

// AliveResidents counts living players who are not travellers.
func (s *GameState) AliveResidents() int {
	n := 0
	for _, p := range s.Players {
		if p.Alive && !p.Traveller {
			n++
		}
	}
	return n
}

// LivingDemons returns the living players whose true character is a demon.
func (s *GameState) LivingDemons() []*Player {
	var out []*Player
	for _, p := range s.Players {
		if p.Alive && isType(p.Character, characters.Demon) {
			out = append(out, p)
		}
	}
	return out
}

// LivingWith returns living players holding the true character, in seat order.
func (s *GameState) LivingWith(id characters.ID) []*Player {
	var out []*Player
	for _, p := range s.Players {
		if p.Alive && p.Character == id {
			out = append(out, p)
		}
	}
	return out
}

// GameOver reports whether a winner has been declared.
func (s *GameState) GameOver() bool {
	return s.Winner != ""
}

func isType(id characters.ID, t characters.Type) bool {
	def, err := characters.Lookup(id)
	return err == nil && def.Type == t
}
