package game

import (
	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/clocktower/grimoire-server-go/internal/game/voting"
)

// PublicPlayer is what the table knows about one seat.
type PublicPlayer struct {
	ID        string               `json:"id"`
	Seat      int                  `json:"seat"`
	Alive     bool                 `json:"alive"`
	GhostVote bool                 `json:"ghost_vote"`
	Traveller bool                 `json:"traveller"`
	Character characters.ID        `json:"character,omitempty"`
	Alignment characters.Alignment `json:"alignment,omitempty"`
}

// PublicNomination is a nomination as seen by the table.
type PublicNomination struct {
	Handle    string        `json:"handle"`
	Nominator string        `json:"nominator"`
	Nominee   string        `json:"nominee"`
	Status    voting.Status `json:"status"`
	Raised    []string      `json:"raised"` // voters in favour, in voting order
	Result    *voting.Tally `json:"result,omitempty"`
}

// PublicState is the read-only view every player may see. Hidden characters
// and status effects never appear in it; travellers are known by character
// and everyone is revealed once the game ends.
type PublicState struct {
	GameID      string               `json:"game_id"`
	Script      string               `json:"script"`
	Phase       string               `json:"phase"`
	Day         int                  `json:"day"`
	Alive       int                  `json:"alive"`
	Threshold   int                  `json:"threshold"`
	Players     []PublicPlayer       `json:"players"`
	Nominations []PublicNomination   `json:"nominations"`
	OnTheBlock  string               `json:"on_the_block,omitempty"`
	DiedToday   []string             `json:"died_today"` // since dawn, in order
	Winner      characters.Alignment `json:"winner,omitempty"`
	WinReason   string               `json:"win_reason,omitempty"`
}

// PublicState returns the table's view of the game.
func (c *Controller) PublicState() PublicState {
	c.mu.Lock()
	defer c.mu.Unlock()

	alive := c.state.AliveCount()
	ps := PublicState{
		GameID:    c.state.GameID,
		Script:    c.state.Script.Name,
		Phase:     c.state.Phase().String(),
		Day:       c.state.Day(),
		Alive:     alive,
		Threshold: voting.Threshold(alive),
		Winner:    c.state.Winner,
		WinReason: c.state.WinReason,
		DiedToday: c.history.DeathsToday.Died(),
	}
	for _, p := range c.state.Players {
		pp := PublicPlayer{
			ID:        p.ID,
			Seat:      p.Seat,
			Alive:     p.Alive,
			GhostVote: !p.Alive && p.GhostVotes > 0,
			Traveller: p.Traveller,
		}
		if p.Traveller || c.state.Revealed[p.ID] {
			pp.Character = p.Character
		}
		if c.state.Revealed[p.ID] {
			pp.Alignment = p.Alignment
		}
		ps.Players = append(ps.Players, pp)
	}
	for _, n := range c.state.Voting.Nominations() {
		pn := PublicNomination{
			Handle:    n.Handle,
			Nominator: n.Nominator,
			Nominee:   n.Nominee,
			Status:    n.Status,
			Raised:    []string{},
			Result:    n.Result,
		}
		for _, b := range n.Ballots {
			if b.InFavor {
				pn.Raised = append(pn.Raised, b.Voter)
			}
		}
		ps.Nominations = append(ps.Nominations, pn)
	}
	if nominee, ok := c.state.Voting.Block(); ok {
		ps.OnTheBlock = nominee
	}
	return ps
}
