package game

import (
	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/clocktower/grimoire-server-go/internal/game/status"
	"github.com/clocktower/grimoire-server-go/internal/game/watchers"
)

// stateView is the read-only window abilities get onto the game.
type stateView struct {
	state   *GameState
	history *watchers.History
}

var _ characters.View = (*stateView)(nil)

func (v *stateView) Day() int {
	return v.state.Day()
}

func (v *stateView) Players() []characters.PlayerInfo {
	out := make([]characters.PlayerInfo, len(v.state.Players))
	for i, p := range v.state.Players {
		out[i] = playerInfo(p)
	}
	return out
}

func (v *stateView) Player(id string) (characters.PlayerInfo, bool) {
	p, err := v.state.Player(id)
	if err != nil {
		return characters.PlayerInfo{}, false
	}
	return playerInfo(p), true
}

func (v *stateView) AliveNeighbours(id string) (characters.PlayerInfo, characters.PlayerInfo, bool) {
	players := v.state.Players
	seat := -1
	for i, p := range players {
		if p.ID == id {
			seat = i
			break
		}
	}
	if seat < 0 {
		return characters.PlayerInfo{}, characters.PlayerInfo{}, false
	}
	n := len(players)
	var left, right *Player
	for step := 1; step < n && left == nil; step++ {
		if p := players[(seat-step+n)%n]; p.Alive {
			left = p
		}
	}
	for step := 1; step < n && right == nil; step++ {
		if p := players[(seat+step)%n]; p.Alive {
			right = p
		}
	}
	if left == nil || right == nil {
		return characters.PlayerInfo{}, characters.PlayerInfo{}, false
	}
	return playerInfo(left), playerInfo(right), true
}

func (v *stateView) HasStatus(id string, kind status.Kind) bool {
	return v.state.Statuses.Has(id, kind)
}

func (v *stateView) HasFlag(id, flag string) bool {
	return v.state.Statuses.HasFlag(id, flag)
}

func (v *stateView) StatusHolders(kind status.Kind, source string) []string {
	return v.state.Statuses.Holders(kind, source)
}

func (v *stateView) FlagHolders(flag, source string) []string {
	return v.state.Statuses.FlagHolders(flag, source)
}

func (v *stateView) ExecutedOn(day int) (characters.PlayerInfo, bool) {
	id, ok := v.history.Executions.ExecutedOn(day)
	if !ok {
		return characters.PlayerInfo{}, false
	}
	return v.Player(id)
}

func (v *stateView) TimesNominated(id string) int {
	return v.history.Nominations.TimesNominated(id)
}

func (v *stateView) VotedInFavor(nomination, voter string) bool {
	return v.state.Voting.VotedInFavor(nomination, voter)
}

func playerInfo(p *Player) characters.PlayerInfo {
	info := characters.PlayerInfo{
		ID:        p.ID,
		Seat:      p.Seat,
		Alive:     p.Alive,
		Character: p.Character,
		Apparent:  p.Apparent,
		Alignment: p.Alignment,
		Traveller: p.Traveller,
	}
	if def, err := characters.Lookup(p.Character); err == nil {
		info.Type = def.Type
	}
	return info
}
