package characters

import "github.com/clocktower/grimoire-server-go/internal/game/status"

// fakeView is a hand-built table for exercising abilities in isolation.
type fakeView struct {
	day        int
	players    []PlayerInfo
	statuses   *status.Tracker
	executed   map[int]string
	nominated  map[string]int
	votedInFor map[string]bool
}

func newFakeView(players ...PlayerInfo) *fakeView {
	for i := range players {
		players[i].Seat = i
		players[i].Alive = true
		if players[i].Type == "" {
			def, err := Lookup(players[i].Character)
			if err == nil {
				players[i].Type = def.Type
				players[i].Alignment = def.Alignment
			}
		}
	}
	return &fakeView{
		players:    players,
		statuses:   status.NewTracker(),
		executed:   make(map[int]string),
		nominated:  make(map[string]int),
		votedInFor: make(map[string]bool),
	}
}

func (v *fakeView) kill(id string) {
	for i := range v.players {
		if v.players[i].ID == id {
			v.players[i].Alive = false
		}
	}
}

func (v *fakeView) self(id string) PlayerInfo {
	p, _ := v.Player(id)
	return p
}

func (v *fakeView) Day() int              { return v.day }
func (v *fakeView) Players() []PlayerInfo { return append([]PlayerInfo(nil), v.players...) }

func (v *fakeView) Player(id string) (PlayerInfo, bool) {
	for _, p := range v.players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerInfo{}, false
}

func (v *fakeView) AliveNeighbours(id string) (PlayerInfo, PlayerInfo, bool) {
	n := len(v.players)
	idx := seatIndex(v.players, id)
	var left, right PlayerInfo
	found := false
	for i := 1; i < n; i++ {
		if p := v.players[(idx-i+n)%n]; p.Alive {
			left, found = p, true
			break
		}
	}
	for i := 1; i < n; i++ {
		if p := v.players[(idx+i)%n]; p.Alive {
			right = p
			break
		}
	}
	return left, right, found
}

func (v *fakeView) HasStatus(id string, kind status.Kind) bool { return v.statuses.Has(id, kind) }
func (v *fakeView) HasFlag(id, flag string) bool               { return v.statuses.HasFlag(id, flag) }
func (v *fakeView) StatusHolders(kind status.Kind, source string) []string {
	return v.statuses.Holders(kind, source)
}
func (v *fakeView) FlagHolders(flag, source string) []string {
	return v.statuses.FlagHolders(flag, source)
}

func (v *fakeView) ExecutedOn(day int) (PlayerInfo, bool) {
	id, ok := v.executed[day]
	if !ok {
		return PlayerInfo{}, false
	}
	return v.Player(id)
}

func (v *fakeView) TimesNominated(id string) int { return v.nominated[id] }

func (v *fakeView) VotedInFavor(nomination, voter string) bool {
	return v.votedInFor[nomination+"/"+voter]
}
