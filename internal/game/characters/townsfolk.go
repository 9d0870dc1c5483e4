package characters

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clocktower/grimoire-server-go/internal/game/status"
)

// Reveal payload keys.
const (
	InfoPlayers        = "players"
	InfoCharacter      = "character"
	InfoPairs          = "pairs"
	InfoEvilNeighbours = "evil_neighbours"
	InfoDemon          = "demon"
	InfoStatement1     = "statement_1"
	InfoStatement2     = "statement_2"
)

// washerwoman learns that one of two players is a particular townsfolk.
type washerwoman struct{}

func (washerwoman) Resolve(rc ResolveContext) Effect {
	players := rc.View.Players()
	n := len(players)
	start := seatIndex(players, rc.Self.ID)
	for i := 1; i < n; i++ {
		candidate := players[(start+i)%n]
		if candidate.Type != Townsfolk {
			continue
		}
		decoy := players[(start+i+1)%n]
		if decoy.ID == rc.Self.ID {
			decoy = players[(start+i+2)%n]
		}
		if decoy.ID == candidate.ID || decoy.ID == rc.Self.ID {
			return NoEffect(ReasonNothingToLearn)
		}
		return Reveal(rc.Self.ID, map[string]string{
			InfoPlayers:   joinBySeat(candidate, decoy),
			InfoCharacter: string(candidate.Character),
		})
	}
	return NoEffect(ReasonNothingToLearn)
}

// chef learns how many pairs of evil players sit next to each other.
type chef struct{}

func (chef) Resolve(rc ResolveContext) Effect {
	players := rc.View.Players()
	pairs := 0
	if len(players) > 2 {
		for i, p := range players {
			next := players[(i+1)%len(players)]
			if p.Alignment == Evil && next.Alignment == Evil {
				pairs++
			}
		}
	}
	return Reveal(rc.Self.ID, map[string]string{InfoPairs: strconv.Itoa(pairs)})
}

// empath learns how many of their living neighbours are evil.
type empath struct{}

func (empath) Resolve(rc ResolveContext) Effect {
	count := 0
	if left, right, ok := rc.View.AliveNeighbours(rc.Self.ID); ok {
		if left.Alignment == Evil {
			count++
		}
		if right.ID != left.ID && right.Alignment == Evil {
			count++
		}
	}
	return Reveal(rc.Self.ID, map[string]string{InfoEvilNeighbours: strconv.Itoa(count)})
}

// fortuneTeller chooses two players and learns whether either is the demon.
type fortuneTeller struct{}

func (fortuneTeller) Resolve(rc ResolveContext) Effect {
	if len(rc.Targets) != 2 || rc.Targets[0] == rc.Targets[1] {
		return NoEffect(ReasonNoAction)
	}
	first, ok1 := rc.View.Player(rc.Targets[0])
	second, ok2 := rc.View.Player(rc.Targets[1])
	if !ok1 || !ok2 {
		return NoEffect(ReasonInvalidTarget)
	}
	answer := "no"
	for _, p := range []PlayerInfo{first, second} {
		if p.Type == Demon || rc.View.HasFlag(p.ID, status.FlagRedHerring) {
			answer = "yes"
		}
	}
	return Reveal(rc.Self.ID, map[string]string{
		InfoPlayers: joinBySeat(first, second),
		InfoDemon:   answer,
	})
}

// undertaker learns which character was executed today.
type undertaker struct{}

func (undertaker) Resolve(rc ResolveContext) Effect {
	executed, ok := rc.View.ExecutedOn(rc.View.Day())
	if !ok {
		return NoEffect(ReasonNothingToLearn)
	}
	return Reveal(rc.Self.ID, map[string]string{
		InfoPlayers:   executed.ID,
		InfoCharacter: string(executed.Character),
	})
}

// monk protects another player from the demon tonight.
type monk struct{}

func (monk) Resolve(rc ResolveContext) Effect {
	target, ok := otherLivingTarget(rc)
	if !ok {
		return NoEffect(ReasonInvalidTarget)
	}
	return Protect(target.ID, status.ExpiryNextDawn)
}

// virgin executes a townsfolk who nominates them for the first time.
type virgin struct{}

func (virgin) Resolve(rc ResolveContext) Effect {
	if rc.Event.Nominee != rc.Self.ID || rc.View.TimesNominated(rc.Self.ID) != 1 {
		return NoEffect(ReasonNoAction)
	}
	nominator, ok := rc.View.Player(rc.Event.Nominator)
	if !ok || nominator.Type != Townsfolk {
		return NoEffect(ReasonNoAction)
	}
	return Kill(nominator.ID, CauseExecuted)
}

// savant learns two statements each day: one true, one false.
type savant struct{}

func (savant) Resolve(rc ResolveContext) Effect {
	evil := 0
	for _, p := range rc.View.Players() {
		if p.Alive && p.Alignment == Evil {
			evil++
		}
	}
	truth := fmt.Sprintf("%d evil players are alive", evil)
	lie := fmt.Sprintf("%d evil players are alive", evil+1)
	if rc.View.Day()%2 == 1 {
		truth, lie = lie, truth
	}
	return Reveal(rc.Self.ID, map[string]string{
		InfoStatement1: truth,
		InfoStatement2: lie,
	})
}

// passive characters act only through engine-side rules.
type passive struct{}

func (passive) Resolve(ResolveContext) Effect {
	return NoEffect(ReasonNoAction)
}

func seatIndex(players []PlayerInfo, id string) int {
	for i, p := range players {
		if p.ID == id {
			return i
		}
	}
	return 0
}

func joinBySeat(a, b PlayerInfo) string {
	if b.Seat < a.Seat {
		a, b = b, a
	}
	return strings.Join([]string{a.ID, b.ID}, ",")
}
