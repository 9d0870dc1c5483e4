package characters

import (
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
	"github.com/clocktower/grimoire-server-go/internal/game/status"
)

// Death causes recorded on death events.
const (
	CauseDemon       = "demon"
	CauseExecuted    = "executed"
	CauseAbility     = "ability"
	CauseStoryteller = "storyteller"
)

// Reasons attached to abilities that resolved without an effect.
const (
	ReasonNoAction       = "no_action"
	ReasonInvalidTarget  = "invalid_target"
	ReasonNothingToLearn = "nothing_to_learn"
	ReasonImpaired       = "impaired"
)

// PlayerInfo is the read-only projection of a player handed to abilities.
type PlayerInfo struct {
	ID        string
	Seat      int
	Alive     bool
	Character ID // true character
	Apparent  ID // character the player believes they are, if different
	Type      Type
	Alignment Alignment
	Traveller bool
}

// View is the restricted game view an ability may read.
type View interface {
	Day() int
	Players() []PlayerInfo
	Player(id string) (PlayerInfo, bool)
	// AliveNeighbours returns the nearest living players on each side.
	AliveNeighbours(id string) (left, right PlayerInfo, ok bool)
	HasStatus(id string, kind status.Kind) bool
	HasFlag(id, flag string) bool
	StatusHolders(kind status.Kind, source string) []string
	FlagHolders(flag, source string) []string
	// ExecutedOn returns the player executed on the given day, if any.
	ExecutedOn(day int) (PlayerInfo, bool)
	TimesNominated(id string) int
	VotedInFavor(nomination, voter string) bool
}

// TriggerContext carries the day event that fired a hook.
type TriggerContext struct {
	Trigger    rules.Trigger
	Nomination string
	Nominator  string
	Nominee    string
	Voter      string
	InFavor    bool
	Executed   string
}

// ResolveContext is everything an ability sees when it fires.
type ResolveContext struct {
	View    View
	Self    PlayerInfo
	Targets []string
	Choice  ID
	Event   TriggerContext
}

// Ability resolves a character's hook into a single declared effect. Abilities
// never mutate state; the engine commits the returned effect.
type Ability interface {
	Resolve(rc ResolveContext) Effect
}

// EffectKind enumerates the mutations an ability may request.
type EffectKind string

const (
	EffectNone       EffectKind = "none"
	EffectDeath      EffectKind = "death"
	EffectProtect    EffectKind = "protect"
	EffectStatus     EffectKind = "status"
	EffectReveal     EffectKind = "reveal"
	EffectVoteWeight EffectKind = "vote_weight"
	EffectVictory    EffectKind = "victory"
)

// Effect is the single outcome of one ability firing.
type Effect struct {
	Kind   EffectKind
	Target string
	Cause  string
	Status status.Effect
	// Exclusive removes the same kind (or flag) from this source on every
	// other player before applying.
	Exclusive bool
	// Ballot scopes a vote weight to the vote being cast instead of a status.
	Ballot bool
	Info   map[string]string
	Public bool
	Winner Alignment
	Reason string
}

// NoEffect is the deterministic "nothing happens" outcome.
func NoEffect(reason string) Effect {
	return Effect{Kind: EffectNone, Reason: reason}
}

// Kill requests the target's death.
func Kill(target, cause string) Effect {
	return Effect{Kind: EffectDeath, Target: target, Cause: cause}
}

// Protect grants protection from the demon.
func Protect(target string, expiry status.Expiry) Effect {
	return Effect{
		Kind:   EffectProtect,
		Target: target,
		Status: status.Effect{Kind: status.KindProtected, Expiry: expiry},
	}
}

// Grant applies a status effect to the target.
func Grant(target string, effect status.Effect, exclusive bool) Effect {
	return Effect{Kind: EffectStatus, Target: target, Status: effect, Exclusive: exclusive}
}

// Reveal privately gives information to a player.
func Reveal(to string, info map[string]string) Effect {
	return Effect{Kind: EffectReveal, Target: to, Info: info}
}

// SetVoteWeight changes how much the target's votes count until expiry.
func SetVoteWeight(target string, weight int, expiry status.Expiry) Effect {
	return Effect{
		Kind:   EffectVoteWeight,
		Target: target,
		Status: status.Effect{Kind: status.KindVoteWeight, Expiry: expiry, Weight: weight},
	}
}

// BallotWeight overrides the weight of the ballot being cast.
func BallotWeight(voter string, weight int) Effect {
	return Effect{
		Kind:   EffectVoteWeight,
		Target: voter,
		Ballot: true,
		Status: status.Effect{Kind: status.KindVoteWeight, Weight: weight},
	}
}

// Victory ends the game in favour of the given alignment.
func Victory(winner Alignment) Effect {
	return Effect{Kind: EffectVictory, Winner: winner}
}

// singleTarget returns the only chosen target, or false.
func singleTarget(rc ResolveContext) (PlayerInfo, bool) {
	if len(rc.Targets) != 1 {
		return PlayerInfo{}, false
	}
	return rc.View.Player(rc.Targets[0])
}

// otherLivingTarget returns the chosen target when it is alive and not self.
func otherLivingTarget(rc ResolveContext) (PlayerInfo, bool) {
	target, ok := singleTarget(rc)
	if !ok || !target.Alive || target.ID == rc.Self.ID {
		return PlayerInfo{}, false
	}
	return target, true
}
