package characters

import (
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
	"github.com/clocktower/grimoire-server-go/internal/game/status"
)

// butler picks a master each night and may only vote if the master votes.
type butler struct{}

func (butler) Resolve(rc ResolveContext) Effect {
	if rc.Event.Trigger == rules.TriggerVoteCast {
		return butler{}.constrainVote(rc)
	}
	target, ok := otherLivingTarget(rc)
	if !ok {
		return NoEffect(ReasonInvalidTarget)
	}
	return Grant(target.ID, status.Effect{
		Kind:    status.KindCustom,
		Subject: status.FlagButlerMaster,
		Expiry:  status.ExpiryUntilRemoved,
	}, true)
}

func (butler) constrainVote(rc ResolveContext) Effect {
	if rc.Event.Voter != rc.Self.ID || !rc.Event.InFavor {
		return NoEffect(ReasonNoAction)
	}
	masters := rc.View.FlagHolders(status.FlagButlerMaster, rc.Self.ID)
	if len(masters) == 0 {
		return NoEffect(ReasonNoAction)
	}
	if rc.View.VotedInFavor(rc.Event.Nomination, masters[0]) {
		return NoEffect(ReasonNoAction)
	}
	return BallotWeight(rc.Self.ID, 0)
}

// saint loses the game for good when executed.
type saint struct{}

func (saint) Resolve(rc ResolveContext) Effect {
	if rc.Event.Executed != rc.Self.ID {
		return NoEffect(ReasonNoAction)
	}
	return Victory(Evil)
}
