package characters

import (
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
	"github.com/clocktower/grimoire-server-go/internal/game/status"
)

// imp kills a player each night after the first. Choosing themself passes the
// demon to a minion.
type imp struct{}

func (imp) Resolve(rc ResolveContext) Effect {
	target, ok := singleTarget(rc)
	if !ok || !target.Alive {
		return NoEffect(ReasonInvalidTarget)
	}
	return Kill(target.ID, CauseDemon)
}

// lleech poisons a host on the first night and kills on later nights.
type lleech struct{}

func (lleech) Resolve(rc ResolveContext) Effect {
	if rc.Event.Trigger == rules.TriggerFirstNight {
		host, ok := otherLivingTarget(rc)
		if !ok {
			return NoEffect(ReasonInvalidTarget)
		}
		return Grant(host.ID, status.Effect{
			Kind:   status.KindPoisoned,
			Expiry: status.ExpiryUntilRemoved,
		}, true)
	}
	target, ok := singleTarget(rc)
	if !ok || !target.Alive {
		return NoEffect(ReasonInvalidTarget)
	}
	return Kill(target.ID, CauseDemon)
}
