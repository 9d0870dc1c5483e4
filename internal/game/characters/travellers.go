package characters

import "github.com/clocktower/grimoire-server-go/internal/game/status"

// bureaucrat makes another player's vote count three times tomorrow.
type bureaucrat struct{}

func (bureaucrat) Resolve(rc ResolveContext) Effect {
	target, ok := otherLivingTarget(rc)
	if !ok {
		return NoEffect(ReasonInvalidTarget)
	}
	return SetVoteWeight(target.ID, 3, status.ExpiryNextDusk)
}

// thief makes another player's vote count negatively tomorrow.
type thief struct{}

func (thief) Resolve(rc ResolveContext) Effect {
	target, ok := otherLivingTarget(rc)
	if !ok {
		return NoEffect(ReasonInvalidTarget)
	}
	return SetVoteWeight(target.ID, -1, status.ExpiryNextDusk)
}
