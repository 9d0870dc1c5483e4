package characters

import "github.com/clocktower/grimoire-server-go/internal/game/status"

// poisoner poisons a player until the next dusk.
type poisoner struct{}

func (poisoner) Resolve(rc ResolveContext) Effect {
	target, ok := singleTarget(rc)
	if !ok || !target.Alive {
		return NoEffect(ReasonInvalidTarget)
	}
	return Grant(target.ID, status.Effect{
		Kind:   status.KindPoisoned,
		Expiry: status.ExpiryNextDusk,
	}, true)
}

// cerenovus makes a player mad about being a character tomorrow.
type cerenovus struct{}

func (cerenovus) Resolve(rc ResolveContext) Effect {
	target, ok := singleTarget(rc)
	if !ok || !target.Alive || rc.Choice == "" {
		return NoEffect(ReasonInvalidTarget)
	}
	return Grant(target.ID, status.Effect{
		Kind:    status.KindMad,
		Subject: string(rc.Choice),
		Expiry:  status.ExpiryNextDusk,
	}, true)
}
