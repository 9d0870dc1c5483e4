package game

import (
	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
	"github.com/clocktower/grimoire-server-go/internal/game/status"
	"go.uber.org/zap"
)

// Reasons recorded when a death does not happen.
const (
	preventedAlreadyDead = "already_dead"
	preventedProtected   = "protected"
	preventedSoldier     = "soldier"
	preventedHostAlive   = "host_alive"
)

// Reasons recorded when a player's character changes.
const (
	changeStarPass     = "star_pass"
	changeScarletWoman = "scarlet_woman"
	changeStoryteller  = "storyteller"
)

// kill runs the death pipeline for target and returns the primary event:
// either the death or the reason it was prevented. Demon succession and
// linked deaths follow as separate events.
func (r *Resolver) kill(targetID, cause string, src source) (rules.Event, error) {
	target, err := r.state.Player(targetID)
	if err != nil {
		return rules.Event{}, err
	}
	if cause == characters.CauseExecuted {
		r.emit(rules.NewEvent(rules.EventExecution, target.ID, "").
			WithAudit(rules.MetaSource, src.PlayerID))
	}
	if !target.Alive {
		return r.emit(preventedEvent(target.ID, cause, src, preventedAlreadyDead)), nil
	}
	if reason, safe := r.survives(target, cause); safe {
		return r.emit(preventedEvent(target.ID, cause, src, reason)), nil
	}

	residentsBefore := r.state.AliveResidents()
	target.Alive = false
	target.GhostVotes = 1

	evt := rules.NewEvent(rules.EventDeath, target.ID, "").
		WithAudit(rules.MetaCause, cause).
		WithAudit(rules.MetaSource, src.PlayerID)
	if cause == characters.CauseExecuted {
		evt = evt.With(rules.MetaCause, cause)
	}
	evt.Character = string(src.Character)
	evt = r.emit(evt)

	r.logger.Info("player died",
		zap.String("game_id", r.state.GameID),
		zap.String("player_id", target.ID),
		zap.String("cause", cause),
	)

	if err := r.afterDeath(target, cause, src, residentsBefore); err != nil {
		return evt, err
	}
	return evt, nil
}

func preventedEvent(targetID, cause string, src source, reason string) rules.Event {
	evt := rules.NewStorytellerEvent(rules.EventDeathPrevented, targetID, src.PlayerID).
		WithAudit(rules.MetaCause, cause).
		WithAudit(rules.MetaReason, reason)
	evt.Character = string(src.Character)
	return evt
}

// survives reports whether a passive keeps the target alive.
func (r *Resolver) survives(target *Player, cause string) (string, bool) {
	if cause == characters.CauseStoryteller {
		return "", false
	}
	impaired := r.state.Statuses.IsImpaired(target.ID)
	if target.Character == characters.Lleech && !impaired {
		if host, ok := r.lleechHost(target.ID); ok && host.Alive {
			return preventedHostAlive, true
		}
	}
	if cause != characters.CauseDemon {
		return "", false
	}
	if r.state.Statuses.Has(target.ID, status.KindProtected) {
		return preventedProtected, true
	}
	if target.Character == characters.Soldier && !impaired {
		return preventedSoldier, true
	}
	return "", false
}

func (r *Resolver) afterDeath(dead *Player, cause string, src source, residentsBefore int) error {
	if isType(dead.Character, characters.Demon) {
		if cause == characters.CauseDemon && src.PlayerID == dead.ID {
			r.starPass(dead)
		} else {
			r.scarletWoman(dead, residentsBefore)
		}
	}

	// a lleech dies with its host
	for _, leech := range r.state.LivingWith(characters.Lleech) {
		if host, ok := r.lleechHost(leech.ID); ok && host.ID == dead.ID {
			if _, err := r.kill(leech.ID, characters.CauseAbility, source{PlayerID: leech.ID}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Resolver) lleechHost(leechID string) (*Player, bool) {
	for _, id := range r.state.Statuses.Holders(status.KindPoisoned, leechID) {
		if id == leechID {
			continue
		}
		if host, err := r.state.Player(id); err == nil {
			return host, true
		}
	}
	return nil, false
}

// starPass hands the demon to the scarlet woman, or to the first living
// minion by seat, after the demon kills themself.
func (r *Resolver) starPass(old *Player) {
	var heir *Player
	if women := r.state.LivingWith(characters.ScarletWoman); len(women) > 0 {
		heir = women[0]
	} else {
		for _, p := range r.state.Players {
			if p.Alive && isType(p.Character, characters.Minion) {
				heir = p
				break
			}
		}
	}
	if heir == nil {
		return
	}
	r.becomeCharacter(heir, old.Character, changeStarPass)
}

// scarletWoman takes over a dead demon while five or more players were alive.
func (r *Resolver) scarletWoman(old *Player, residentsBefore int) {
	if residentsBefore < 5 {
		return
	}
	for _, sw := range r.state.LivingWith(characters.ScarletWoman) {
		if r.state.Statuses.IsImpaired(sw.ID) {
			continue
		}
		r.becomeCharacter(sw, old.Character, changeScarletWoman)
		return
	}
}

// becomeCharacter swaps a player's true character and tells them privately.
func (r *Resolver) becomeCharacter(p *Player, id characters.ID, reason string) rules.Event {
	previous := p.Character
	if previous == characters.Drunk {
		r.state.Statuses.Remove(p.ID, status.KindDrunk, status.SourceScript, true)
	}
	p.Character = id
	p.Apparent = ""
	if def, err := characters.Lookup(id); err == nil && def.Type != characters.Traveller {
		p.Alignment = def.Alignment
	}

	evt := r.emit(rules.NewStorytellerEvent(rules.EventCharacterChanged, p.ID, "").
		With(rules.MetaCharacter, string(id)).
		WithAudit(rules.MetaPrevious, string(previous)).
		WithAudit(rules.MetaReason, reason))
	r.emit(rules.NewPrivateEvent(rules.EventCharacterChanged, p.ID, "").
		With(rules.MetaCharacter, string(id)))

	r.logger.Info("character changed",
		zap.String("game_id", r.state.GameID),
		zap.String("player_id", p.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(id)),
		zap.String("reason", reason),
	)
	return evt
}

// Execute puts the nominee to death and fires execution hooks.
func (r *Resolver) Execute(nominee, nominator string) ([]Resolution, error) {
	if _, err := r.kill(nominee, characters.CauseExecuted, source{PlayerID: nominator}); err != nil {
		return nil, err
	}
	r.CheckWin()
	return r.ResolveTrigger(characters.TriggerContext{
		Trigger:   rules.TriggerExecution,
		Nominator: nominator,
		Nominee:   nominee,
		Executed:  nominee,
	})
}
