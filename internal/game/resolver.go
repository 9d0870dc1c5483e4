package game

import (
	"fmt"
	"strconv"

	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
	"github.com/clocktower/grimoire-server-go/internal/game/status"
	"go.uber.org/zap"
)

// Resolution is the outcome of one ability firing.
type Resolution struct {
	PlayerID  string
	Character characters.ID
	Trigger   rules.Trigger
	Effect    characters.Effect
	Impaired  bool
	// Event is the primary event the firing produced. Day hooks that do
	// nothing produce no event.
	Event *rules.Event
}

// source identifies who caused a mutation.
type source struct {
	PlayerID  string
	Character characters.ID
}

var storyteller = source{PlayerID: status.SourceStoryteller}

// Resolver fires ability hooks and commits their declared effects one at a
// time, so every ability observes the mutations of the ones before it.
type Resolver struct {
	state    *GameState
	registry *characters.Registry
	view     characters.View
	emit     func(rules.Event) rules.Event
	logger   *zap.Logger
}

// ResolveNight fires every night hook in night order. Within one character,
// players act in seat order. Resolution stops as soon as the game is over.
func (r *Resolver) ResolveNight(first bool) ([]Resolution, error) {
	trigger := rules.NightTrigger(first)
	var out []Resolution
	for _, id := range r.registry.NightOrder(first) {
		for _, p := range r.state.Players {
			if r.state.GameOver() {
				return out, nil
			}
			if !p.Alive || p.ActingCharacter() != id {
				continue
			}
			action := r.state.NightActions[p.ID]
			res, err := r.fire(p, id, characters.TriggerContext{Trigger: trigger}, action.Targets, action.Choice)
			if err != nil {
				return out, err
			}
			out = append(out, res)
			r.CheckWin()
		}
	}
	return out, nil
}

// ResolveTrigger fires a day hook for every living holder, in character id
// order then seat order. An executed player still hears their own
// execution hook.
func (r *Resolver) ResolveTrigger(tc characters.TriggerContext) ([]Resolution, error) {
	var out []Resolution
	for _, id := range r.registry.WithHook(tc.Trigger) {
		for _, p := range r.state.Players {
			if r.state.GameOver() {
				return out, nil
			}
			if p.ActingCharacter() != id {
				continue
			}
			if !p.Alive && !(tc.Trigger == rules.TriggerExecution && p.ID == tc.Executed) {
				continue
			}
			res, err := r.fire(p, id, tc, nil, "")
			if err != nil {
				return out, err
			}
			out = append(out, res)
			r.CheckWin()
		}
	}
	return out, nil
}

func (r *Resolver) fire(p *Player, id characters.ID, tc characters.TriggerContext, targets []string, choice characters.ID) (Resolution, error) {
	res := Resolution{PlayerID: p.ID, Character: id, Trigger: tc.Trigger}
	if r.state.Statuses.IsImpaired(p.ID) {
		res.Impaired = true
		res.Effect = characters.NoEffect(characters.ReasonImpaired)
	} else {
		ability, err := characters.NewAbility(id)
		if err != nil {
			return res, err
		}
		res.Effect = ability.Resolve(characters.ResolveContext{
			View:    r.view,
			Self:    playerInfo(p),
			Targets: targets,
			Choice:  choice,
			Event:   tc,
		})
	}

	night := tc.Trigger == rules.TriggerFirstNight || tc.Trigger == rules.TriggerOtherNight
	evt, err := r.commit(source{PlayerID: p.ID, Character: id}, res.Effect, night)
	if err != nil {
		return res, err
	}
	res.Event = evt

	r.logger.Debug("ability resolved",
		zap.String("game_id", r.state.GameID),
		zap.String("player_id", p.ID),
		zap.String("character", string(id)),
		zap.String("trigger", tc.Trigger.String()),
		zap.String("effect", string(res.Effect.Kind)),
		zap.Bool("impaired", res.Impaired),
	)
	return res, nil
}

// commit applies one declared effect and returns its primary event.
func (r *Resolver) commit(src source, effect characters.Effect, night bool) (*rules.Event, error) {
	var (
		evt rules.Event
		err error
	)
	switch effect.Kind {
	case characters.EffectNone:
		if !night {
			return nil, nil
		}
		evt = r.emit(noOpEvent(src, effect.Reason))
	case characters.EffectDeath:
		evt, err = r.kill(effect.Target, effect.Cause, src)
	case characters.EffectProtect, characters.EffectStatus:
		evt, err = r.grant(src, effect)
	case characters.EffectVoteWeight:
		if effect.Ballot {
			return nil, nil
		}
		evt, err = r.grant(src, effect)
	case characters.EffectReveal:
		evt, err = r.reveal(src, effect)
	case characters.EffectVictory:
		evt, _ = r.declare(effect.Winner, "character:"+string(src.Character))
	default:
		err = fmt.Errorf("unsupported effect %q from %s", effect.Kind, src.Character)
	}
	if err != nil {
		return nil, err
	}
	return &evt, nil
}

func noOpEvent(src source, reason string) rules.Event {
	evt := rules.NewStorytellerEvent(rules.EventAbilityNoOp, src.PlayerID, src.PlayerID).
		WithAudit(rules.MetaReason, reason)
	evt.Character = string(src.Character)
	return evt
}

func (r *Resolver) grant(src source, effect characters.Effect) (rules.Event, error) {
	if _, err := r.state.Player(effect.Target); err != nil {
		return rules.Event{}, err
	}
	st := effect.Status
	st.Source = src.PlayerID
	st.AppliedDay = r.state.Day()

	var replaced []string
	if effect.Exclusive {
		replaced = r.clearFromSource(st, effect.Target)
	}
	refreshed := r.state.Statuses.Apply(effect.Target, st)

	eventType := rules.EventStatusApplied
	switch st.Kind {
	case status.KindProtected:
		eventType = rules.EventProtectionGranted
	case status.KindVoteWeight:
		eventType = rules.EventVoteWeightChanged
	}
	evt := rules.NewStorytellerEvent(eventType, effect.Target, src.PlayerID)
	if st.Kind == status.KindMad {
		// the target is told what they must be mad about
		evt = rules.NewPrivateEvent(eventType, effect.Target, src.PlayerID)
	}
	evt = evt.With(rules.MetaStatus, string(st.Kind)).
		With(rules.MetaExpiry, string(st.Expiry))
	if st.Subject != "" {
		evt = evt.With(rules.MetaSubject, st.Subject)
	}
	if st.Kind == status.KindVoteWeight {
		evt = evt.With(rules.MetaWeight, strconv.Itoa(st.Weight))
	}
	evt = evt.WithAudit(rules.MetaRefreshed, strconv.FormatBool(refreshed))
	for i, id := range replaced {
		evt = evt.WithAudit(rules.MetaReplaced+"_"+strconv.Itoa(i+1), id)
	}
	evt.Character = string(src.Character)
	return r.emit(evt), nil
}

// clearFromSource removes the same status from every other player the source
// holds it on.
func (r *Resolver) clearFromSource(st status.Effect, keep string) []string {
	var removed []string
	if st.Kind == status.KindCustom {
		for _, holder := range r.state.Statuses.FlagHolders(st.Subject, st.Source) {
			if holder != keep && r.state.Statuses.RemoveFlag(holder, st.Subject, st.Source) {
				removed = append(removed, holder)
			}
		}
		return removed
	}
	for _, holder := range r.state.Statuses.Holders(st.Kind, st.Source) {
		if holder == keep {
			continue
		}
		if _, ok := r.state.Statuses.Remove(holder, st.Kind, st.Source, true); ok {
			removed = append(removed, holder)
		}
	}
	return removed
}

func (r *Resolver) reveal(src source, effect characters.Effect) (rules.Event, error) {
	if _, err := r.state.Player(effect.Target); err != nil {
		return rules.Event{}, err
	}
	evt := rules.NewPrivateEvent(rules.EventReveal, effect.Target, src.PlayerID)
	if effect.Public {
		evt = rules.NewEvent(rules.EventReveal, effect.Target, src.PlayerID)
	}
	for k, v := range effect.Info {
		evt = evt.With(k, v)
	}
	evt.Character = string(src.Character)
	return r.emit(evt), nil
}

// declare ends the game. Only the first declaration counts.
func (r *Resolver) declare(winner characters.Alignment, reason string) (rules.Event, bool) {
	if r.state.GameOver() {
		return rules.Event{}, false
	}
	r.state.Winner = winner
	r.state.WinReason = reason
	for _, p := range r.state.Players {
		r.state.Revealed[p.ID] = true
	}
	evt := rules.NewEvent(rules.EventWin, "", "").
		With(rules.MetaAlignment, string(winner)).
		With(rules.MetaReason, reason)
	r.logger.Info("game won",
		zap.String("game_id", r.state.GameID),
		zap.String("winner", string(winner)),
		zap.String("reason", reason),
	)
	return r.emit(evt), true
}

// CheckWin declares a winner when no demon lives or when only two
// non-travellers remain with a demon among them.
func (r *Resolver) CheckWin() (rules.Event, bool) {
	if r.state.GameOver() {
		return rules.Event{}, false
	}
	if len(r.state.LivingDemons()) == 0 {
		return r.declare(characters.Good, "demon_dead")
	}
	if r.state.AliveResidents() <= 2 {
		return r.declare(characters.Evil, "two_players_remain")
	}
	return rules.Event{}, false
}
