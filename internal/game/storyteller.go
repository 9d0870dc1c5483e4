package game

import (
	"fmt"

	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
	"github.com/clocktower/grimoire-server-go/internal/game/status"
)

// Storyteller overrides. They bypass abilities but still go through the death
// pipeline, the win check and the event log.

func (c *Controller) requireRunning() error {
	switch c.state.Phase() {
	case rules.PhaseSetup:
		return fmt.Errorf("%w: the game has not started", rules.ErrIllegalTransition)
	case rules.PhaseGameOver:
		return rules.ErrGameOver
	default:
		return nil
	}
}

// Kill puts a player to death outside any ability.
func (c *Controller) Kill(playerID string) ([]rules.Event, error) {
	defer c.publish()
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transact("storyteller_kill", func() error {
		if err := c.requireRunning(); err != nil {
			return err
		}
		p, err := c.player(playerID)
		if err != nil {
			return err
		}
		if !p.Alive {
			return fmt.Errorf("%w: %s is already dead", rules.ErrInvalidTarget, p.ID)
		}
		if _, err := c.resolver.kill(p.ID, characters.CauseStoryteller, storyteller); err != nil {
			return err
		}
		c.resolver.CheckWin()
		if c.state.GameOver() {
			return c.finish()
		}
		return nil
	})
}

// Revive brings a dead player back.
func (c *Controller) Revive(playerID string) ([]rules.Event, error) {
	defer c.publish()
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transact("storyteller_revive", func() error {
		if err := c.requireRunning(); err != nil {
			return err
		}
		p, err := c.player(playerID)
		if err != nil {
			return err
		}
		if p.Alive {
			return fmt.Errorf("%w: %s is alive", rules.ErrInvalidTarget, p.ID)
		}
		if err := c.requireSingleDemon(p, p.Character); err != nil {
			return err
		}
		p.Alive = true
		p.GhostVotes = 0
		c.emit(rules.NewEvent(rules.EventRevive, p.ID, "").
			WithAudit(rules.MetaSource, status.SourceStoryteller))
		return nil
	})
}

// ApplyStatus puts an effect on a player. The source defaults to the
// storyteller.
func (c *Controller) ApplyStatus(playerID string, effect status.Effect) ([]rules.Event, error) {
	defer c.publish()
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transact("storyteller_apply_status", func() error {
		if c.state.Phase() == rules.PhaseGameOver {
			return rules.ErrGameOver
		}
		p, err := c.player(playerID)
		if err != nil {
			return err
		}
		if _, err := status.ParseKind(string(effect.Kind)); err != nil {
			return fmt.Errorf("%w: %v", rules.ErrInvalidTarget, err)
		}
		if _, err := status.ParseExpiry(string(effect.Expiry)); err != nil {
			return fmt.Errorf("%w: %v", rules.ErrInvalidTarget, err)
		}
		if effect.Kind == status.KindCustom && effect.Subject == "" {
			return fmt.Errorf("%w: custom status needs a flag name", rules.ErrInvalidTarget)
		}
		if effect.Source == "" {
			effect.Source = status.SourceStoryteller
		}
		effect.AppliedDay = c.state.Day()
		refreshed := c.state.Statuses.Apply(p.ID, effect)

		evt := rules.NewStorytellerEvent(rules.EventStatusApplied, p.ID, effect.Source).
			With(rules.MetaStatus, string(effect.Kind)).
			With(rules.MetaExpiry, string(effect.Expiry)).
			WithAudit(rules.MetaRefreshed, fmt.Sprint(refreshed))
		if effect.Subject != "" {
			evt = evt.With(rules.MetaSubject, effect.Subject)
		}
		c.emit(evt)
		return nil
	})
}

// RemoveStatus takes an effect off a player, permanent ones included.
// Custom flags are matched on their flag name as well.
func (c *Controller) RemoveStatus(playerID string, effect status.Effect) ([]rules.Event, error) {
	defer c.publish()
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transact("storyteller_remove_status", func() error {
		if c.state.Phase() == rules.PhaseGameOver {
			return rules.ErrGameOver
		}
		p, err := c.player(playerID)
		if err != nil {
			return err
		}
		if effect.Source == "" {
			effect.Source = status.SourceStoryteller
		}
		removed := false
		if effect.Kind == status.KindCustom {
			removed = c.state.Statuses.RemoveFlag(p.ID, effect.Subject, effect.Source)
		} else {
			_, removed = c.state.Statuses.Remove(p.ID, effect.Kind, effect.Source, true)
		}
		if !removed {
			return fmt.Errorf("%w: %s has no %s from %s", rules.ErrInvalidTarget, p.ID, effect.Kind, effect.Source)
		}
		evt := rules.NewStorytellerEvent(rules.EventStatusRemoved, p.ID, effect.Source).
			With(rules.MetaStatus, string(effect.Kind))
		if effect.Subject != "" {
			evt = evt.With(rules.MetaSubject, effect.Subject)
		}
		c.emit(evt)
		return nil
	})
}

// ChangeCharacter swaps a player's true character for another on the script.
func (c *Controller) ChangeCharacter(playerID string, id characters.ID) ([]rules.Event, error) {
	defer c.publish()
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transact("storyteller_change_character", func() error {
		if err := c.requireRunning(); err != nil {
			return err
		}
		p, err := c.player(playerID)
		if err != nil {
			return err
		}
		if _, err := c.registry.Lookup(id); err != nil {
			return err
		}
		if id == characters.Drunk {
			return fmt.Errorf("%w: the drunk can only be assigned during setup", rules.ErrInvalidTarget)
		}
		if p.Alive {
			if err := c.requireSingleDemon(p, id); err != nil {
				return err
			}
		}
		c.resolver.becomeCharacter(p, id, changeStoryteller)
		c.resolver.CheckWin()
		if c.state.GameOver() {
			return c.finish()
		}
		return nil
	})
}

// ChangeAlignment moves a player to the other team and tells them.
func (c *Controller) ChangeAlignment(playerID string, alignment characters.Alignment) ([]rules.Event, error) {
	defer c.publish()
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transact("storyteller_change_alignment", func() error {
		if err := c.requireRunning(); err != nil {
			return err
		}
		p, err := c.player(playerID)
		if err != nil {
			return err
		}
		if _, err := characters.ParseAlignment(string(alignment)); err != nil {
			return fmt.Errorf("%w: %v", rules.ErrInvalidTarget, err)
		}
		previous := p.Alignment
		p.Alignment = alignment
		c.emit(rules.NewStorytellerEvent(rules.EventAlignmentChanged, p.ID, status.SourceStoryteller).
			With(rules.MetaAlignment, string(alignment)).
			WithAudit(rules.MetaPrevious, string(previous)))
		c.emit(rules.NewPrivateEvent(rules.EventAlignmentChanged, p.ID, "").
			With(rules.MetaAlignment, string(alignment)))
		return nil
	})
}

// requireSingleDemon rejects making p a living demon while another demon lives.
func (c *Controller) requireSingleDemon(p *Player, id characters.ID) error {
	if !isType(id, characters.Demon) {
		return nil
	}
	for _, demon := range c.state.LivingDemons() {
		if demon.ID != p.ID {
			return fmt.Errorf("%w: %s is already the living demon", rules.ErrInvalidTarget, demon.ID)
		}
	}
	return nil
}
