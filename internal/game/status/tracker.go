package status

import "sort"

// Expired pairs a removed effect with the player it was removed from.
type Expired struct {
	PlayerID string
	Effect   Effect
}

// Tracker holds the stacked effects of every player. Effects on one player are
// kept in application order.
type Tracker struct {
	effects map[string][]Effect
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{effects: make(map[string][]Effect)}
}

// RestoreTracker rebuilds a tracker from exported effects.
func RestoreTracker(effects map[string][]Effect) *Tracker {
	t := NewTracker()
	for playerID, list := range effects {
		if len(list) == 0 {
			continue
		}
		t.effects[playerID] = append([]Effect(nil), list...)
	}
	return t
}

// Apply adds an effect to a player. Applying the same kind from the same source
// again refreshes the existing entry in place and reports true.
func (t *Tracker) Apply(playerID string, effect Effect) bool {
	list := t.effects[playerID]
	for i, existing := range list {
		if existing.key() == effect.key() {
			list[i] = effect
			return true
		}
	}
	t.effects[playerID] = append(list, effect)
	return false
}

// Remove drops the effect of kind from source. Permanent effects are kept
// unless force is set.
func (t *Tracker) Remove(playerID string, kind Kind, source string, force bool) (Effect, bool) {
	list := t.effects[playerID]
	for i, existing := range list {
		if existing.Kind != kind || existing.Source != source {
			continue
		}
		if existing.Expiry == ExpiryPermanent && !force {
			return Effect{}, false
		}
		t.effects[playerID] = append(list[:i:i], list[i+1:]...)
		if len(t.effects[playerID]) == 0 {
			delete(t.effects, playerID)
		}
		return existing, true
	}
	return Effect{}, false
}

// RemoveFlag drops a custom flag applied by source.
func (t *Tracker) RemoveFlag(playerID, flag, source string) bool {
	list := t.effects[playerID]
	for i, existing := range list {
		if existing.Kind == KindCustom && existing.Subject == flag && existing.Source == source {
			t.effects[playerID] = append(list[:i:i], list[i+1:]...)
			if len(t.effects[playerID]) == 0 {
				delete(t.effects, playerID)
			}
			return true
		}
	}
	return false
}

// Holders returns, in player id order, the players carrying kind from source.
func (t *Tracker) Holders(kind Kind, source string) []string {
	var out []string
	for _, playerID := range t.players() {
		for _, e := range t.effects[playerID] {
			if e.Kind == kind && e.Source == source {
				out = append(out, playerID)
				break
			}
		}
	}
	return out
}

// FlagHolders returns the players carrying a custom flag from source.
func (t *Tracker) FlagHolders(flag, source string) []string {
	var out []string
	for _, playerID := range t.players() {
		for _, e := range t.effects[playerID] {
			if e.Kind == KindCustom && e.Subject == flag && e.Source == source {
				out = append(out, playerID)
				break
			}
		}
	}
	return out
}

// Has reports whether the player carries at least one effect of kind.
func (t *Tracker) Has(playerID string, kind Kind) bool {
	_, ok := t.Find(playerID, kind)
	return ok
}

// HasFlag reports whether the player carries the custom flag from any source.
func (t *Tracker) HasFlag(playerID, flag string) bool {
	for _, e := range t.effects[playerID] {
		if e.Kind == KindCustom && e.Subject == flag {
			return true
		}
	}
	return false
}

// Find returns the most recently applied effect of kind on the player.
func (t *Tracker) Find(playerID string, kind Kind) (Effect, bool) {
	list := t.effects[playerID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Kind == kind {
			return list[i], true
		}
	}
	return Effect{}, false
}

// Effects returns a copy of the player's effects.
func (t *Tracker) Effects(playerID string) []Effect {
	return append([]Effect(nil), t.effects[playerID]...)
}

// IsPoisoned reports whether any poison effect is active on the player.
func (t *Tracker) IsPoisoned(playerID string) bool {
	return t.Has(playerID, KindPoisoned)
}

// IsDrunk reports whether any drunk effect is active on the player.
func (t *Tracker) IsDrunk(playerID string) bool {
	return t.Has(playerID, KindDrunk)
}

// IsImpaired reports whether the player's ability is disabled.
func (t *Tracker) IsImpaired(playerID string) bool {
	for _, e := range t.effects[playerID] {
		if e.Impairing() {
			return true
		}
	}
	return false
}

// ExpireAtDawn removes every next-dawn effect.
func (t *Tracker) ExpireAtDawn() []Expired {
	return t.expire(ExpiryNextDawn)
}

// ExpireAtDusk removes every next-dusk effect.
func (t *Tracker) ExpireAtDusk() []Expired {
	return t.expire(ExpiryNextDusk)
}

func (t *Tracker) expire(expiry Expiry) []Expired {
	var removed []Expired
	for _, playerID := range t.players() {
		list := t.effects[playerID]
		kept := list[:0:0]
		for _, e := range list {
			if e.Expiry == expiry {
				removed = append(removed, Expired{PlayerID: playerID, Effect: e})
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(t.effects, playerID)
		} else {
			t.effects[playerID] = kept
		}
	}
	return removed
}

// Export returns a deep copy suitable for snapshots.
func (t *Tracker) Export() map[string][]Effect {
	out := make(map[string][]Effect, len(t.effects))
	for playerID, list := range t.effects {
		out[playerID] = append([]Effect(nil), list...)
	}
	return out
}

func (t *Tracker) players() []string {
	ids := make([]string, 0, len(t.effects))
	for id := range t.effects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
