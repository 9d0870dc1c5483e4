package characters

import (
	"fmt"
	"sort"

	"github.com/clocktower/grimoire-server-go/internal/game/rules"
)

// Registry resolves characters against the script loaded for a game.
type Registry struct {
	script *Script
	defs   map[ID]Definition
}

// NewRegistry binds the catalog to a validated script.
func NewRegistry(script *Script) (*Registry, error) {
	if script == nil {
		return nil, fmt.Errorf("%w: nil script", rules.ErrInvalidSetup)
	}
	if err := script.Validate(); err != nil {
		return nil, err
	}
	defs := make(map[ID]Definition, len(script.Characters))
	for _, id := range script.Characters {
		defs[id] = catalog[id]
	}
	return &Registry{script: script, defs: defs}, nil
}

// Script returns the script the registry was built from.
func (r *Registry) Script() *Script {
	return r.script
}

// Lookup returns the definition of a character in the loaded script.
func (r *Registry) Lookup(id ID) (Definition, error) {
	def, ok := r.defs[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q is not on script %q", rules.ErrUnknownCharacter, id, r.script.Name)
	}
	return def, nil
}

// Ability returns the ability of a character in the loaded script.
func (r *Registry) Ability(id ID) (Ability, error) {
	if _, err := r.Lookup(id); err != nil {
		return nil, err
	}
	return NewAbility(id)
}

// NightOrder lists the script's characters that wake on the given night,
// ordered by priority with ties broken by id.
func (r *Registry) NightOrder(first bool) []ID {
	var order []Definition
	for _, def := range r.defs {
		if def.WakesAt(first) {
			order = append(order, def)
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].NightOrder != order[j].NightOrder {
			return order[i].NightOrder < order[j].NightOrder
		}
		return order[i].ID < order[j].ID
	})
	ids := make([]ID, len(order))
	for i, def := range order {
		ids[i] = def.ID
	}
	return ids
}

// WithHook lists the script's characters carrying a hook, in id order.
func (r *Registry) WithHook(trigger rules.Trigger) []ID {
	var ids []ID
	for id, def := range r.defs {
		if def.Hooks.Has(trigger) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
