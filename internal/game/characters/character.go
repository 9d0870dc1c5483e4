// Package characters defines the character catalog, scripts and the
// abilities each character carries.
package characters

import (
	"fmt"

	"github.com/clocktower/grimoire-server-go/internal/game/rules"
)

// ID identifies a character.
type ID string

const (
	Washerwoman   ID = "washerwoman"
	Chef          ID = "chef"
	Empath        ID = "empath"
	FortuneTeller ID = "fortune_teller"
	Undertaker    ID = "undertaker"
	Monk          ID = "monk"
	Virgin        ID = "virgin"
	Soldier       ID = "soldier"
	Mayor         ID = "mayor"
	Savant        ID = "savant"

	Butler ID = "butler"
	Drunk  ID = "drunk"
	Saint  ID = "saint"

	Poisoner     ID = "poisoner"
	ScarletWoman ID = "scarlet_woman"
	Baron        ID = "baron"
	Cerenovus    ID = "cerenovus"

	Imp    ID = "imp"
	Lleech ID = "lleech"

	Bureaucrat ID = "bureaucrat"
	Thief      ID = "thief"
)

// Type is the character's category on the script.
type Type string

const (
	Townsfolk Type = "townsfolk"
	Outsider  Type = "outsider"
	Minion    Type = "minion"
	Demon     Type = "demon"
	Traveller Type = "traveller"
)

// Alignment is the team a player wins with.
type Alignment string

const (
	Good Alignment = "good"
	Evil Alignment = "evil"
)

// ParseAlignment validates an alignment name.
func ParseAlignment(name string) (Alignment, error) {
	switch a := Alignment(name); a {
	case Good, Evil:
		return a, nil
	default:
		return "", fmt.Errorf("unknown alignment %q", name)
	}
}

// Opposite returns the other team.
func (a Alignment) Opposite() Alignment {
	if a == Good {
		return Evil
	}
	return Good
}

// Definition is the immutable description of a character.
type Definition struct {
	ID          ID
	Name        string
	Type        Type
	Alignment   Alignment
	NightOrder  int // lower fires earlier; 0 means the character never wakes
	Hooks       rules.HookSet
	Targets     int  // players chosen with a night action
	TakesChoice bool // night action also names a character
	Text        string
}

// FirstNightOnly reports whether the character acts on the first night only.
func (d Definition) FirstNightOnly() bool {
	return d.Hooks.Has(rules.TriggerFirstNight) && !d.Hooks.Has(rules.TriggerOtherNight)
}

// WakesAt reports whether the character has a hook for the given night.
func (d Definition) WakesAt(first bool) bool {
	return d.Hooks.Has(rules.NightTrigger(first))
}

// IsDemon reports whether the character is a demon.
func (d Definition) IsDemon() bool {
	return d.Type == Demon
}
