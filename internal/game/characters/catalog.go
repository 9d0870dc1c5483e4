package characters

import (
	"fmt"
	"sort"

	"github.com/clocktower/grimoire-server-go/internal/game/rules"
)

var (
	nightly      = rules.Hooks(rules.TriggerFirstNight, rules.TriggerOtherNight)
	firstNight   = rules.Hooks(rules.TriggerFirstNight)
	otherNights  = rules.Hooks(rules.TriggerOtherNight)
	passiveHooks = rules.Hooks(rules.TriggerPassive)
)

var catalog = map[ID]Definition{
	Washerwoman: {
		ID: Washerwoman, Name: "Washerwoman", Type: Townsfolk, Alignment: Good,
		NightOrder: 40, Hooks: firstNight,
		Text: "You start knowing that 1 of 2 players is a particular Townsfolk.",
	},
	Chef: {
		ID: Chef, Name: "Chef", Type: Townsfolk, Alignment: Good,
		NightOrder: 42, Hooks: firstNight,
		Text: "You start knowing how many pairs of evil players there are.",
	},
	Empath: {
		ID: Empath, Name: "Empath", Type: Townsfolk, Alignment: Good,
		NightOrder: 44, Hooks: nightly,
		Text: "Each night, you learn how many of your 2 alive neighbours are evil.",
	},
	FortuneTeller: {
		ID: FortuneTeller, Name: "Fortune Teller", Type: Townsfolk, Alignment: Good,
		NightOrder: 46, Hooks: nightly, Targets: 2,
		Text: "Each night, choose 2 players: you learn if either is a Demon.",
	},
	Undertaker: {
		ID: Undertaker, Name: "Undertaker", Type: Townsfolk, Alignment: Good,
		NightOrder: 48, Hooks: otherNights,
		Text: "Each night*, you learn which character died by execution today.",
	},
	Monk: {
		ID: Monk, Name: "Monk", Type: Townsfolk, Alignment: Good,
		NightOrder: 20, Hooks: otherNights, Targets: 1,
		Text: "Each night*, choose a player (not yourself): they are safe from the Demon tonight.",
	},
	Virgin: {
		ID: Virgin, Name: "Virgin", Type: Townsfolk, Alignment: Good,
		Hooks: rules.Hooks(rules.TriggerNomination),
		Text:  "The 1st time you are nominated, if the nominator is a Townsfolk, they are executed immediately.",
	},
	Soldier: {
		ID: Soldier, Name: "Soldier", Type: Townsfolk, Alignment: Good,
		Hooks: passiveHooks,
		Text:  "You are safe from the Demon.",
	},
	Mayor: {
		ID: Mayor, Name: "Mayor", Type: Townsfolk, Alignment: Good,
		Hooks: passiveHooks,
		Text:  "If only 3 players live & no execution occurs, your team wins.",
	},
	Savant: {
		ID: Savant, Name: "Savant", Type: Townsfolk, Alignment: Good,
		Hooks: rules.Hooks(rules.TriggerDayStart),
		Text:  "Each day, you learn 2 things in private: 1 is true & 1 is false.",
	},
	Butler: {
		ID: Butler, Name: "Butler", Type: Outsider, Alignment: Good,
		NightOrder: 50, Hooks: nightly | rules.Hooks(rules.TriggerVoteCast), Targets: 1,
		Text: "Each night, choose a player (not yourself): tomorrow, you may only vote if they are voting too.",
	},
	Drunk: {
		ID: Drunk, Name: "Drunk", Type: Outsider, Alignment: Good,
		Text: "You do not know you are the Drunk. You think you are a Townsfolk character, but you are not.",
	},
	Saint: {
		ID: Saint, Name: "Saint", Type: Outsider, Alignment: Good,
		Hooks: rules.Hooks(rules.TriggerExecution),
		Text:  "If you die by execution, your team loses.",
	},
	Poisoner: {
		ID: Poisoner, Name: "Poisoner", Type: Minion, Alignment: Evil,
		NightOrder: 10, Hooks: nightly, Targets: 1,
		Text: "Each night, choose a player: they are poisoned tonight and tomorrow day.",
	},
	ScarletWoman: {
		ID: ScarletWoman, Name: "Scarlet Woman", Type: Minion, Alignment: Evil,
		Hooks: passiveHooks,
		Text:  "If there are 5 or more players alive & the Demon dies, you become the Demon.",
	},
	Baron: {
		ID: Baron, Name: "Baron", Type: Minion, Alignment: Evil,
		Hooks: passiveHooks,
		Text:  "There are extra Outsiders in play.",
	},
	Cerenovus: {
		ID: Cerenovus, Name: "Cerenovus", Type: Minion, Alignment: Evil,
		NightOrder: 12, Hooks: nightly, Targets: 1, TakesChoice: true,
		Text: "Each night, choose a player & a good character: they are mad they are this character tomorrow, or might be executed.",
	},
	Imp: {
		ID: Imp, Name: "Imp", Type: Demon, Alignment: Evil,
		NightOrder: 30, Hooks: otherNights, Targets: 1,
		Text: "Each night*, choose a player: they die. If you kill yourself this way, a Minion becomes the Imp.",
	},
	Lleech: {
		ID: Lleech, Name: "Lleech", Type: Demon, Alignment: Evil,
		NightOrder: 25, Hooks: nightly | passiveHooks, Targets: 1,
		Text: "Each night*, choose a player: they die. You start by choosing a player: they are poisoned. You die if & only if they are dead.",
	},
	Bureaucrat: {
		ID: Bureaucrat, Name: "Bureaucrat", Type: Traveller, Alignment: Good,
		NightOrder: 5, Hooks: nightly, Targets: 1,
		Text: "Each night, choose a player (not yourself): their vote counts as 3 votes tomorrow.",
	},
	Thief: {
		ID: Thief, Name: "Thief", Type: Traveller, Alignment: Evil,
		NightOrder: 5, Hooks: nightly, Targets: 1,
		Text: "Each night, choose a player (not yourself): their vote counts negatively tomorrow.",
	},
}

// Lookup returns a catalog definition regardless of any script.
func Lookup(id ID) (Definition, error) {
	def, ok := catalog[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", rules.ErrUnknownCharacter, id)
	}
	return def, nil
}

// Catalog returns every known definition ordered by id.
func Catalog() []Definition {
	out := make([]Definition, 0, len(catalog))
	for _, def := range catalog {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NewAbility returns the ability implementation for a character.
func NewAbility(id ID) (Ability, error) {
	switch id {
	case Washerwoman:
		return washerwoman{}, nil
	case Chef:
		return chef{}, nil
	case Empath:
		return empath{}, nil
	case FortuneTeller:
		return fortuneTeller{}, nil
	case Undertaker:
		return undertaker{}, nil
	case Monk:
		return monk{}, nil
	case Virgin:
		return virgin{}, nil
	case Savant:
		return savant{}, nil
	case Butler:
		return butler{}, nil
	case Saint:
		return saint{}, nil
	case Poisoner:
		return poisoner{}, nil
	case Cerenovus:
		return cerenovus{}, nil
	case Imp:
		return imp{}, nil
	case Lleech:
		return lleech{}, nil
	case Bureaucrat:
		return bureaucrat{}, nil
	case Thief:
		return thief{}, nil
	case Soldier, Mayor, Drunk, ScarletWoman, Baron:
		return passive{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", rules.ErrUnknownCharacter, id)
	}
}
