package rules

import (
	"fmt"
	"strings"
)

// Trigger identifies the moment at which an ability hook fires.
type Trigger int

const (
	TriggerFirstNight Trigger = iota
	TriggerOtherNight
	TriggerDayStart
	TriggerNomination
	TriggerVoteCast
	TriggerExecution
	TriggerPassive
)

var triggerNames = map[Trigger]string{
	TriggerFirstNight: "FIRST_NIGHT",
	TriggerOtherNight: "OTHER_NIGHT",
	TriggerDayStart:   "DAY_START",
	TriggerNomination: "NOMINATION",
	TriggerVoteCast:   "VOTE_CAST",
	TriggerExecution:  "EXECUTION",
	TriggerPassive:    "PASSIVE",
}

func (t Trigger) String() string {
	if name, ok := triggerNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TRIGGER_%d", int(t))
}

// NightTrigger returns the night hook that fires on the given night.
func NightTrigger(first bool) Trigger {
	if first {
		return TriggerFirstNight
	}
	return TriggerOtherNight
}

// HookSet is the set of triggers a character's ability responds to.
type HookSet uint8

// Hooks builds a HookSet from a list of triggers.
func Hooks(triggers ...Trigger) HookSet {
	var hs HookSet
	for _, t := range triggers {
		hs |= 1 << uint(t)
	}
	return hs
}

// Has reports whether the set contains the trigger.
func (hs HookSet) Has(t Trigger) bool {
	return hs&(1<<uint(t)) != 0
}

// Triggers lists the triggers in the set in declaration order.
func (hs HookSet) Triggers() []Trigger {
	var out []Trigger
	for t := TriggerFirstNight; t <= TriggerPassive; t++ {
		if hs.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func (hs HookSet) String() string {
	triggers := hs.Triggers()
	if len(triggers) == 0 {
		return "NONE"
	}
	names := make([]string, len(triggers))
	for i, t := range triggers {
		names[i] = t.String()
	}
	return strings.Join(names, "|")
}
