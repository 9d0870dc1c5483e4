// Package status tracks the conditions layered on players: poison, drunkenness,
// protection, madness, vote weight and storyteller flags.
package status

import "fmt"

// Kind identifies a status effect.
type Kind string

const (
	KindPoisoned   Kind = "poisoned"
	KindDrunk      Kind = "drunk"
	KindProtected  Kind = "protected"
	KindMad        Kind = "mad"
	KindVoteWeight Kind = "vote_weight"
	KindCustom     Kind = "custom"
)

// ParseKind validates a kind name.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(name); k {
	case KindPoisoned, KindDrunk, KindProtected, KindMad, KindVoteWeight, KindCustom:
		return k, nil
	default:
		return "", fmt.Errorf("unknown status kind %q", name)
	}
}

// Expiry describes when an effect stops applying.
type Expiry string

const (
	// ExpiryNextDawn effects are removed when the night resolves into day.
	ExpiryNextDawn Expiry = "next_dawn"
	// ExpiryNextDusk effects are removed when the next night begins.
	ExpiryNextDusk Expiry = "next_dusk"
	// ExpiryPermanent effects can only be removed by the storyteller.
	ExpiryPermanent Expiry = "permanent"
	// ExpiryUntilRemoved effects stay until an ability removes them.
	ExpiryUntilRemoved Expiry = "until_removed"
)

// ParseExpiry validates an expiry name.
func ParseExpiry(name string) (Expiry, error) {
	switch e := Expiry(name); e {
	case ExpiryNextDawn, ExpiryNextDusk, ExpiryPermanent, ExpiryUntilRemoved:
		return e, nil
	default:
		return "", fmt.Errorf("unknown status expiry %q", name)
	}
}

// Effect sources that are not players.
const (
	SourceScript      = "script"
	SourceStoryteller = "storyteller"
)

// Flags used with KindCustom.
const (
	FlagPosthumousNomination = "posthumous_nomination"
	FlagRedHerring           = "red_herring"
	FlagButlerMaster         = "butler_master"
)

// Effect is one condition applied to a player.
type Effect struct {
	Kind       Kind   `json:"kind"`
	Source     string `json:"source"`
	Expiry     Expiry `json:"expiry"`
	Subject    string `json:"subject"` // mad-about character or custom flag name
	Weight     int    `json:"weight"`  // vote weight for KindVoteWeight
	AppliedDay int    `json:"applied_day"`
}

// key identifies an effect for idempotent application. Custom flags are
// distinguished by their subject so one source can hold several flags.
func (e Effect) key() string {
	if e.Kind == KindCustom {
		return string(e.Kind) + ":" + e.Subject + "|" + e.Source
	}
	return string(e.Kind) + "|" + e.Source
}

// Impairing reports whether the effect disables abilities.
func (e Effect) Impairing() bool {
	return e.Kind == KindPoisoned || e.Kind == KindDrunk
}

func (e Effect) String() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s(%s) from %s until %s", e.Kind, e.Subject, e.Source, e.Expiry)
	}
	return fmt.Sprintf("%s from %s until %s", e.Kind, e.Source, e.Expiry)
}
