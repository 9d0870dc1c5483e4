package characters

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/clocktower/grimoire-server-go/internal/game/rules"
)

// ExecutionMode selects how a successful vote leads to an execution.
type ExecutionMode string

const (
	// ExecutionImmediate executes the first nominee whose vote meets the threshold.
	ExecutionImmediate ExecutionMode = "immediate"
	// ExecutionBlock puts the highest qualifying nominee on the block and
	// executes them when the day ends. A tie clears the block.
	ExecutionBlock ExecutionMode = "block"
)

// Rules are the per-script knobs of the game.
type Rules struct {
	ExecutionMode             ExecutionMode `yaml:"execution_mode" json:"execution_mode"`
	GhostVoteWeight           int           `yaml:"ghost_vote_weight" json:"ghost_vote_weight"`
	TravellerVoteWeight       int           `yaml:"traveller_vote_weight" json:"traveller_vote_weight"`
	OneNominationPerNominator bool          `yaml:"one_nomination_per_nominator" json:"one_nomination_per_nominator"`
	MinPlayers                int           `yaml:"min_players" json:"min_players"`
	MaxPlayers                int           `yaml:"max_players" json:"max_players"`
}

// DefaultRules returns the rules used when a script does not override them.
func DefaultRules() Rules {
	return Rules{
		ExecutionMode:             ExecutionImmediate,
		GhostVoteWeight:           1,
		TravellerVoteWeight:       1,
		OneNominationPerNominator: true,
		MinPlayers:                5,
		MaxPlayers:                20,
	}
}

// Script is the set of characters legal in a game plus its rules.
type Script struct {
	Name       string `yaml:"name" json:"name"`
	Author     string `yaml:"author" json:"author"`
	Characters []ID   `yaml:"characters" json:"characters"`
	Rules      Rules  `yaml:"rules" json:"rules"`
}

// NewScript builds and validates a script with default rules.
func NewScript(name string, ids ...ID) (*Script, error) {
	s := &Script{Name: name, Characters: ids, Rules: DefaultRules()}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadScript decodes a YAML script. Rules missing from the document keep their defaults.
func LoadScript(r io.Reader) (*Script, error) {
	s := &Script{Rules: DefaultRules()}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(s); err != nil {
		return nil, fmt.Errorf("failed to decode script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadScriptFile reads a YAML script from disk.
func LoadScriptFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()
	return LoadScript(f)
}

// Validate checks that every character exists, none repeats and the script
// contains a demon.
func (s *Script) Validate() error {
	if len(s.Characters) == 0 {
		return fmt.Errorf("%w: script %q has no characters", rules.ErrInvalidSetup, s.Name)
	}
	seen := make(map[ID]bool, len(s.Characters))
	hasDemon := false
	for _, id := range s.Characters {
		def, err := Lookup(id)
		if err != nil {
			return fmt.Errorf("script %q: %w", s.Name, err)
		}
		if seen[id] {
			return fmt.Errorf("%w: script %q lists %s twice", rules.ErrInvalidSetup, s.Name, id)
		}
		seen[id] = true
		if def.IsDemon() {
			hasDemon = true
		}
	}
	if !hasDemon {
		return fmt.Errorf("%w: script %q has no demon", rules.ErrInvalidSetup, s.Name)
	}
	switch s.Rules.ExecutionMode {
	case ExecutionImmediate, ExecutionBlock:
	default:
		return fmt.Errorf("%w: unknown execution mode %q", rules.ErrInvalidSetup, s.Rules.ExecutionMode)
	}
	if s.Rules.MinPlayers < 1 || s.Rules.MaxPlayers < s.Rules.MinPlayers {
		return fmt.Errorf("%w: player limits %d-%d", rules.ErrInvalidSetup, s.Rules.MinPlayers, s.Rules.MaxPlayers)
	}
	return nil
}

// Contains reports whether the character is legal in this script.
func (s *Script) Contains(id ID) bool {
	for _, c := range s.Characters {
		if c == id {
			return true
		}
	}
	return false
}
