// Package scenario loads scripted games from YAML and plays them against a
// controller, checking expectations along the way.
package scenario

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
	"github.com/clocktower/grimoire-server-go/internal/game/status"
)

// Step kinds.
const (
	StepAct             = "act"
	StepAdvance         = "advance"
	StepNominate        = "nominate"
	StepVote            = "vote"
	StepKill            = "kill"
	StepRevive          = "revive"
	StepApplyStatus     = "apply_status"
	StepRemoveStatus    = "remove_status"
	StepChangeCharacter = "change_character"
	StepChangeAlignment = "change_alignment"
	StepExpect          = "expect"
)

// Scenario is a complete scripted game.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Script names a script file in the scripts directory. When Characters
	// is set instead, the script is built inline with Rules; rules missing
	// from the document keep their defaults.
	Script     string           `yaml:"script"`
	Characters []characters.ID  `yaml:"characters"`
	Rules      characters.Rules `yaml:"rules"`

	Seats []Seat `yaml:"seats"`
	Steps []Step `yaml:"steps"`
	// Expect is checked after the last step.
	Expect *Expectation `yaml:"expect"`

	dir string
}

// Seat assigns a character to a player. Seats are in table order.
type Seat struct {
	Player    string               `yaml:"player"`
	Character characters.ID        `yaml:"character"`
	Appears   characters.ID        `yaml:"appears"`
	Alignment characters.Alignment `yaml:"alignment"`
}

// Step is one driver operation.
type Step struct {
	Do string `yaml:"do"`

	Player  string        `yaml:"player"`
	Targets []string      `yaml:"targets"`
	Choice  characters.ID `yaml:"choice"`

	Nominee string   `yaml:"nominee"`
	Yes     []string `yaml:"yes"`
	No      []string `yaml:"no"`

	// Times repeats an advance; To advances until the phase is reached.
	Times int    `yaml:"times"`
	To    string `yaml:"to"`

	Status    *Status              `yaml:"status"`
	Character characters.ID        `yaml:"character"`
	Alignment characters.Alignment `yaml:"alignment"`

	// Error is the code the step must fail with.
	Error rules.Code `yaml:"error"`
	// Logged lists event types the step must produce.
	Logged []rules.EventType `yaml:"logged"`

	Expect *Expectation `yaml:"expect"`
}

// Status describes an effect for the status steps.
type Status struct {
	Kind    string `yaml:"kind"`
	Expiry  string `yaml:"expiry"`
	Source  string `yaml:"source"`
	Subject string `yaml:"subject"`
	Weight  int    `yaml:"weight"`
}

// Effect converts the description into a status effect. Source defaults to
// the storyteller and expiry to permanent.
func (s Status) Effect() (status.Effect, error) {
	kind, err := status.ParseKind(s.Kind)
	if err != nil {
		return status.Effect{}, err
	}
	expiry := status.ExpiryPermanent
	if s.Expiry != "" {
		if expiry, err = status.ParseExpiry(s.Expiry); err != nil {
			return status.Effect{}, err
		}
	}
	source := s.Source
	if source == "" {
		source = status.SourceStoryteller
	}
	return status.Effect{
		Kind:    kind,
		Source:  source,
		Expiry:  expiry,
		Subject: s.Subject,
		Weight:  s.Weight,
	}, nil
}

// Expectation is a set of checks against the game. Empty fields are skipped.
type Expectation struct {
	Phase  string               `yaml:"phase"`
	Day    *int                 `yaml:"day"`
	Alive  []string             `yaml:"alive"`
	Dead   []string             `yaml:"dead"`
	Winner characters.Alignment `yaml:"winner"`
	Reason string               `yaml:"reason"`
	Events int                  `yaml:"events"`
}

// Load decodes a scenario. Unknown fields are rejected.
func Load(r io.Reader) (*Scenario, error) {
	s := Scenario{Rules: characters.DefaultRules()}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads a scenario from disk. A relative script name is looked up
// next to the scenario file first.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario %s: %w", path, err)
	}
	defer f.Close()

	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// Validate checks the scenario's shape. Game legality is left to the engine.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario has no name")
	}
	if s.Script == "" && len(s.Characters) == 0 {
		return fmt.Errorf("scenario %q: needs a script or a character list", s.Name)
	}
	if s.Script != "" && len(s.Characters) > 0 {
		return fmt.Errorf("scenario %q: script and characters are exclusive", s.Name)
	}
	if len(s.Seats) == 0 {
		return fmt.Errorf("scenario %q: no seats", s.Name)
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("scenario %q step %d: %w", s.Name, i+1, err)
		}
	}
	return nil
}

func (st Step) validate() error {
	switch st.Do {
	case StepAct, StepKill, StepRevive:
		if st.Player == "" {
			return fmt.Errorf("%s needs a player", st.Do)
		}
	case StepAdvance:
		if st.Times < 0 {
			return fmt.Errorf("advance times must not be negative")
		}
		if st.To != "" {
			if _, err := rules.ParsePhase(st.To); err != nil {
				return err
			}
		}
	case StepNominate:
		if st.Player == "" || st.Nominee == "" {
			return fmt.Errorf("nominate needs a player and a nominee")
		}
	case StepVote:
		if st.Nominee == "" {
			return fmt.Errorf("vote needs a nominee")
		}
	case StepApplyStatus, StepRemoveStatus:
		if st.Player == "" || st.Status == nil {
			return fmt.Errorf("%s needs a player and a status", st.Do)
		}
	case StepChangeCharacter:
		if st.Player == "" || st.Character == "" {
			return fmt.Errorf("change_character needs a player and a character")
		}
	case StepChangeAlignment:
		if st.Player == "" || st.Alignment == "" {
			return fmt.Errorf("change_alignment needs a player and an alignment")
		}
	case StepExpect:
		if st.Expect == nil {
			return fmt.Errorf("expect step has no expectation")
		}
	default:
		return fmt.Errorf("unknown step %q", st.Do)
	}
	return nil
}

// resolveScript builds or loads the scenario's script.
func (s *Scenario) resolveScript(scriptsDir string) (*characters.Script, error) {
	if len(s.Characters) > 0 {
		script := &characters.Script{Name: s.Name, Characters: s.Characters, Rules: s.Rules}
		if err := script.Validate(); err != nil {
			return nil, err
		}
		return script, nil
	}

	name := s.Script
	if filepath.Ext(name) == "" {
		name += ".yaml"
	}
	var candidates []string
	if filepath.IsAbs(name) {
		candidates = []string{name}
	} else {
		if s.dir != "" {
			candidates = append(candidates, filepath.Join(s.dir, name))
		}
		if scriptsDir != "" {
			candidates = append(candidates, filepath.Join(scriptsDir, name))
		}
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return characters.LoadScriptFile(path)
		}
	}
	return nil, fmt.Errorf("script %q not found in %v", s.Script, candidates)
}
