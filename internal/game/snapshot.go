package game

import (
	"bytes"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
	"github.com/clocktower/grimoire-server-go/internal/game/status"
	"github.com/clocktower/grimoire-server-go/internal/game/voting"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// SnapshotVersion is bumped whenever the snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is the complete persisted form of a game. Restoring it yields a
// controller indistinguishable from the one it was taken from.
type Snapshot struct {
	Version          int                        `json:"version"`
	GameID           string                     `json:"game_id"`
	Script           characters.Script          `json:"script"`
	Phase            rules.Phase                `json:"phase"`
	Day              int                        `json:"day"`
	Players          []Player                   `json:"players"`
	Statuses         map[string][]status.Effect `json:"statuses"`
	Voting           voting.State               `json:"voting"`
	NightActions     map[string]NightAction     `json:"night_actions"`
	PendingExecution string                     `json:"pending_execution"`
	Winner           characters.Alignment       `json:"winner"`
	WinReason        string                     `json:"win_reason"`
	Revealed         map[string]bool            `json:"revealed"`
	Events           []rules.Event              `json:"events"`
	Timestamp        time.Time                  `json:"timestamp"`
}

// SerializationChecksum identifies the content of a snapshot.
type SerializationChecksum struct {
	Hash      string // blake2b-256 of the canonical encoding
	Timestamp string
	Version   int
}

// Snapshot captures the current game.
func (c *Controller) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Controller) snapshot() *Snapshot {
	s := c.state.clone()
	players := make([]Player, len(s.Players))
	for i, p := range s.Players {
		players[i] = *p
	}
	return &Snapshot{
		Version:          SnapshotVersion,
		GameID:           s.GameID,
		Script:           *s.Script,
		Phase:            s.Phase(),
		Day:              s.Day(),
		Players:          players,
		Statuses:         s.Statuses.Export(),
		Voting:           s.Voting.Export(),
		NightActions:     s.NightActions,
		PendingExecution: s.PendingExecution,
		Winner:           s.Winner,
		WinReason:        s.WinReason,
		Revealed:         s.Revealed,
		Events:           s.Log.All(),
		Timestamp:        c.clock.Now(),
	}
}

// Restore rebuilds a controller from a snapshot. History watchers are
// rebuilt by replaying the event log.
func Restore(snapshot *Snapshot, opts ...Option) (*Controller, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("%w: nil snapshot", rules.ErrInvalidSetup)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", rules.ErrInvalidSetup, snapshot.Version)
	}
	script := snapshot.Script
	script.Characters = append([]characters.ID(nil), snapshot.Script.Characters...)
	registry, err := characters.NewRegistry(&script)
	if err != nil {
		return nil, err
	}

	players := make([]*Player, len(snapshot.Players))
	for i := range snapshot.Players {
		p := snapshot.Players[i]
		players[i] = &p
	}
	actions := make(map[string]NightAction, len(snapshot.NightActions))
	for id, a := range snapshot.NightActions {
		actions[id] = NightAction{Targets: append([]string(nil), a.Targets...), Choice: a.Choice}
	}
	revealed := make(map[string]bool, len(snapshot.Revealed))
	for id, v := range snapshot.Revealed {
		revealed[id] = v
	}
	state := &GameState{
		GameID:           snapshot.GameID,
		Script:           &script,
		Phases:           rules.RestorePhaseTracker(snapshot.Phase, snapshot.Day),
		Players:          players,
		Statuses:         status.RestoreTracker(snapshot.Statuses),
		Voting:           voting.RestoreEngine(snapshot.Voting, votingOptions(&script)),
		Log:              rules.RestoreEventLog(snapshot.Events),
		NightActions:     actions,
		PendingExecution: snapshot.PendingExecution,
		Winner:           snapshot.Winner,
		WinReason:        snapshot.WinReason,
		Revealed:         revealed,
	}

	c := newController(state, registry)
	c.apply(opts)
	c.rebuildWatchers()
	c.logger.Info("game restored",
		zap.String("game_id", state.GameID),
		zap.String("phase", state.Phase().String()),
		zap.Int("day", state.Day()),
		zap.Int("events", state.Log.Len()),
	)
	return c, nil
}

// ComputeChecksum hashes the canonical encoding of the snapshot. Timestamps
// are excluded, and nil and empty collections hash alike.
func (s *Snapshot) ComputeChecksum() (*SerializationChecksum, error) {
	canonical, err := s.canonical()
	if err != nil {
		return nil, err
	}
	sum := blake2b.Sum256(canonical)
	return &SerializationChecksum{
		Hash:      hex.EncodeToString(sum[:]),
		Timestamp: s.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		Version:   s.Version,
	}, nil
}

// VerifyChecksum reports whether the snapshot still matches expected.
func (s *Snapshot) VerifyChecksum(expected *SerializationChecksum) (bool, error) {
	computed, err := s.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

func (s *Snapshot) canonical() ([]byte, error) {
	clean := *s
	clean.Timestamp = time.Time{}
	clean.Events = make([]rules.Event, len(s.Events))
	for i, evt := range s.Events {
		evt.Timestamp = time.Time{}
		clean.Events[i] = evt
	}
	raw, err := json.Marshal(&clean)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	// encoding/json sorts object keys, so re-encoding is canonical
	return json.Marshal(dropEmpty(tree))
}

// dropEmpty turns empty objects and arrays into null.
func dropEmpty(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 {
			return nil
		}
		for k, child := range t {
			t[k] = dropEmpty(child)
		}
		return t
	case []any:
		if len(t) == 0 {
			return nil
		}
		for i, child := range t {
			t[i] = dropEmpty(child)
		}
		return t
	default:
		return v
	}
}

// EncodeJSON writes the snapshot as indented JSON. JSON keeps the
// difference between nil and empty collections.
func (s *Snapshot) EncodeJSON() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeJSON reads a snapshot written by EncodeJSON.
func DecodeJSON(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}

// SerializeToBytes encodes the snapshot with gob for replay files.
func (s *Snapshot) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeFromBytes decodes a gob snapshot.
func DeserializeFromBytes(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}

// ValidateSerializationRoundtrip checks that both encodings reproduce the
// snapshot's checksum.
func ValidateSerializationRoundtrip(s *Snapshot) error {
	original, err := s.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}

	data, err := s.SerializeToBytes()
	if err != nil {
		return err
	}
	fromGob, err := DeserializeFromBytes(data)
	if err != nil {
		return err
	}

	data, err = s.EncodeJSON()
	if err != nil {
		return err
	}
	fromJSON, err := DecodeJSON(data)
	if err != nil {
		return err
	}

	for name, decoded := range map[string]*Snapshot{"gob": fromGob, "json": fromJSON} {
		sum, err := decoded.ComputeChecksum()
		if err != nil {
			return fmt.Errorf("failed to compute %s checksum: %w", name, err)
		}
		if sum.Hash != original.Hash {
			return fmt.Errorf("%s checksum mismatch: original=%s, deserialized=%s", name, original.Hash, sum.Hash)
		}
	}
	return nil
}
