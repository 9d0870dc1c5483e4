package game

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clocktower/grimoire-server-go/internal/game/rules"
)

// ReplayExt is appended to the game id to name replay files.
const ReplayExt = ".replay"

// ErrReplayCorrupt is returned when a replay file fails its checksum.
var ErrReplayCorrupt = errors.New("replay checksum mismatch")

// Replay is a recorded game: one grimoire snapshot per phase the game entered.
type Replay struct {
	mu     sync.RWMutex
	gameID string
	frames []*Snapshot
}

// NewReplay creates an empty replay. An empty game id is taken from the first
// recorded snapshot.
func NewReplay(gameID string) *Replay {
	return &Replay{gameID: gameID}
}

// GameID returns the recorded game's id.
func (r *Replay) GameID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gameID
}

// Record appends a snapshot. Snapshots of another game are rejected.
func (r *Replay) Record(s *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gameID == "" {
		r.gameID = s.GameID
	}
	if s.GameID != r.gameID {
		return fmt.Errorf("snapshot of game %s recorded into replay of %s", s.GameID, r.gameID)
	}
	r.frames = append(r.frames, s)
	return nil
}

// Len returns the number of frames.
func (r *Replay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.frames)
}

// Frame returns the snapshot at index, or nil when out of range.
func (r *Replay) Frame(index int) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.frames) {
		return nil
	}
	return r.frames[index]
}

// Last returns the latest frame, or nil for an empty replay.
func (r *Replay) Last() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}

// Find returns the index of the first frame in phase on day, or -1.
func (r *Replay) Find(phase rules.Phase, day int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, f := range r.frames {
		if f.Phase == phase && f.Day == day {
			return i
		}
	}
	return -1
}

// replayHeader precedes the frames in a replay file. Checksum covers the last
// frame and is verified on load.
type replayHeader struct {
	GameID   string
	Version  int
	Frames   int
	Written  time.Time
	Checksum string
}

// SaveToFile writes the replay to <dir>/<game id>.replay as gzipped gob.
func (r *Replay) SaveToFile(dir string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.frames) == 0 {
		return fmt.Errorf("replay of %q has no frames", r.gameID)
	}
	sum, err := r.frames[len(r.frames)-1].ComputeChecksum()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create replay directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, r.gameID+ReplayExt))
	if err != nil {
		return fmt.Errorf("failed to create replay file: %w", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	enc := gob.NewEncoder(zw)
	header := replayHeader{
		GameID:   r.gameID,
		Version:  SnapshotVersion,
		Frames:   len(r.frames),
		Written:  time.Now().UTC(),
		Checksum: sum.Hash,
	}
	if err := enc.Encode(&header); err != nil {
		return fmt.Errorf("failed to encode replay header: %w", err)
	}
	for i, frame := range r.frames {
		if err := enc.Encode(frame); err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
	}
	return zw.Close()
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(dir, gameID string) (*Replay, error) {
	f, err := os.Open(filepath.Join(dir, gameID+ReplayExt))
	if err != nil {
		return nil, fmt.Errorf("failed to open replay: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay: %w", err)
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var header replayHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("failed to decode replay header: %w", err)
	}
	if header.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported replay version %d", header.Version)
	}

	replay := NewReplay(header.GameID)
	for i := 0; i < header.Frames; i++ {
		var frame Snapshot
		if err := dec.Decode(&frame); err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %w", i, err)
		}
		replay.frames = append(replay.frames, &frame)
	}
	if header.Frames == 0 {
		return nil, fmt.Errorf("replay %s has no frames", gameID)
	}
	sum, err := replay.Last().ComputeChecksum()
	if err != nil {
		return nil, err
	}
	if sum.Hash != header.Checksum {
		return nil, fmt.Errorf("%w: %s", ErrReplayCorrupt, gameID)
	}
	return replay, nil
}
