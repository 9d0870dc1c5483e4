// Package storage persists game snapshots.
package storage

//go:generate mockgen -package=mocks -destination=mocks/mock_store.go github.com/clocktower/grimoire-server-go/internal/storage Store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clocktower/grimoire-server-go/internal/game"
)

var (
	// ErrNotFound is returned when no snapshot is stored for a game.
	ErrNotFound = errors.New("snapshot not found")
	// ErrChecksumMismatch is returned when a stored snapshot no longer
	// matches the checksum recorded with it.
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")
)

// Record describes one stored snapshot.
type Record struct {
	GameID  string    `json:"game_id"`
	Hash    string    `json:"hash"`
	Phase   string    `json:"phase"`
	Day     int       `json:"day"`
	Events  int       `json:"events"`
	SavedAt time.Time `json:"saved_at"`
}

// Store keeps the latest snapshot of each game.
type Store interface {
	// Save replaces the stored snapshot of the snapshot's game.
	Save(ctx context.Context, snapshot *game.Snapshot) (*Record, error)

	// Load returns the latest snapshot of a game, verified against its
	// recorded checksum.
	Load(ctx context.Context, gameID string) (*game.Snapshot, error)

	// List returns the records of every stored game ordered by game id.
	List(ctx context.Context) ([]Record, error)

	// Delete removes a game's snapshot.
	Delete(ctx context.Context, gameID string) error

	Close() error
}

// newRecord checksums a snapshot for storage.
func newRecord(snapshot *game.Snapshot, savedAt time.Time) (*Record, error) {
	if snapshot == nil || snapshot.GameID == "" {
		return nil, errors.New("snapshot and game id cannot be empty")
	}
	sum, err := snapshot.ComputeChecksum()
	if err != nil {
		return nil, fmt.Errorf("failed to checksum snapshot: %w", err)
	}
	return &Record{
		GameID:  snapshot.GameID,
		Hash:    sum.Hash,
		Phase:   snapshot.Phase.String(),
		Day:     snapshot.Day,
		Events:  len(snapshot.Events),
		SavedAt: savedAt.UTC(),
	}, nil
}

// verify decodes stored snapshot JSON and checks it against its record.
func verify(record Record, data []byte) (*game.Snapshot, error) {
	snapshot, err := game.DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	ok, err := snapshot.VerifyChecksum(&game.SerializationChecksum{Hash: record.Hash})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: game %s", ErrChecksumMismatch, record.GameID)
	}
	return snapshot, nil
}
