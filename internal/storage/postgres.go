package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clocktower/grimoire-server-go/internal/common/clock"
	"github.com/clocktower/grimoire-server-go/internal/game"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS game_snapshots (
	game_id    TEXT PRIMARY KEY,
	hash       TEXT NOT NULL,
	phase      TEXT NOT NULL,
	day        INTEGER NOT NULL,
	events     INTEGER NOT NULL,
	saved_at   TIMESTAMPTZ NOT NULL,
	snapshot   JSONB NOT NULL
)`

const upsertSnapshot = `
INSERT INTO game_snapshots (game_id, hash, phase, day, events, saved_at, snapshot)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (game_id) DO UPDATE SET
	hash = EXCLUDED.hash,
	phase = EXCLUDED.phase,
	day = EXCLUDED.day,
	events = EXCLUDED.events,
	saved_at = EXCLUDED.saved_at,
	snapshot = EXCLUDED.snapshot`

const selectSnapshot = `
SELECT game_id, hash, phase, day, events, saved_at, snapshot
FROM game_snapshots WHERE game_id = $1`

const selectRecords = `
SELECT game_id, hash, phase, day, events, saved_at
FROM game_snapshots ORDER BY game_id`

const deleteSnapshot = `DELETE FROM game_snapshots WHERE game_id = $1`

// Querier is the part of a pgx pool the store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps snapshots in the game_snapshots table.
type PostgresStore struct {
	db     Querier
	close  func()
	clock  clock.Clock
	logger *zap.Logger
}

// OpenPostgres connects a pool to dsn and prepares the schema.
func OpenPostgres(ctx context.Context, dsn string, maxConns int32, clk clock.Clock, logger *zap.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	store, err := NewPostgresStore(ctx, pool, clk, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	store.close = pool.Close
	return store, nil
}

// NewPostgresStore wraps an existing connection and creates the table.
func NewPostgresStore(ctx context.Context, db Querier, clk clock.Clock, logger *zap.Logger) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	if clk == nil {
		clk = &clock.DefaultClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := db.Exec(ctx, createSnapshotsTable); err != nil {
		return nil, fmt.Errorf("failed to create snapshots table: %w", err)
	}
	return &PostgresStore{db: db, clock: clk, logger: logger}, nil
}

// Save upserts the snapshot row.
func (s *PostgresStore) Save(ctx context.Context, snapshot *game.Snapshot) (*Record, error) {
	record, err := newRecord(snapshot, s.clock.Now())
	if err != nil {
		return nil, err
	}
	data, err := snapshot.EncodeJSON()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(ctx, upsertSnapshot,
		record.GameID, record.Hash, record.Phase, record.Day, record.Events, record.SavedAt, data,
	); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	s.logger.Debug("snapshot saved",
		zap.String("game_id", record.GameID),
		zap.String("hash", record.Hash),
	)
	return record, nil
}

// Load reads and verifies a game's snapshot.
func (s *PostgresStore) Load(ctx context.Context, gameID string) (*game.Snapshot, error) {
	var (
		record Record
		data   []byte
	)
	err := s.db.QueryRow(ctx, selectSnapshot, gameID).Scan(
		&record.GameID, &record.Hash, &record.Phase, &record.Day, &record.Events, &record.SavedAt, &data,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return verify(record, data)
}

// List returns every stored record ordered by game id.
func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx, selectRecords)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			record  Record
			savedAt time.Time
		)
		if err := rows.Scan(&record.GameID, &record.Hash, &record.Phase, &record.Day, &record.Events, &savedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		record.SavedAt = savedAt.UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return records, nil
}

// Delete removes a game's row.
func (s *PostgresStore) Delete(ctx context.Context, gameID string) error {
	tag, err := s.db.Exec(ctx, deleteSnapshot, gameID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	return nil
}

// Close releases the pool when the store opened it.
func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
