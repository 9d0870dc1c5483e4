package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/clocktower/grimoire-server-go/internal/common/clock"
	"github.com/clocktower/grimoire-server-go/internal/game"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// Key suffixes under the configured prefix
	snapshotKeyPrefix = "snapshot:"
	recordKeyPrefix   = "record:"
	gamesKey          = "games"

	// DefaultKeyPrefix namespaces keys when none is configured.
	DefaultKeyPrefix = "grimoire:"
)

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	// Redis client
	RedisClient *redis.Client
	// KeyPrefix namespaces every key; DefaultKeyPrefix when empty.
	KeyPrefix string
	Clock     clock.Clock
	Logger    *zap.Logger
}

// RedisStore keeps snapshots in Redis: one key for the snapshot, one for its
// record and a set indexing the stored games.
type RedisStore struct {
	client *redis.Client
	prefix string
	clock  clock.Clock
	logger *zap.Logger
}

// NewRedisStore creates a Redis-backed store and checks the connection.
func NewRedisStore(ctx context.Context, cfg *RedisConfig) (*RedisStore, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.RedisClient == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if err := cfg.RedisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := &RedisStore{
		client: cfg.RedisClient,
		prefix: cfg.KeyPrefix,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}
	if s.prefix == "" {
		s.prefix = DefaultKeyPrefix
	}
	if s.clock == nil {
		s.clock = &clock.DefaultClock{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

func (s *RedisStore) snapshotKey(gameID string) string {
	return s.prefix + snapshotKeyPrefix + gameID
}

func (s *RedisStore) recordKey(gameID string) string {
	return s.prefix + recordKeyPrefix + gameID
}

func (s *RedisStore) gamesKey() string {
	return s.prefix + gamesKey
}

// Save writes the snapshot, its record and the index in one transaction.
func (s *RedisStore) Save(ctx context.Context, snapshot *game.Snapshot) (*Record, error) {
	record, err := newRecord(snapshot, s.clock.Now())
	if err != nil {
		return nil, err
	}
	data, err := snapshot.EncodeJSON()
	if err != nil {
		return nil, err
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.snapshotKey(record.GameID), data, 0)
	pipe.Set(ctx, s.recordKey(record.GameID), recordJSON, 0)
	pipe.SAdd(ctx, s.gamesKey(), record.GameID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved",
		zap.String("game_id", record.GameID),
		zap.String("hash", record.Hash),
	)
	return record, nil
}

func (s *RedisStore) record(ctx context.Context, gameID string) (*Record, error) {
	recordJSON, err := s.client.Get(ctx, s.recordKey(gameID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	var record Record
	if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &record, nil
}

// Load fetches and verifies a game's snapshot.
func (s *RedisStore) Load(ctx context.Context, gameID string) (*game.Snapshot, error) {
	record, err := s.record(ctx, gameID)
	if err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.snapshotKey(gameID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return verify(*record, data)
}

// List returns the record of every indexed game.
func (s *RedisStore) List(ctx context.Context) ([]Record, error) {
	ids, err := s.client.SMembers(ctx, s.gamesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	sort.Strings(ids)

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		record, err := s.record(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

// Delete removes a game's keys and its index entry.
func (s *RedisStore) Delete(ctx context.Context, gameID string) error {
	pipe := s.client.TxPipeline()
	deleted := pipe.Del(ctx, s.snapshotKey(gameID), s.recordKey(gameID))
	pipe.SRem(ctx, s.gamesKey(), gameID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if deleted.Val() == 0 {
		return fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
