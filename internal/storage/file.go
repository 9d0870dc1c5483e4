package storage

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clocktower/grimoire-server-go/internal/common/clock"
	"github.com/clocktower/grimoire-server-go/internal/game"
	"go.uber.org/zap"
)

const fileSuffix = ".snapshot.gz"

// envelope is the on-disk form of a stored snapshot.
type envelope struct {
	Record   Record          `json:"record"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// FileStore keeps one gzipped JSON file per game in a directory.
type FileStore struct {
	dir    string
	clock  clock.Clock
	logger *zap.Logger
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string, clk clock.Clock, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("storage directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if clk == nil {
		clk = &clock.DefaultClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{dir: dir, clock: clk, logger: logger}, nil
}

func (s *FileStore) path(gameID string) string {
	return filepath.Join(s.dir, gameID+fileSuffix)
}

// Save writes the snapshot to a temporary file and renames it into place.
func (s *FileStore) Save(ctx context.Context, snapshot *game.Snapshot) (*Record, error) {
	record, err := newRecord(snapshot, s.clock.Now())
	if err != nil {
		return nil, err
	}
	data, err := snapshot.EncodeJSON()
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.dir, record.GameID+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	gz := gzip.NewWriter(tmp)
	if err := json.NewEncoder(gz).Encode(envelope{Record: *record, Snapshot: data}); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(record.GameID)); err != nil {
		return nil, fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	s.logger.Debug("snapshot saved",
		zap.String("game_id", record.GameID),
		zap.String("hash", record.Hash),
		zap.String("dir", s.dir),
	)
	return record, nil
}

func (s *FileStore) read(gameID string) (*envelope, error) {
	file, err := os.Open(s.path(gameID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &env, nil
}

// Load reads and verifies a game's snapshot.
func (s *FileStore) Load(ctx context.Context, gameID string) (*game.Snapshot, error) {
	env, err := s.read(gameID)
	if err != nil {
		return nil, err
	}
	return verify(env.Record, env.Snapshot)
}

// List reads the record of every snapshot file in the directory.
func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	var records []Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		env, err := s.read(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot", zap.String("file", name), zap.Error(err))
			continue
		}
		records = append(records, env.Record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].GameID < records[j].GameID })
	return records, nil
}

// Delete removes a game's snapshot file.
func (s *FileStore) Delete(ctx context.Context, gameID string) error {
	if err := os.Remove(s.path(gameID)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: game %s", ErrNotFound, gameID)
		}
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Close is a no-op for files.
func (s *FileStore) Close() error {
	return nil
}
