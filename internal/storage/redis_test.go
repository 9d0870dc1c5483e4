package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

type RedisStoreTestSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	store  *RedisStore
	ctx    context.Context
}

func (s *RedisStoreTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr

	s.client = redis.NewClient(&redis.Options{
		Addr: s.mr.Addr(),
	})
	s.ctx = context.Background()

	store, err := NewRedisStore(s.ctx, &RedisConfig{
		RedisClient: s.client,
		KeyPrefix:   "test:",
		Clock:       testClock,
		Logger:      zaptest.NewLogger(s.T()),
	})
	s.Require().NoError(err)
	s.store = store
}

func (s *RedisStoreTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestRedisStoreTestSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreTestSuite))
}

func (s *RedisStoreTestSuite) TestSaveAndLoad() {
	snap := testSnapshot(s.T(), "game-1")

	record, err := s.store.Save(s.ctx, snap)
	s.Require().NoError(err)
	s.Equal("game-1", record.GameID)

	s.True(s.mr.Exists("test:snapshot:game-1"))
	s.True(s.mr.Exists("test:record:game-1"))
	members, err := s.mr.Members("test:games")
	s.Require().NoError(err)
	s.Equal([]string{"game-1"}, members)

	loaded, err := s.store.Load(s.ctx, "game-1")
	s.Require().NoError(err)
	sum, err := loaded.ComputeChecksum()
	s.Require().NoError(err)
	s.Equal(record.Hash, sum.Hash)
}

func (s *RedisStoreTestSuite) TestSaveReplacesPreviousSnapshot() {
	first := testSnapshot(s.T(), "game-1")
	_, err := s.store.Save(s.ctx, first)
	s.Require().NoError(err)

	second := testSnapshot(s.T(), "game-1")
	second.Players[1].Alive = false
	record, err := s.store.Save(s.ctx, second)
	s.Require().NoError(err)

	records, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(record.Hash, records[0].Hash)

	loaded, err := s.store.Load(s.ctx, "game-1")
	s.Require().NoError(err)
	s.False(loaded.Players[1].Alive)
}

func (s *RedisStoreTestSuite) TestLoadMissingGame() {
	_, err := s.store.Load(s.ctx, "nope")
	s.ErrorIs(err, ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, "nope"), ErrNotFound)
}

func (s *RedisStoreTestSuite) TestLoadDetectsTampering() {
	snap := testSnapshot(s.T(), "game-1")
	_, err := s.store.Save(s.ctx, snap)
	s.Require().NoError(err)

	snap.WinReason = "rewritten"
	data, err := snap.EncodeJSON()
	s.Require().NoError(err)
	s.Require().NoError(s.mr.Set("test:snapshot:game-1", string(data)))

	_, err = s.store.Load(s.ctx, "game-1")
	s.ErrorIs(err, ErrChecksumMismatch)
}

func (s *RedisStoreTestSuite) TestListAndDelete() {
	for _, id := range []string{"game-c", "game-a", "game-b"} {
		_, err := s.store.Save(s.ctx, testSnapshot(s.T(), id))
		s.Require().NoError(err)
	}

	records, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal("game-a", records[0].GameID)
	s.Equal("game-c", records[2].GameID)

	s.Require().NoError(s.store.Delete(s.ctx, "game-b"))
	s.False(s.mr.Exists("test:snapshot:game-b"))
	records, err = s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(records, 2)
}

func (s *RedisStoreTestSuite) TestNewRedisStoreValidatesConfig() {
	_, err := NewRedisStore(s.ctx, nil)
	s.Error(err)
	_, err = NewRedisStore(s.ctx, &RedisConfig{})
	s.Error(err)

	down := miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: down.Addr()})
	defer client.Close()
	down.Close()
	_, err = NewRedisStore(s.ctx, &RedisConfig{RedisClient: client})
	s.Error(err)
}
