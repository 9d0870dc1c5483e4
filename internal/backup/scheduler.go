// Package backup saves game snapshots in the background. Requests coalesce:
// however many arrive, a game is written at most once per interval.
package backup

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/clocktower/grimoire-server-go/internal/common/clock"
	"github.com/clocktower/grimoire-server-go/internal/game"
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
	"github.com/clocktower/grimoire-server-go/internal/storage"
	"go.uber.org/zap"
)

// DefaultInterval is the minimum time between two writes.
const DefaultInterval = 20 * time.Second

// Source produces the snapshot to write for a game.
type Source func() *game.Snapshot

// Scheduler coalesces backup requests and writes them to a store.
type Scheduler struct {
	store    storage.Store
	clock    clock.Clock
	logger   *zap.Logger
	interval time.Duration

	mu       sync.Mutex
	sources  map[string]Source
	pending  map[string]string // game id -> last request reason
	requests map[string]int
	lastSave time.Time
	wake     chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.interval = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScheduler creates a scheduler writing to store.
func NewScheduler(store storage.Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    store,
		clock:    &clock.DefaultClock{},
		logger:   zap.NewNop(),
		interval: DefaultInterval,
		sources:  make(map[string]Source),
		pending:  make(map[string]string),
		requests: make(map[string]int),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Track registers the snapshot source of a game.
func (s *Scheduler) Track(gameID string, source Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[gameID] = source
}

// Untrack forgets a game and drops its pending request.
func (s *Scheduler) Untrack(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sources, gameID)
	delete(s.pending, gameID)
	delete(s.requests, gameID)
}

// Attach tracks a controller and requests a backup after every committed
// event. The snapshot is taken later, outside the controller's lock.
func (s *Scheduler) Attach(ctrl *game.Controller) int {
	id := ctrl.ID()
	s.Track(id, ctrl.Snapshot)
	return ctrl.Subscribe(func(e rules.Event) {
		s.Request(id, string(e.Type))
	})
}

// Request marks a game as needing a backup and returns immediately.
func (s *Scheduler) Request(gameID, reason string) {
	s.mu.Lock()
	s.pending[gameID] = reason
	s.requests[gameID]++
	s.mu.Unlock()
	s.signal()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the ids of games waiting for a backup.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Flush writes every pending game now. Failed games stay pending and are
// retried by Run; the first error is returned after all games were attempted.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	type job struct {
		id       string
		reason   string
		requests int
		source   Source
	}
	var jobs []job
	for id, reason := range s.pending {
		source, ok := s.sources[id]
		if !ok {
			s.logger.Warn("backup requested for untracked game", zap.String("game_id", id))
			delete(s.pending, id)
			delete(s.requests, id)
			continue
		}
		jobs = append(jobs, job{id: id, reason: reason, requests: s.requests[id], source: source})
		delete(s.pending, id)
		delete(s.requests, id)
	}
	s.lastSave = s.clock.Now()
	s.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].id < jobs[j].id })

	var firstErr error
	for _, j := range jobs {
		record, err := s.store.Save(ctx, j.source())
		if err != nil {
			s.logger.Error("backup failed",
				zap.String("game_id", j.id),
				zap.String("reason", j.reason),
				zap.Error(err),
			)
			s.mu.Lock()
			if _, requeued := s.pending[j.id]; !requeued {
				s.pending[j.id] = j.reason
			}
			s.requests[j.id] += j.requests
			s.mu.Unlock()
			// Run retries once the interval has passed
			s.signal()
			if firstErr == nil {
				firstErr = fmt.Errorf("backup of game %s failed: %w", j.id, err)
			}
			continue
		}
		s.logger.Debug("backup written",
			zap.String("game_id", j.id),
			zap.String("reason", j.reason),
			zap.Int("requests", j.requests),
			zap.String("hash", record.Hash),
		)
	}
	return firstErr
}

// wait returns how long to sleep before the next write may happen.
func (s *Scheduler) wait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSave.IsZero() {
		return 0
	}
	remaining := s.interval - s.clock.Now().Sub(s.lastSave)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Run writes pending backups until ctx is cancelled, then flushes whatever
// is still pending.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("backup scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("backup scheduler stopping", zap.Strings("pending", s.Pending()))
			return s.Flush(context.WithoutCancel(ctx))
		case <-s.wake:
		}

		if d := s.wait(); d > 0 {
			select {
			case <-ctx.Done():
				s.logger.Info("backup scheduler stopping", zap.Strings("pending", s.Pending()))
				return s.Flush(context.WithoutCancel(ctx))
			case <-s.clock.After(d):
			}
		}
		if err := s.Flush(ctx); err != nil {
			s.logger.Warn("backup flush incomplete", zap.Error(err))
		}
	}
}
