// Package sweeper reclaims expired entries nobody reads anymore.
//
// Lazy expiration on Get alone can leave dead entries in memory forever when
// keys are written once and never read again. The sweeper periodically scans
// a snapshot of the keys and removes the expired ones.
package sweeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/krisalay/ttl-cache/engine"
	"github.com/krisalay/ttl-cache/types"
)

// DefaultInterval is used when a non-positive interval is passed to New.
const DefaultInterval = 5 * time.Minute

// ErrRunning is returned by Start when the loop is already running.
var ErrRunning = errors.New("sweeper is already running")

// Store is the part of the cache store the sweeper needs.
type Store interface {
	Keys() []string
	Get(string) (*types.CacheEntry, bool)
	CompareAndDelete(string, *types.CacheEntry) bool
}

// Sweeper owns one background goroutine. Call Stop, or cancel the context
// given to Start, to end it.
type Sweeper struct {
	store    Store
	engine   *engine.CacheEngine
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a stopped sweeper over store. A non-positive interval means
// DefaultInterval.
func New(store Store, eng *engine.CacheEngine, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		store:    store,
		engine:   eng,
		interval: interval,
	}
}

// Interval returns the time between two scans.
func (s *Sweeper) Interval() time.Duration {
	return s.interval
}

// Start launches the loop. The first scan runs immediately, the next ones
// every Interval until Stop is called or ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.engine.Logger.Info("sweeper started", zap.Duration("interval", s.interval))
	go s.loop(ctx, s.done)
	return nil
}

// Stop cancels the loop and waits for it to exit. Stop is safe to call
// multiple times and on a sweeper that was never started.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	// Cancel outside the lock so a scan in progress is never blocked on us.
	cancel()
	<-done
	s.engine.Logger.Info("sweeper stopped")
}

// Running reports whether the background loop is alive.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

func (s *Sweeper) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce()
		}
	}
}

// RunOnce scans the store once and returns how many entries it evicted.
// Every call does its own scan, so a call made while another scan is in
// progress still sees entries that expired after that scan began.
func (s *Sweeper) RunOnce() int {
	start := time.Now()

	evicted := 0
	for _, key := range s.store.Keys() {
		if s.sweepKey(key) {
			evicted++
		}
	}

	took := time.Since(start)
	s.safely("record sweep", func() {
		s.engine.Metrics.Sweep(evicted, took)
	})
	s.engine.Logger.Debug("sweep finished",
		zap.Int("evicted", evicted),
		zap.Duration("took", took),
	)
	return evicted
}

// safely runs a metrics hook. A panic in user-supplied code is logged and
// dropped so it cannot take down the loop goroutine.
func (s *Sweeper) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.engine.Logger.Error("sweep: recovered panic",
				zap.String("in", what),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	fn()
}

func (s *Sweeper) sweepKey(key string) (evicted bool) {
	defer func() {
		if r := recover(); r != nil {
			evicted = false
			s.safely("record panic", s.engine.Metrics.SweepPanic)
			s.engine.Logger.Error("sweep: recovered panic",
				zap.String("key", key),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	// Removed since the snapshot was taken.
	ent, ok := s.store.Get(key)
	if !ok {
		return false
	}

	if !s.engine.IsExpired(ent) {
		return false
	}

	// Only remove the entry we judged. A Set that raced in keeps its new entry.
	if !s.store.CompareAndDelete(key, ent) {
		return false
	}

	s.safely("record expire", s.engine.Metrics.Expire)
	return true
}
