package sweeper

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/krisalay/ttl-cache/engine"
	"github.com/krisalay/ttl-cache/expiration"
	"github.com/krisalay/ttl-cache/shard"
	"github.com/krisalay/ttl-cache/types"
)

type countingMetrics struct {
	types.NoopMetrics
	expired atomic.Int64
	sweeps  atomic.Int64
	panics  atomic.Int64
}

func (m *countingMetrics) Expire()                  { m.expired.Add(1) }
func (m *countingMetrics) Sweep(int, time.Duration) { m.sweeps.Add(1) }
func (m *countingMetrics) SweepPanic()              { m.panics.Add(1) }

// fakeClock is a settable clock safe for use from the sweeper goroutine.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(t *testing.T, exp expiration.Strategy, logger *zap.Logger) (*shard.Map, *engine.CacheEngine, *fakeClock, *countingMetrics) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	metrics := &countingMetrics{}
	eng := engine.NewCacheEngine(exp, metrics, logger, clock.Now)
	return shard.NewMap(4), eng, clock, metrics
}

func put(m *shard.Map, eng *engine.CacheEngine, key string, ttl time.Duration) *types.CacheEntry {
	ent := eng.NewEntry(key, key, ttl)
	m.Put(key, ent)
	return ent
}

func TestRunOnceEvictsOnlyExpired(t *testing.T) {
	m, eng, clock, metrics := newFixture(t, nil, nil)

	put(m, eng, "short", 50*time.Millisecond)
	put(m, eng, "long", time.Hour)
	put(m, eng, "forever", 0)

	clock.Advance(50 * time.Millisecond)

	s := New(m, eng, time.Minute)
	assert.Equal(t, 1, s.RunOnce())

	assert.ElementsMatch(t, []string{"long", "forever"}, m.Keys())
	assert.EqualValues(t, 1, metrics.expired.Load())
	assert.EqualValues(t, 1, metrics.sweeps.Load())

	// Nothing left to do.
	assert.Equal(t, 0, s.RunOnce())
}

func TestNewDefaultsInterval(t *testing.T) {
	_, eng, _, _ := newFixture(t, nil, nil)
	assert.Equal(t, DefaultInterval, New(shard.NewMap(1), eng, 0).Interval())
	assert.Equal(t, DefaultInterval, New(shard.NewMap(1), eng, -time.Second).Interval())
	assert.Equal(t, time.Second, New(shard.NewMap(1), eng, time.Second).Interval())
}

// panicky panics for one key and otherwise behaves like FixedTTL.
type panicky struct {
	expiration.FixedTTL
	key string
}

func (p panicky) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	if ent != nil && ent.Key == p.key {
		panic("boom")
	}
	return p.FixedTTL.IsExpired(ent, now)
}

func TestRunOnceRecoversFromPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	m, eng, clock, metrics := newFixture(t, panicky{key: "bad"}, zap.New(core))

	for _, k := range []string{"a", "bad", "b", "c"} {
		put(m, eng, k, 10*time.Millisecond)
	}
	clock.Advance(time.Second)

	s := New(m, eng, time.Minute)
	assert.Equal(t, 3, s.RunOnce())

	assert.Equal(t, []string{"bad"}, m.Keys())
	assert.EqualValues(t, 1, metrics.panics.Load())

	entries := logs.FilterMessage("sweep: recovered panic").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "bad", entries[0].ContextMap()["key"])

	// The next run is unaffected by the previous panic.
	assert.Equal(t, 0, s.RunOnce())
	assert.EqualValues(t, 2, metrics.panics.Load())
}

func TestSweepKeepsEntryReplacedDuringScan(t *testing.T) {
	m, eng, clock, _ := newFixture(t, nil, nil)

	old := put(m, eng, "k", 10*time.Millisecond)
	clock.Advance(time.Second)

	// Replace the entry after the sweeper would have looked at it.
	fresh := eng.NewEntry("k", "fresh", time.Hour)
	m.Put("k", fresh)
	assert.False(t, m.CompareAndDelete("k", old))

	s := New(m, eng, time.Minute)
	assert.Equal(t, 0, s.RunOnce())

	got, ok := m.Get("k")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestStartSweepsImmediately(t *testing.T) {
	m, eng, clock, _ := newFixture(t, nil, nil)
	put(m, eng, "k", time.Millisecond)
	clock.Advance(time.Second)

	// An interval this long means only the initial run can evict the key.
	s := New(m, eng, time.Hour)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStartStopLifecycle(t *testing.T) {
	m, eng, _, _ := newFixture(t, nil, nil)
	s := New(m, eng, 10*time.Millisecond)

	assert.False(t, s.Running())
	s.Stop() // never started

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Running())
	assert.ErrorIs(t, s.Start(context.Background()), ErrRunning)

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())

	// A stopped sweeper can be started again.
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Running())
	s.Stop()
}

func TestContextCancelStopsLoop(t *testing.T) {
	m, eng, _, metrics := newFixture(t, nil, nil)
	s := New(m, eng, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	require.Eventually(t, func() bool { return metrics.sweeps.Load() >= 2 }, time.Second, time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return !s.Running() }, time.Second, time.Millisecond)

	n := metrics.sweeps.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, metrics.sweeps.Load())

	s.Stop()
}

// gate blocks the first evaluation of key until release is closed.
type gate struct {
	expiration.FixedTTL
	key     string
	first   *atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (g gate) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	if ent != nil && ent.Key == g.key && g.first.CompareAndSwap(false, true) {
		close(g.entered)
		<-g.release
	}
	return g.FixedTTL.IsExpired(ent, now)
}

func TestRunOnceDuringScanStillScans(t *testing.T) {
	g := gate{key: "slow", first: &atomic.Bool{}, entered: make(chan struct{}), release: make(chan struct{})}
	m, eng, clock, _ := newFixture(t, g, nil)
	put(m, eng, "slow", 0)

	s := New(m, eng, time.Minute)

	first := make(chan int, 1)
	go func() { first <- s.RunOnce() }()
	<-g.entered

	// Expired after the first scan took its snapshot.
	put(m, eng, "late", time.Millisecond)
	clock.Advance(time.Second)

	assert.Equal(t, 1, s.RunOnce())
	_, ok := m.Get("late")
	assert.False(t, ok)

	close(g.release)
	assert.Equal(t, 0, <-first)
	assert.Equal(t, []string{"slow"}, m.Keys())
}

// faultyMetrics panics from the hooks called outside a key's evaluation.
type faultyMetrics struct {
	types.NoopMetrics
}

func (faultyMetrics) Expire()                  { panic("expire hook") }
func (faultyMetrics) Sweep(int, time.Duration) { panic("sweep hook") }

func TestPanickingMetricsDoNotStopSweeps(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	eng := engine.NewCacheEngine(nil, faultyMetrics{}, zap.New(core), clock.Now)
	m := shard.NewMap(4)

	put(m, eng, "a", time.Millisecond)
	clock.Advance(time.Second)

	s := New(m, eng, 5*time.Millisecond)
	assert.NotPanics(t, func() {
		assert.Equal(t, 1, s.RunOnce())
	})
	assert.Equal(t, 0, m.Len())

	var hooks []string
	for _, e := range logs.FilterMessage("sweep: recovered panic").All() {
		hooks = append(hooks, e.ContextMap()["in"].(string))
	}
	assert.ElementsMatch(t, []string{"record expire", "record sweep"}, hooks)

	// The loop keeps evicting after the hooks panic.
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	put(m, eng, "b", time.Millisecond)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, time.Millisecond)
	assert.True(t, s.Running())
}
