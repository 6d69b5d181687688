package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/krisalay/ttl-cache/expiration"
	"github.com/krisalay/ttl-cache/types"
)

/*
CacheEngine is the "brain" of the cache system.
It is responsible for the "behavior" of the cache, NOT storage.
This acts as the policy layer shared by the read path and the sweeper.

It decides:
- When data is expired
- What "now" is
- How entries are stamped on write
- Where metrics and logs go

It does NOT:
- Store data
- Handle sharding
- Handle locking
- Schedule sweeps
*/
type CacheEngine struct {

	// Expiration controls when a cache entry should be considered "too old".
	Expiration expiration.Strategy

	// Metrics is how we keep track of what the cache is doing.
	Metrics types.Metrics

	// Logger receives operational events, mostly from the sweeper.
	Logger *zap.Logger

	// Clock returns the current time. Tests replace it to hit exact TTL boundaries.
	Clock func() time.Time
}

/*
NewCacheEngine creates a CacheEngine.
Any nil argument is replaced with a working default so the rest of the
codebase never needs nil checks.
*/
func NewCacheEngine(
	exp expiration.Strategy,
	metrics types.Metrics,
	logger *zap.Logger,
	clock func() time.Time,
) *CacheEngine {
	if exp == nil {
		exp = expiration.FixedTTL{}
	}
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}

	return &CacheEngine{
		Expiration: exp,
		Metrics:    metrics,
		Logger:     logger,
		Clock:      clock,
	}
}

// Now returns the engine's notion of the current time.
func (e *CacheEngine) Now() time.Time {
	return e.Clock()
}

// IsExpired checks whether a cache entry is expired right now.
// A nil entry (absent key) is expired.
func (e *CacheEngine) IsExpired(ent *types.CacheEntry) bool {
	return e.Expiration.IsExpired(ent, e.Clock())
}

// NewEntry builds the entry a Set installs, stamped by the expiration strategy.
func (e *CacheEngine) NewEntry(key string, value any, ttl time.Duration) *types.CacheEntry {
	ent := &types.CacheEntry{
		Key:   key,
		Value: value,
		TTL:   ttl,
	}
	e.Expiration.OnWrite(ent, e.Clock())
	return ent
}
