package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	api "github.com/krisalay/ttl-cache/api"
	"github.com/krisalay/ttl-cache/engine"
	"github.com/krisalay/ttl-cache/shard"
	"github.com/krisalay/ttl-cache/sweeper"
	"github.com/krisalay/ttl-cache/types"
)

var _ api.Cache = (*Manager)(nil)

/*
Manager is the main cache implementation.
This struct is the orchestrator that connects:
- the sharded store
- the policy engine (expiration, clock, metrics, logging)
- the background sweeper
- read-through loading

Manager owns its sweeper goroutine. Call Close to stop it.
*/
type Manager struct {
	// store holds every entry. It is the only shared mutable state.
	store *shard.Map

	// engine contains the "rules" of the cache: TTL, clock, metrics, logger.
	engine *engine.CacheEngine

	sweeper *sweeper.Sweeper

	// sf prevents multiple goroutines from loading the same key simultaneously.
	sf singleflight.Group
}

// New builds a Manager and starts its sweeper unless cfg disables it.
// The sweeper runs until Close.
func New(cfg Config) *Manager {
	return NewContext(context.Background(), cfg)
}

// NewContext is like New, but the sweeper also stops when ctx is done.
func NewContext(ctx context.Context, cfg Config) *Manager {
	eng := engine.NewCacheEngine(cfg.Expiration, cfg.Metrics, cfg.Logger, cfg.Clock)
	store := shard.NewMap(cfg.Shards)

	c := &Manager{
		store:   store,
		engine:  eng,
		sweeper: sweeper.New(store, eng, cfg.sweepInterval()),
	}

	if cfg.SweepInterval >= 0 {
		// A freshly built sweeper cannot already be running.
		_ = c.sweeper.Start(ctx)
	}

	return c
}

var (
	defaultOnce    sync.Once
	defaultManager *Manager
)

// Default returns the process-wide Manager, built with the zero Config on first use.
// Code that can take a *Manager as a dependency should prefer that.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultManager = New(Config{})
	})
	return defaultManager
}

func invalidTTL(key string, ttl time.Duration) error {
	return fmt.Errorf("%w: key %q, ttl %s", ErrInvalidTTL, key, ttl)
}

/*
Set stores a value for ttl. Zero means forever.
*/
func (c *Manager) Set(key string, value any, ttl time.Duration) error {
	if ttl < 0 {
		return invalidTTL(key, ttl)
	}

	c.store.Put(key, c.engine.NewEntry(key, value, ttl))
	return nil
}

/*
Get retrieves a value from the cache.
An expired hit is removed before returning a miss.
*/
func (c *Manager) Get(key string) (any, bool) {
	ent, ok := c.store.Get(key)
	if !ok {
		c.engine.Metrics.Miss()
		return nil, false
	}

	if c.engine.IsExpired(ent) {
		// Only drop what we inspected; a concurrent Set keeps its new entry.
		if c.store.CompareAndDelete(key, ent) {
			c.engine.Metrics.Expire()
		}
		c.engine.Metrics.Miss()
		return nil, false
	}

	c.engine.Metrics.Hit()
	return ent.Value, true
}

// live returns the value only if present and not expired, without side effects.
func (c *Manager) live(key string) (any, bool) {
	ent, ok := c.store.Get(key)
	if !ok || c.engine.IsExpired(ent) {
		return nil, false
	}
	return ent.Value, true
}

/*
GetOrLoad returns the cached value or loads it through loader.

singleflight ensures that:
- If 100 goroutines request the same missing key,
  only ONE of them calls the loader.
- Others wait for the result.

The loaded value is installed only if the key still holds what it held before
loading. A Set that lands while the loader runs wins, and its value is returned.
*/
func (c *Manager) GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader types.Loader) (any, error) {
	if ttl < 0 {
		return nil, invalidTTL(key, ttl)
	}

	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		// A flight that finished while we were queuing may have filled the key.
		prev, _ := c.store.Get(key)
		if prev != nil && !c.engine.IsExpired(prev) {
			return prev.Value, nil
		}

		v, err := loader.Load(ctx, key)
		c.engine.Metrics.Load(err)
		if err != nil {
			c.engine.Logger.Debug("load failed", zap.String("key", key), zap.Error(err))
			return nil, fmt.Errorf("load %q: %w", key, err)
		}

		if c.store.CompareAndSwap(key, prev, c.engine.NewEntry(key, v, ttl)) {
			return v, nil
		}

		// Someone wrote the key during the load. Their entry is newer.
		if cur, ok := c.live(key); ok {
			c.engine.Logger.Debug("load superseded by write", zap.String("key", key))
			return cur, nil
		}
		return v, nil
	})
	return v, err
}

// Exists reports whether key is stored, even if it has expired.
func (c *Manager) Exists(key string) bool {
	_, ok := c.store.Get(key)
	return ok
}

// IsExpired reports whether key is absent or expired. It never removes anything.
func (c *Manager) IsExpired(key string) bool {
	ent, _ := c.store.Get(key)
	return c.engine.IsExpired(ent)
}

/*
Remove deletes a key from the cache immediately.
*/
func (c *Manager) Remove(key string) {
	c.store.Delete(key)
}

// RemoveAll drops every entry.
func (c *Manager) RemoveAll() {
	c.store.Clear()
}

// Keys returns the stored keys, expired-but-unswept ones included.
func (c *Manager) Keys() []string {
	return c.store.Keys()
}

// Entries returns copies of the stored entries, expired-but-unswept ones included.
func (c *Manager) Entries() map[string]types.CacheEntry {
	raw := c.store.Entries()

	out := make(map[string]types.CacheEntry, len(raw))
	for k, ent := range raw {
		out[k] = *ent
	}
	return out
}

// EntryInfo returns a copy of the stored entry without applying expiration.
func (c *Manager) EntryInfo(key string) (types.CacheEntry, bool) {
	ent, ok := c.store.Get(key)
	if !ok {
		return types.CacheEntry{}, false
	}
	return *ent, true
}

// Len returns the number of stored entries, expired-but-unswept ones included.
func (c *Manager) Len() int {
	return c.store.Len()
}

// Sweep runs one reclamation pass synchronously. It works whether or not
// the background sweeper is running.
func (c *Manager) Sweep() int {
	return c.sweeper.RunOnce()
}

/*
Close gracefully shuts down the cache's background work.
Entries stay in place and remain readable.
*/
func (c *Manager) Close() error {
	c.sweeper.Stop()
	return nil
}
