package cache

import (
	"context"
	"time"

	"github.com/krisalay/ttl-cache/types"
)

/*
Cache defines the PUBLIC API of our in-memory TTL cache.
This is a contract that guarantees certain behaviors, without exposing internals.
Sharded storage, expiration and the background sweeper are all
hidden behind this interface.

Two families of reads exist on purpose:
  - Get and IsExpired apply expiration; callers never see a stale value.
  - Exists, EntryInfo, Keys, Entries and Len show the raw store, including entries
    that have expired but were not reclaimed yet. They exist for diagnostics.
*/
type Cache interface {

	/*
		Set stores value under key for ttl.

		BEHAVIOR:
		---------
		- ttl == 0 means the entry never expires
		- ttl < 0 is rejected with ErrInvalidTTL, never clamped
		- Any existing entry is replaced as a whole and its timer restarts
	*/
	Set(key string, value any, ttl time.Duration) error

	/*
		Get returns the value for key.

		BEHAVIOR:
		---------
		1. Key absent → (nil, false)
		2. Key present but expired → entry is removed, (nil, false)
		3. Otherwise → (value, true); reads never extend the TTL
	*/
	Get(key string) (any, bool)

	/*
		GetOrLoad returns the live value for key or loads it.
		Concurrent misses on the same key share a single Load call.
		The loaded value is stored with ttl.
	*/
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader types.Loader) (any, error)

	// Exists reports raw presence, expired or not.
	Exists(key string) bool

	// IsExpired is true when the key is absent or its entry has expired.
	IsExpired(key string) bool

	/*
		Remove deletes a key from the cache immediately.
		This operation is idempotent: removing a non-existing key is safe.
	*/
	Remove(key string)

	// RemoveAll clears every entry.
	RemoveAll()

	// Keys returns a snapshot of the stored keys in no particular order.
	Keys() []string

	// Entries returns a snapshot of every stored entry by key.
	Entries() map[string]types.CacheEntry

	// EntryInfo returns the stored entry for key without applying expiration.
	EntryInfo(key string) (types.CacheEntry, bool)

	// Len returns the number of stored entries.
	Len() int

	// Sweep runs one reclamation pass now and returns the number of evicted entries.
	Sweep() int

	/*
		Close stops the background sweeper.

		The cache stays usable after Close: reads still expire lazily,
		only the periodic reclamation is gone. Close is safe to call multiple times.
	*/
	Close() error
}
