package shard

import (
	"sync"

	"github.com/krisalay/ttl-cache/types"
)

/*
This file defines how data is actually stored inside a shard.
- Reads take a shared lock and never wait for each other
- Writes are O(1): they touch one key under the shard's write lock
- Snapshots copy the shard once, so a long scan holds no lock while iterating

Only one shard is locked per operation, so writers to other shards carry on.
*/

// ShardStore is the interface used by a shard to store and retrieve cache entries.
type ShardStore interface {

	// Get retrieves an entry by key.
	Get(string) (*types.CacheEntry, bool)

	// Put inserts or replaces an entry.
	Put(string, *types.CacheEntry)

	// Delete removes an entry. Deleting a missing key is a no-op.
	Delete(string)

	// CompareAndDelete removes the key only while it still maps to the given entry.
	CompareAndDelete(string, *types.CacheEntry) bool

	// CompareAndSwap installs new only while the key still maps to old.
	// A nil old means the key must be absent.
	CompareAndSwap(key string, old, new *types.CacheEntry) bool

	// Clear drops every entry.
	Clear()

	// Snapshot returns a private copy of the entries. The caller owns the map.
	Snapshot() map[string]*types.CacheEntry

	// Size returns how many entries are stored.
	Size() int64
}

// mapStore is a ShardStore backed by a plain map and a RWMutex.
type mapStore struct {
	mu sync.RWMutex
	m  map[string]*types.CacheEntry
}

func NewMapStore() *mapStore {
	return &mapStore{m: make(map[string]*types.CacheEntry)}
}

// Get retrieves an entry from the store.
func (s *mapStore) Get(key string) (*types.CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ent, ok := s.m[key]
	return ent, ok
}

// Put inserts or updates an entry in the store.
func (s *mapStore) Put(key string, ent *types.CacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[key] = ent
}

// Delete removes an entry from the store.
func (s *mapStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.m, key)
}

/*
CompareAndDelete removes key only if it still maps to ent.

The check and the removal happen under the same write lock, so an entry
installed by a concurrent Put is never removed on behalf of the entry it replaced.
*/
func (s *mapStore) CompareAndDelete(key string, ent *types.CacheEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.m[key]; !ok || cur != ent {
		return false
	}
	delete(s.m, key)
	return true
}

// CompareAndSwap replaces old with new, or inserts new when old is nil and
// the key is absent.
func (s *mapStore) CompareAndSwap(key string, old, new *types.CacheEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.m[key]
	if old == nil {
		if ok {
			return false
		}
	} else if !ok || cur != old {
		return false
	}

	s.m[key] = new
	return true
}

// Clear replaces the map with an empty one.
func (s *mapStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m = make(map[string]*types.CacheEntry)
}

// Snapshot copies the map under the read lock.
func (s *mapStore) Snapshot() map[string]*types.CacheEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*types.CacheEntry, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

// Size returns how many entries are in the store.
func (s *mapStore) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.m))
}
