package shard

import "github.com/krisalay/ttl-cache/types"

/*
This file defines what a "Shard" is. A shard is a small, independent piece of the cache.
Instead of having: One big map and one big lock
We split the cache into many shards. Each shard:
- Holds some portion of the data
- Has its own lock
- Blocks only the callers whose keys hash to it
*/

type Shard struct {

	// Store holds the actual key → entry data for this shard.
	Store ShardStore
}

func NewShard() *Shard {
	return &Shard{Store: NewMapStore()}
}

// DefaultShards is used when the configured shard count is not positive.
const DefaultShards = 16

/*
Map is the concurrent key → entry store shared by every cache caller and the sweeper.

Each operation is atomic on its own. Nothing is atomic across calls: a Get followed
by a Delete can interleave with a Put from another goroutine. Use CompareAndDelete
when a removal must only apply to the entry that was inspected.
*/
type Map struct {
	shards   []*Shard
	selector Selector
}

// NewMap builds a Map with n shards, rounded up to the next power of two.
func NewMap(n int) *Map {
	if n <= 0 {
		n = DefaultShards
	}
	n = nextPowerOfTwo(n)

	s := make([]*Shard, n)
	for i := range s {
		s[i] = NewShard()
	}

	return &Map{
		shards:   s,
		selector: FNVSelector{},
	}
}

func (m *Map) shard(key string) *Shard {
	return m.selector.Select(key, m.shards)
}

// Shards returns the number of shards.
func (m *Map) Shards() int {
	return len(m.shards)
}

// Put inserts or replaces the entry for key.
func (m *Map) Put(key string, ent *types.CacheEntry) {
	m.shard(key).Store.Put(key, ent)
}

// Get returns the raw entry; it does not look at expiration.
func (m *Map) Get(key string) (*types.CacheEntry, bool) {
	return m.shard(key).Store.Get(key)
}

// Delete removes key. A missing key is a no-op.
func (m *Map) Delete(key string) {
	m.shard(key).Store.Delete(key)
}

// CompareAndDelete removes key only while it still maps to ent, and reports
// whether it did.
func (m *Map) CompareAndDelete(key string, ent *types.CacheEntry) bool {
	return m.shard(key).Store.CompareAndDelete(key, ent)
}

// CompareAndSwap installs new only while key still maps to old. Pass a nil
// old to insert only when key is absent.
func (m *Map) CompareAndSwap(key string, old, new *types.CacheEntry) bool {
	return m.shard(key).Store.CompareAndSwap(key, old, new)
}

// Clear empties every shard. Shards are cleared one after another, so a
// concurrent Put may survive a Clear that started before it.
func (m *Map) Clear() {
	for _, s := range m.shards {
		s.Store.Clear()
	}
}

// Keys returns the keys present at call time, in no particular order.
func (m *Map) Keys() []string {
	snaps := m.snapshots()

	n := 0
	for _, snap := range snaps {
		n += len(snap)
	}

	out := make([]string, 0, n)
	for _, snap := range snaps {
		for k := range snap {
			out = append(out, k)
		}
	}
	return out
}

// Entries returns a freshly allocated map of the entries present in each shard
// when it was copied.
// The entries themselves are shared with the store and must not be modified.
func (m *Map) Entries() map[string]*types.CacheEntry {
	snaps := m.snapshots()

	n := 0
	for _, snap := range snaps {
		n += len(snap)
	}

	out := make(map[string]*types.CacheEntry, n)
	for _, snap := range snaps {
		for k, v := range snap {
			out[k] = v
		}
	}
	return out
}

// Len returns the number of stored entries, expired ones included.
func (m *Map) Len() int {
	var n int64
	for _, s := range m.shards {
		n += s.Store.Size()
	}
	return int(n)
}

func (m *Map) snapshots() []map[string]*types.CacheEntry {
	out := make([]map[string]*types.CacheEntry, len(m.shards))
	for i, s := range m.shards {
		out[i] = s.Store.Snapshot()
	}
	return out
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
