package types

import "time"

// CacheEntry is one stored value and its expiration policy.
//
// Entries are never modified once they are in the store. A later Set on the
// same key installs a new *CacheEntry, so the pointer doubles as a version.
type CacheEntry struct {
	Key   string
	Value any

	// TTL is measured from LastRefreshed. Zero means the entry never expires.
	TTL time.Duration

	// LastRefreshed is stamped on every write, never on reads.
	LastRefreshed time.Time
}

// Eternal reports whether the entry is exempt from expiration.
func (e *CacheEntry) Eternal() bool {
	return e.TTL == 0
}

// ExpiresAt returns the instant the entry becomes expired.
// The zero time is returned for eternal entries.
func (e *CacheEntry) ExpiresAt() time.Time {
	if e.Eternal() {
		return time.Time{}
	}
	return e.LastRefreshed.Add(e.TTL)
}
