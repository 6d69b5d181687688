package expiration

import (
	"time"

	"github.com/krisalay/ttl-cache/types"
)

/*
FixedTTL expires an entry a fixed duration after it was last written.
Reads never push the deadline forward; only a new Set does.

	TTL == 0                          → never expires
	now - LastRefreshed >= TTL        → expired
*/
type FixedTTL struct{}

// IsExpired checks whether the entry is expired at this moment.
// The boundary is inclusive: an entry is already expired at exactly TTL elapsed.
func (FixedTTL) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	if ent == nil {
		return true
	}
	if ent.Eternal() {
		return false
	}
	return now.Sub(ent.LastRefreshed) >= ent.TTL
}

// OnWrite records the write time the TTL is measured from.
func (FixedTTL) OnWrite(ent *types.CacheEntry, now time.Time) {
	ent.LastRefreshed = now
}
