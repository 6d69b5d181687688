// This file defines how cache entries expire over time.

package expiration

import (
	"time"

	"github.com/krisalay/ttl-cache/types"
)

/*
Strategy is the interface that all expiration rules must follow. Instead of hard-coding
expiration logic into the cache, we define a strategy so expiration behavior can be swapped easily.
Both the read path and the sweeper ask the same Strategy, so they always agree on what "expired" means.
*/
type Strategy interface {

	// IsExpired checks if the entry is expired at now.
	// A nil entry stands for an absent key and is always expired.
	IsExpired(*types.CacheEntry, time.Time) bool

	// OnWrite is called on a fresh entry right before it is stored.
	OnWrite(*types.CacheEntry, time.Time)
}
