package expiration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/krisalay/ttl-cache/types"
)

func TestFixedTTLIsExpired(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ent  *types.CacheEntry
		now  time.Time
		want bool
	}{
		{
			name: "absent entry",
			ent:  nil,
			now:  base,
			want: true,
		},
		{
			name: "zero ttl never expires",
			ent:  &types.CacheEntry{TTL: 0, LastRefreshed: base},
			now:  base.Add(100 * 365 * 24 * time.Hour),
			want: false,
		},
		{
			name: "before deadline",
			ent:  &types.CacheEntry{TTL: 100 * time.Millisecond, LastRefreshed: base},
			now:  base.Add(99 * time.Millisecond),
			want: false,
		},
		{
			name: "exactly at deadline",
			ent:  &types.CacheEntry{TTL: 100 * time.Millisecond, LastRefreshed: base},
			now:  base.Add(100 * time.Millisecond),
			want: true,
		},
		{
			name: "after deadline",
			ent:  &types.CacheEntry{TTL: 100 * time.Millisecond, LastRefreshed: base},
			now:  base.Add(time.Second),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FixedTTL{}.IsExpired(tt.ent, tt.now))
		})
	}
}

func TestFixedTTLOnWrite(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ent := &types.CacheEntry{Key: "k", TTL: time.Second}

	FixedTTL{}.OnWrite(ent, now)

	assert.Equal(t, now, ent.LastRefreshed)
	assert.Equal(t, now.Add(time.Second), ent.ExpiresAt())
}
