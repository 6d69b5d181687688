package cache

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/krisalay/ttl-cache/expiration"
	"github.com/krisalay/ttl-cache/shard"
	"github.com/krisalay/ttl-cache/sweeper"
	"github.com/krisalay/ttl-cache/types"
)

// DefaultSweepInterval is how often expired entries are reclaimed unless configured otherwise.
const DefaultSweepInterval = sweeper.DefaultInterval

// DefaultShards is the shard count used when Config.Shards is not positive.
const DefaultShards = shard.DefaultShards

// ErrInvalidTTL is returned for negative TTLs.
var ErrInvalidTTL = errors.New("ttl must not be negative")

// Config controls how a Manager is built. The zero value is a valid config.
//
//   - Shards <= 0 uses DefaultShards; other values are rounded up to a power of two
//   - SweepInterval == 0 uses DefaultSweepInterval
//   - SweepInterval < 0 disables the background sweeper (lazy expiration still works)
type Config struct {
	Shards        int
	SweepInterval time.Duration

	// Expiration defaults to expiration.FixedTTL.
	Expiration expiration.Strategy

	// Metrics defaults to types.NoopMetrics.
	Metrics types.Metrics

	// Logger defaults to zap.NewNop().
	Logger *zap.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time
}

func (cfg Config) sweepInterval() time.Duration {
	if cfg.SweepInterval == 0 {
		return DefaultSweepInterval
	}
	return cfg.SweepInterval
}
