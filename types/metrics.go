package types

import "time"

// This file defines how the cache reports what it is doing.

/*
Metrics is an interface that defines what the cache wants to measure.
Each method represents an event in the cache lifecycle. The cache will call these methods whenever something happens.
Implementations must be safe for concurrent use: callers and the sweeper report from different goroutines.
*/
type Metrics interface {

	// Hit is called when Get returns a live value.
	Hit()

	// Miss is called when Get finds nothing, or finds an expired entry.
	Miss()

	// Expire is called once per entry removed because it has passed its TTL,
	// whether lazily on read or by the sweeper.
	Expire()

	// Sweep is called after every sweeper run with the number of evicted entries.
	Sweep(evicted int, took time.Duration)

	// SweepPanic is called when processing a single key inside a sweep panicked.
	SweepPanic()

	// Load is called after GetOrLoad consulted its loader.
	Load(err error)
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.

We don't want to force every user of the cache
to implement metrics, and we don't want
if metrics != nil conditions everywhere.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()                     {}
func (NoopMetrics) Miss()                    {}
func (NoopMetrics) Expire()                  {}
func (NoopMetrics) Sweep(int, time.Duration) {}
func (NoopMetrics) SweepPanic()              {}
func (NoopMetrics) Load(error)               {}
