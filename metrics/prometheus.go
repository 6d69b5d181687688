// Package metrics provides Prometheus metrics for the cache.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/krisalay/ttl-cache/types"
)

var _ types.Metrics = (*Prometheus)(nil)

// Prometheus implements types.Metrics with Prometheus collectors.
type Prometheus struct {
	Hits        prometheus.Counter
	Misses      prometheus.Counter
	Expirations prometheus.Counter

	Sweeps       prometheus.Counter
	SweepPanics  prometheus.Counter
	SweepEvicted prometheus.Histogram
	SweepLatency prometheus.Histogram

	Loads *prometheus.CounterVec
}

// NewPrometheus registers the cache collectors on reg under namespace.
// Pass prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	f := promauto.With(reg)

	return &Prometheus{
		Hits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of Get calls that returned a live value",
		}),
		Misses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of Get calls that found nothing or an expired entry",
		}),
		Expirations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_expirations_total",
			Help:      "Total number of entries removed because their TTL elapsed",
		}),

		Sweeps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_sweeps_total",
			Help:      "Total number of sweeper runs",
		}),
		SweepPanics: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_sweep_panics_total",
			Help:      "Total number of keys whose processing panicked during a sweep",
		}),
		SweepEvicted: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_sweep_evicted",
			Help:      "Number of entries evicted per sweep",
			Buckets:   []float64{0, 1, 10, 100, 1000, 10000, 100000},
		}),
		SweepLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_sweep_duration_seconds",
			Help:      "Sweep duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}),

		Loads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_loads_total",
			Help:      "Total number of loader calls by result",
		}, []string{"result"}),
	}
}

func (m *Prometheus) Hit()        { m.Hits.Inc() }
func (m *Prometheus) Miss()       { m.Misses.Inc() }
func (m *Prometheus) Expire()     { m.Expirations.Inc() }
func (m *Prometheus) SweepPanic() { m.SweepPanics.Inc() }

func (m *Prometheus) Sweep(evicted int, took time.Duration) {
	m.Sweeps.Inc()
	m.SweepEvicted.Observe(float64(evicted))
	m.SweepLatency.Observe(took.Seconds())
}

func (m *Prometheus) Load(err error) {
	if err != nil {
		m.Loads.WithLabelValues("error").Inc()
		return
	}
	m.Loads.WithLabelValues("ok").Inc()
}
