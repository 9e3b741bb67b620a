// Package metrics exposes the engine's cache hit/miss counters and
// formatting-call statistics as Prometheus collectors, the way the
// original bibformat's admin pages surfaced cache statistics and the
// teacher exposes its pipeline counters — registered against a
// prometheus.Registerer and scraped over HTTP by promhttp.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"bibformat/internal/formaterror"
)

// Metrics holds every collector the engine reports through. It implements
// both cache.Sink (hit/miss accounting per cache kind) and
// formaterror.Sink (failures by taxonomy code), so it can be wired
// directly into engine.Options without an adapter.
type Metrics struct {
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	formatErrors     *prometheus.CounterVec
	formatDuration   prometheus.Histogram
	recordsFormatted prometheus.Counter
}

// New creates the collector set and registers it against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bibformat",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache hits, by cache name.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bibformat",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache misses, by cache name.",
		}, []string{"cache"}),
		formatErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bibformat",
			Subsystem: "engine",
			Name:      "format_errors_total",
			Help:      "FormatErrors registered during formatRecord calls, by taxonomy code.",
		}, []string{"code"}),
		formatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bibformat",
			Subsystem: "engine",
			Name:      "format_record_duration_seconds",
			Help:      "Wall-clock time spent in Engine.FormatRecord.",
			Buckets:   prometheus.DefBuckets,
		}),
		recordsFormatted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bibformat",
			Subsystem: "engine",
			Name:      "records_formatted_total",
			Help:      "Total number of FormatRecord calls completed.",
		}),
	}
	reg.MustRegister(m.cacheHits, m.cacheMisses, m.formatErrors, m.formatDuration, m.recordsFormatted)
	return m
}

// CacheHit implements cache.Sink.
func (m *Metrics) CacheHit(cacheName string) { m.cacheHits.WithLabelValues(cacheName).Inc() }

// CacheMiss implements cache.Sink.
func (m *Metrics) CacheMiss(cacheName string) { m.cacheMisses.WithLabelValues(cacheName).Inc() }

// Register implements formaterror.Sink.
func (m *Metrics) Register(err *formaterror.FormatError) {
	m.formatErrors.WithLabelValues(string(err.Code)).Inc()
}

// ObserveFormatRecord records one completed FormatRecord call's duration.
func (m *Metrics) ObserveFormatRecord(d time.Duration) {
	m.formatDuration.Observe(d.Seconds())
	m.recordsFormatted.Inc()
}
