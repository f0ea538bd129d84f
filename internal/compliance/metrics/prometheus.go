// Package metrics registers the Prometheus instrumentation for the
// compliance core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for checks, violations,
// caching, and regulation refresh.
type Metrics struct {
	ChecksTotal     *prometheus.CounterVec
	CheckDuration   *prometheus.HistogramVec
	ViolationsTotal *prometheus.CounterVec
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	RefreshTotal    *prometheus.CounterVec
	RulesLoaded     *prometheus.GaugeVec
}

// New registers collectors on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers collectors on reg. Tests pass a private registry
// to avoid duplicate registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "comply",
				Subsystem: "checker",
				Name:      "checks_total",
				Help:      "Total number of compliance checks performed",
			},
			[]string{"kind", "target"},
		),
		CheckDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "comply",
				Subsystem: "checker",
				Name:      "check_duration_seconds",
				Help:      "Time taken to evaluate one content item",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		ViolationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "comply",
				Subsystem: "checker",
				Name:      "violations_total",
				Help:      "Total number of violations found",
			},
			[]string{"kind", "severity", "target"},
		),
		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "comply",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Result cache hits",
			},
			[]string{"kind"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "comply",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Result cache misses",
			},
			[]string{"kind"},
		),
		RefreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "comply",
				Subsystem: "regulatory",
				Name:      "refresh_total",
				Help:      "Regulation refresh attempts by outcome",
			},
			[]string{"status"},
		),
		RulesLoaded: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "comply",
				Subsystem: "store",
				Name:      "entries",
				Help:      "Number of rules or regulations currently stored",
			},
			[]string{"kind"},
		),
	}
}
