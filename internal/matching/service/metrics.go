package service

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "matching"

// Cache lookup results.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheError  = "error"
	CacheBypass = "bypass"
)

// Metrics exports matching counters to Prometheus. A nil *Metrics is a no-op.
type Metrics struct {
	cacheLookups  *prometheus.CounterVec
	notifications *prometheus.CounterVec
	eligibility   prometheus.Histogram
}

// NewMetrics registers the matching collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "eligibility_cache_total",
			Help:      "Eligibility cache lookups by result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "notifications_total",
			Help:      "Per-provider notification outcomes.",
		}, []string{"mode", "outcome"}),
		eligibility: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "eligibility_duration_seconds",
			Help:      "Time spent computing an uncached eligibility result.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{m.cacheLookups, m.notifications, m.eligibility}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register matching metric: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) cacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) notification(mode, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) observeEligibility(d time.Duration) {
	if m == nil {
		return
	}
	m.eligibility.Observe(d.Seconds())
}
