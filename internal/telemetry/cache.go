package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics implements kv.Observer on top of Prometheus collectors.
type CacheMetrics struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	evicted prometheus.Counter
	items   prometheus.Gauge
	bytes   prometheus.Gauge
}

// NewCacheMetrics creates the cache collectors and registers them with reg.
// Pass Registry for the process-wide /metrics endpoint.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	makeC := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		})
	}
	makeG := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		})
	}

	m := &CacheMetrics{
		hits:    makeC("hits_total", "Number of Get calls that found the key."),
		misses:  makeC("misses_total", "Number of Get calls that missed."),
		evicted: makeC("evicted_total", "Number of entries evicted to stay within capacity."),
		items:   makeG("items", "Number of stored entries."),
		bytes:   makeG("bytes", "Bytes accounted as len(key)+len(value)."),
	}
	reg.MustRegister(m.hits, m.misses, m.evicted, m.items, m.bytes)
	return m
}

func (m *CacheMetrics) IncHit()  { m.hits.Inc() }
func (m *CacheMetrics) IncMiss() { m.misses.Inc() }

func (m *CacheMetrics) AddEvicted(n int) {
	if n > 0 {
		m.evicted.Add(float64(n))
	}
}

func (m *CacheMetrics) SetUsage(items int, bytes int64) {
	m.items.Set(float64(items))
	m.bytes.Set(float64(bytes))
}

// SetCapacity publishes the configured byte budget.
func SetCapacity(reg prometheus.Registerer, capacity int64) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "capacity_bytes",
		Help:      "Configured byte budget.",
	})
	g.Set(float64(capacity))
	reg.MustRegister(g)
}
