package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PoolMetrics implements executor.Observer.
type PoolMetrics struct {
	workers   prometheus.Gauge
	queued    prometheus.Gauge
	rejected  *prometheus.CounterVec
	completed prometheus.Counter
	panicked  prometheus.Counter
}

func NewPoolMetrics(reg prometheus.Registerer) *PoolMetrics {
	m := &PoolMetrics{
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "workers",
			Help:      "Live worker goroutines.",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "queued_tasks",
			Help:      "Tasks waiting for a worker.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "rejected_total",
			Help:      "Submissions refused, by reason.",
		}, []string{"reason"}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "completed_total",
			Help:      "Tasks that returned normally.",
		}),
		panicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "panicked_total",
			Help:      "Tasks that panicked.",
		}),
	}
	reg.MustRegister(m.workers, m.queued, m.rejected, m.completed, m.panicked)
	return m
}

func (m *PoolMetrics) SetWorkers(n int)          { m.workers.Set(float64(n)) }
func (m *PoolMetrics) SetQueued(n int)           { m.queued.Set(float64(n)) }
func (m *PoolMetrics) IncRejected(reason string) { m.rejected.WithLabelValues(reason).Inc() }
func (m *PoolMetrics) IncCompleted()             { m.completed.Inc() }
func (m *PoolMetrics) IncPanicked()              { m.panicked.Inc() }
