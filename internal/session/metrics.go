package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	reasonLookup  = "lookup"
	reasonCleanup = "cleanup"
)

// Metrics holds Prometheus metrics for the session store.
type Metrics struct {
	Active  prometheus.Gauge
	Created prometheus.Counter
	Expired *prometheus.CounterVec
}

// NewMetrics creates session metrics and registers them with reg.
//
// Metrics:
//   - advisord_sessions_active - sessions currently held
//   - advisord_sessions_created_total - sessions created
//   - advisord_sessions_expired_total{reason} - sessions evicted ("lookup" or "cleanup")
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "advisord",
			Name:      "sessions_active",
			Help:      "Number of sessions currently held in memory",
		}),
		Created: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "advisord",
			Name:      "sessions_created_total",
			Help:      "Total number of sessions created",
		}),
		Expired: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "advisord",
			Name:      "sessions_expired_total",
			Help:      "Total number of sessions evicted after the idle timeout",
		}, []string{"reason"}),
	}
}

func (m *Metrics) created(active int) {
	if m == nil {
		return
	}
	m.Created.Inc()
	m.Active.Set(float64(active))
}

func (m *Metrics) expired(reason string, n, active int) {
	if m == nil {
		return
	}
	m.Expired.WithLabelValues(reason).Add(float64(n))
	m.Active.Set(float64(active))
}
