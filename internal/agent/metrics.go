package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for model requests.
type Metrics struct {
	Requests *prometheus.CounterVec
	Retries  *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates agent metrics and registers them with reg.
//
// Metrics:
//   - advisord_agent_requests_total{provider,outcome} - consultations by outcome ("success" or "error")
//   - advisord_agent_retries_total{provider} - attempts beyond the first
//   - advisord_agent_request_duration_seconds{provider} - consultation latency including retries
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "advisord",
			Name:      "agent_requests_total",
			Help:      "Total number of agent consultations, by outcome",
		}, []string{"provider", "outcome"}),
		Retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "advisord",
			Name:      "agent_retries_total",
			Help:      "Total number of retried model requests",
		}, []string{"provider"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "advisord",
			Name:      "agent_request_duration_seconds",
			Help:      "Duration of agent consultations including retries",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"provider"}),
	}
}

func (m *Metrics) observe(provider string, err error, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.Requests.WithLabelValues(provider, outcome).Inc()
	if attempts > 1 {
		m.Retries.WithLabelValues(provider).Add(float64(attempts - 1))
	}
	m.Duration.WithLabelValues(provider).Observe(elapsed.Seconds())
}
