package recommendation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for response parsing.
type Metrics struct {
	// ParseOutcomes counts parsed replies by outcome
	// ("clarification", "structured", "fallback", "degraded").
	ParseOutcomes *prometheus.CounterVec
}

// NewMetrics creates parse metrics and registers them with reg.
//
// Metrics:
//   - advisord_parse_outcomes_total{outcome} - parsed agent replies by outcome
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ParseOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "advisord",
				Name:      "parse_outcomes_total",
				Help:      "Total number of agent replies parsed, by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) observe(outcome Outcome) {
	if m == nil {
		return
	}
	m.ParseOutcomes.WithLabelValues(string(outcome)).Inc()
}
