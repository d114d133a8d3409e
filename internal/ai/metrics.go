package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts orchestration outcomes for the /metrics endpoint.
type Metrics struct {
	generationsTotal   *prometheus.CounterVec
	persistFailures    prometheus.Counter
	generationDuration prometheus.Histogram
}

// NewMetrics registers the orchestration metrics with the given
// registerer. Tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		generationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_image_generations_total",
				Help: "Image generation requests by terminal outcome",
			},
			[]string{"outcome"},
		),
		persistFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ai_image_persist_failures_total",
				Help: "Generated images whose history record failed to save",
			},
		),
		generationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ai_image_generation_duration_seconds",
				Help:    "Wall-clock time from submission to terminal state",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 9),
			},
		),
	}
}

func (m *Metrics) observeGeneration(outcome string) {
	if m == nil {
		return
	}
	m.generationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observePersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Metrics) observeDuration(seconds float64) {
	if m == nil {
		return
	}
	m.generationDuration.Observe(seconds)
}
