package metrics

import (
	"fmt"
	"time"

	"github.com/layer-3/recaptcha/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements the Metrics interface with Prometheus collectors
type PrometheusMetrics struct {
	verifications *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg
func NewPrometheusMetrics(reg prometheus.Registerer) (ports.Metrics, error) {
	m := &PrometheusMetrics{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recaptcha",
			Name:      "verifications_total",
			Help:      "Number of verification attempts by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "recaptcha",
			Name:      "verification_duration_seconds",
			Help:      "Time spent verifying a submission.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{m.verifications, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// ObserveVerification records one verification
func (m *PrometheusMetrics) ObserveVerification(outcome string, duration time.Duration) {
	m.verifications.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}
