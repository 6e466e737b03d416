package cloudapi

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes of VM API calls
const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeTimeout  = "timeout"
	outcomeCanceled = "canceled"
)

// Metrics are prometheus collectors of the listing service.
// A nil *Metrics records nothing.
type Metrics struct {
	upstreamRequests *prometheus.CounterVec
	upstreamDuration prometheus.Histogram
	anomalies        *prometheus.CounterVec
}

// NewMetrics creates service metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cloudapi",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Number of VM API calls by outcome.",
		}, []string{"outcome"}),
		upstreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cloudapi",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Time spent waiting for VM API.",
			Buckets:   prometheus.DefBuckets,
		}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cloudapi",
			Subsystem: "mapping",
			Name:      "anomalies_total",
			Help:      "Number of VM record values that could not be mapped faithfully.",
		}, []string{"field"}),
	}

	for _, c := range []prometheus.Collector{m.upstreamRequests, m.upstreamDuration, m.anomalies} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register listing metrics: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) observeUpstream(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.upstreamRequests.WithLabelValues(outcome).Inc()
	m.upstreamDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) countAnomaly(field string) {
	if m == nil {
		return
	}

	m.anomalies.WithLabelValues(field).Inc()
}
