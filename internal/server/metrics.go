package server

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the engine's Prometheus instruments, grounded on the
// corpus's client_golang usage: one counter per dispatch outcome kind, one
// histogram for dispatch latency.
type Metrics struct {
	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
}

// NewMetrics registers and returns a fresh Metrics set on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storyengine",
			Name:      "dispatch_total",
			Help:      "Total number of gateway-triggered story runs, by outcome.",
		}, []string{"outcome"}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storyengine",
			Name:      "dispatch_duration_seconds",
			Help:      "Gateway-triggered story run duration in seconds, by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.DispatchTotal, m.DispatchDuration)
	return m
}
