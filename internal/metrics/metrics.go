// Package metrics exposes the pipeline's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline counters. Register with a prometheus.Registerer
// via New.
type Metrics struct {
	EventsIngested   prometheus.Counter
	DispatchesTotal  *prometheus.CounterVec
	DeliveriesTotal  *prometheus.CounterVec
	DispatchDuration prometheus.Histogram
}

// New creates the pipeline metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hookfy",
			Name:      "events_ingested_total",
			Help:      "Total number of events received from the event transport",
		}),
		DispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hookfy",
			Name:      "dispatches_total",
			Help:      "Total number of dispatches by aggregate status",
		}, []string{"status"}),
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hookfy",
			Name:      "deliveries_total",
			Help:      "Total number of per-endpoint delivery attempts by outcome",
		}, []string{"outcome"}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hookfy",
			Name:      "dispatch_duration_seconds",
			Help:      "End-to-end dispatch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.EventsIngested,
		m.DispatchesTotal,
		m.DeliveriesTotal,
		m.DispatchDuration,
	)
	return m
}
