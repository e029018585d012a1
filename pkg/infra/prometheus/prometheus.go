package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	languageLabels = []string{"language"}

	ScannedTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_scanned_total",
			Help: "Total number of content items scanned",
		},
		languageLabels,
	)

	FlaggedTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_flagged_total",
			Help: "Total number of content items flagged for review",
		},
		languageLabels,
	)

	DeletedTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_deleted_total",
			Help: "Total number of content items deleted",
		},
		languageLabels,
	)

	EscalationsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_escalations_total",
			Help: "Oracle escalations by outcome source",
		},
		[]string{"source"},
	)

	WebsocketConnections = promauto.With(registerer).NewGauge(
		prometheus.GaugeOpts{
			Name: "guardian_websocket_connections",
			Help: "Number of live event-stream observers",
		},
	)
)

// Registry exposes the private registry for the /metrics endpoint.
func Registry() *prometheus.Registry {
	return registry
}
