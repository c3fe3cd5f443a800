package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every relay collector and is served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// EndpointConnectivityStatus tracks the gRPC channel to the ingestion endpoint.
	// 1 = Ready, 0 = Not Ready (Idle, Connecting, TransientFailure, Shutdown)
	EndpointConnectivityStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetrelay_endpoint_connectivity_status",
			Help: "The connectivity status to the ingestion endpoint (1=Ready, 0=NotReady).",
		},
	)

	// FeaturesSentTotal counts features accepted by the transport.
	FeaturesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetrelay_features_sent_total",
			Help: "Total number of features delivered to the ingestion endpoint.",
		},
		[]string{"mode"}, // mode: stream/unary
	)

	// SendFailuresTotal counts batches dropped by the dispatcher.
	SendFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetrelay_send_failures_total",
			Help: "Total number of batches that could not be delivered.",
		},
		[]string{"mode", "reason"}, // reason: token/closed/transport
	)

	// TokenRefreshTotal counts token portal calls.
	TokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetrelay_token_refresh_total",
			Help: "Total number of bearer token refresh attempts.",
		},
		[]string{"result"}, // result: success/denied/error
	)

	// CycleDuration observes the wall-clock time of one poll cycle.
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetrelay_cycle_duration_seconds",
			Help:    "Duration of a fetch-transform-dispatch cycle.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CycleFailuresTotal counts cycles that ended early.
	CycleFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetrelay_cycle_failures_total",
			Help: "Total number of poll cycles that ended with an error.",
		},
		[]string{"kind"}, // kind: fetch/transform/token/dispatch/unknown
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		EndpointConnectivityStatus,
		FeaturesSentTotal,
		SendFailuresTotal,
		TokenRefreshTotal,
		CycleDuration,
		CycleFailuresTotal,
	)
}
