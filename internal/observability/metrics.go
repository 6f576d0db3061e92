// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Auction metrics
	DepositsTotal       prometheus.Counter
	WithdrawalsTotal    *prometheus.CounterVec
	DepositedVolume     prometheus.Counter
	PenaltyVolume       prometheus.Counter
	LaunchEventsCreated prometheus.Counter
	AuctionsFinalized   prometheus.Counter
	ClaimsTotal         *prometheus.CounterVec
	LaunchEventPhase    *prometheus.GaugeVec

	// Event pipeline metrics
	DispatcherQueueDepth prometheus.Gauge
	EventsDispatched     *prometheus.CounterVec
	SinkErrors           *prometheus.CounterVec
	WSClients            prometheus.Gauge

	// Latency metrics
	HTTPRequestDuration *prometheus.HistogramVec
	RPCCallLatency      *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastPhaseCheck prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "rocket_mimo"
	}

	return &Metrics{
		// Auction metrics
		DepositsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "deposits_total",
			Help:      "Total number of deposits",
		}),
		WithdrawalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "withdrawals_total",
			Help:      "Total number of withdrawals by phase",
		}, []string{"phase"}),
		DepositedVolume: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "deposited_ether_total",
			Help:      "Total deposited wrapped asset in ether",
		}),
		PenaltyVolume: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "penalty_ether_total",
			Help:      "Total withdrawal penalties in ether",
		}),
		LaunchEventsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "factory",
			Name:      "launch_events_created_total",
			Help:      "Total number of launch events created",
		}),
		AuctionsFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "finalized_total",
			Help:      "Total number of finalized auctions",
		}),
		ClaimsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "claims_total",
			Help:      "Total number of claims by claimant kind",
		}, []string{"kind"}),
		LaunchEventPhase: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "phase",
			Help:      "Current phase ordinal per launch event (0 not started .. 4 ended)",
		}, []string{"launch_event"}),

		// Event pipeline metrics
		DispatcherQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dispatcher_queue_depth",
			Help:      "Current number of events waiting for dispatch",
		}),
		EventsDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dispatched_total",
			Help:      "Total number of ledger events dispatched by type",
		}, []string{"event_type"}),
		SinkErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "sink_errors_total",
			Help:      "Total number of sink failures by sink",
		}, []string{"sink"}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "ws_clients",
			Help:      "Number of connected websocket clients",
		}),

		// Latency metrics
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_latency_seconds",
			Help:      "JSON-RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastPhaseCheck: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_phase_check_timestamp",
			Help:      "Unix timestamp of last phase watcher run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordDeposit records a deposit of amount ether.
func RecordDeposit(amount float64) {
	DefaultMetrics.DepositsTotal.Inc()
	DefaultMetrics.DepositedVolume.Add(amount)
}

// RecordWithdrawal records a withdrawal and its penalty in ether.
func RecordWithdrawal(phase string, penalty float64) {
	DefaultMetrics.WithdrawalsTotal.WithLabelValues(phase).Inc()
	if penalty > 0 {
		DefaultMetrics.PenaltyVolume.Add(penalty)
	}
}

// RecordLaunchEventCreated increments the launch events created counter.
func RecordLaunchEventCreated() {
	DefaultMetrics.LaunchEventsCreated.Inc()
}

// RecordFinalized increments the finalized auctions counter.
func RecordFinalized() {
	DefaultMetrics.AuctionsFinalized.Inc()
}

// RecordClaim records a claim by kind ("user" or "issuer").
func RecordClaim(kind string) {
	DefaultMetrics.ClaimsTotal.WithLabelValues(kind).Inc()
}

// SetPhase updates the phase gauge of a launch event.
func SetPhase(launchEvent string, ordinal int) {
	DefaultMetrics.LaunchEventPhase.WithLabelValues(launchEvent).Set(float64(ordinal))
}

// UpdateQueueDepth updates the dispatcher queue gauge.
func UpdateQueueDepth(n int) {
	DefaultMetrics.DispatcherQueueDepth.Set(float64(n))
}

// RecordDispatched records a dispatched event.
func RecordDispatched(eventType string) {
	DefaultMetrics.EventsDispatched.WithLabelValues(eventType).Inc()
}

// RecordSinkError records a sink failure.
func RecordSinkError(sink string) {
	DefaultMetrics.SinkErrors.WithLabelValues(sink).Inc()
}

// SetWSClients updates the websocket client gauge.
func SetWSClients(n int) {
	DefaultMetrics.WSClients.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, route, status string, seconds float64) {
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(seconds)
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordPhaseCheck stamps the last phase watcher run.
func RecordPhaseCheck(unixSeconds int64) {
	DefaultMetrics.LastPhaseCheck.Set(float64(unixSeconds))
}
