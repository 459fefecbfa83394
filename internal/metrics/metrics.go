package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ledger metrics
	LevelAliveCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reaper_level_alive_positions",
			Help: "Alive positions per level",
		},
		[]string{"level"},
	)

	LevelTotalStaked = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reaper_level_total_staked",
			Help: "Total staked value per level",
		},
		[]string{"level"},
	)

	LedgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reaper_ledger_operations_total",
			Help: "Total ledger operations",
		},
		[]string{"operation", "status"}, // status: success|error
	)

	Cullings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reaper_cullings_total",
			Help: "Total capacity evictions",
		},
		[]string{"level"},
	)

	// Scan metrics
	ScansFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reaper_scans_finalized_total",
			Help: "Total finalized scans",
		},
		[]string{"level"},
	)

	Deaths = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reaper_deaths_total",
			Help: "Total confirmed eliminations",
		},
		[]string{"level"},
	)

	CascadedCapital = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reaper_cascaded_capital_total",
			Help: "Eliminated capital routed by destination",
		},
		[]string{"destination"}, // survivor|upstream|burn|protocol
	)

	// Payout / breaker metrics
	Payouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reaper_payouts_total",
			Help: "Outbound user payouts",
		},
		[]string{"kind", "status"}, // status: paid|rejected
	)

	PayoutValue = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reaper_payout_value_total",
			Help: "Total value paid out to users",
		},
		[]string{"kind"},
	)

	BreakerTrips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reaper_breaker_trips_total",
			Help: "Circuit breaker trips",
		},
	)

	BreakerTripped = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reaper_breaker_tripped",
			Help: "1 while the circuit breaker is tripped",
		},
	)

	// System reset metrics
	SystemResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reaper_system_resets_total",
			Help: "Executed global resets",
		},
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reaper_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reaper_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"worker"},
	)

	// API metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reaper_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reaper_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"route"},
	)
)

// Register registers all collectors with the default registry
func Register() {
	prometheus.MustRegister(
		LevelAliveCount,
		LevelTotalStaked,
		LedgerOperations,
		Cullings,
		ScansFinalized,
		Deaths,
		CascadedCapital,
		Payouts,
		PayoutValue,
		BreakerTrips,
		BreakerTripped,
		SystemResets,
		WorkerExecutions,
		WorkerDuration,
		HTTPRequests,
		HTTPDuration,
	)
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveWorker records one worker run
func ObserveWorker(worker string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(time.Since(start).Seconds())
}
