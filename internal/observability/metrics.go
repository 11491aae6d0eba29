// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cycle metrics
	CycleRunsTotal *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
	StageErrors    *prometheus.CounterVec
	CurrentCycle   prometheus.Gauge

	// Discovery metrics
	TrialsGenerated   prometheus.Counter
	PatternsPromoted  prometheus.Counter
	PatternsRefreshed prometheus.Counter

	// Tournament metrics
	TournamentsRun     prometheus.Counter
	TournamentsSkipped prometheus.Counter

	// API metrics
	VotesCast *prometheus.CounterVec
	WSClients prometheus.Gauge

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "coinswarm"
	}

	return &Metrics{
		// Cycle metrics
		CycleRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Total number of cycle invocations by status",
		}, []string{"status"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Cycle invocation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		StageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "stage_errors_total",
			Help:      "Total number of stage failures by stage and taxonomy kind",
		}, []string{"stage", "kind"}),
		CurrentCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "current",
			Help:      "Highest claimed cycle number",
		}),

		// Discovery metrics
		TrialsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "trials_generated_total",
			Help:      "Total number of trials generated",
		}),
		PatternsPromoted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "patterns_promoted_total",
			Help:      "Total number of patterns promoted into the registry",
		}),
		PatternsRefreshed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "patterns_refreshed_total",
			Help:      "Total number of pattern statistic refreshes",
		}),

		// Tournament metrics
		TournamentsRun: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tournament",
			Name:      "runs_total",
			Help:      "Total number of decided tournaments",
		}),
		TournamentsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tournament",
			Name:      "skipped_total",
			Help:      "Total number of pairings skipped for insufficient data",
		}),

		// API metrics
		VotesCast: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "votes_cast_total",
			Help:      "Total number of committee votes by direction",
		}, []string{"direction"}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "ws_clients",
			Help:      "Number of connected websocket clients",
		}),

		// Health metrics
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last successful cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCycleRun records one cycle invocation outcome.
func RecordCycleRun(status string, durationSeconds float64) {
	DefaultMetrics.CycleRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.CycleDuration.Observe(durationSeconds)
	if status == "success" {
		DefaultMetrics.LastSuccessfulCycle.Set(float64(time.Now().Unix()))
	}
}

// RecordCycleReport folds a completed cycle's counts into the counters.
func RecordCycleReport(cycle int64, trials, promoted, refreshed, run, skipped int) {
	DefaultMetrics.CurrentCycle.Set(float64(cycle))
	DefaultMetrics.TrialsGenerated.Add(float64(trials))
	DefaultMetrics.PatternsPromoted.Add(float64(promoted))
	DefaultMetrics.PatternsRefreshed.Add(float64(refreshed))
	DefaultMetrics.TournamentsRun.Add(float64(run))
	DefaultMetrics.TournamentsSkipped.Add(float64(skipped))
}

// RecordStageError records a stage failure by taxonomy kind.
func RecordStageError(stage, kind string) {
	DefaultMetrics.StageErrors.WithLabelValues(stage, kind).Inc()
}

// RecordVote increments the vote counter for a direction.
func RecordVote(direction string) {
	DefaultMetrics.VotesCast.WithLabelValues(direction).Inc()
}

// WSClientConnected bumps the connected client gauge.
func WSClientConnected() {
	DefaultMetrics.WSClients.Inc()
}

// WSClientDisconnected drops the connected client gauge.
func WSClientDisconnected() {
	DefaultMetrics.WSClients.Dec()
}
