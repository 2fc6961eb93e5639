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
	// Simulation metrics
	SimulationsTotal   *prometheus.CounterVec
	RoundsSimulated    prometheus.Counter
	SimulationDuration *prometheus.HistogramVec
	InvalidParameters  *prometheus.CounterVec

	// Sweep metrics
	SweepsTotal      *prometheus.CounterVec
	SweepDuration    prometheus.Histogram
	SweepPointsDone  prometheus.Counter
	SweepSubscribers prometheus.Gauge

	// Analysis metrics
	AnalysisPhasesTotal   *prometheus.CounterVec
	AnalysisPhaseDuration *prometheus.HistogramVec
	ReportsGenerated      prometheus.Counter

	// API metrics
	CacheLookups *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulAnalysis prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "selfish_mining_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Simulation metrics
		SimulationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of simulations by kind",
		}, []string{"kind"}),
		RoundsSimulated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "rounds_total",
			Help:      "Total number of settled heights simulated",
		}),
		SimulationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "duration_seconds",
			Help:      "Simulation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"kind"}),
		InvalidParameters: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "invalid_parameters_total",
			Help:      "Total number of requests rejected before sampling",
		}, []string{"operation"}),

		// Sweep metrics
		SweepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Total number of alpha sweeps by status",
		}, []string{"status"}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Alpha sweep duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		SweepPointsDone: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "points_total",
			Help:      "Total number of sweep grid points completed",
		}),
		SweepSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "progress_subscribers",
			Help:      "Current number of sweep progress subscribers",
		}),

		// Analysis metrics
		AnalysisPhasesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "phases_total",
			Help:      "Total number of analysis phases by status",
		}, []string{"phase", "status"}),
		AnalysisPhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Analysis phase duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		ReportsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		// API metrics
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome",
		}, []string{"result"}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulAnalysis: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_analysis_timestamp",
			Help:      "Unix timestamp of last successful analysis run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordSimulation records one completed simulation.
func RecordSimulation(kind string, rounds int, seconds float64) {
	DefaultMetrics.SimulationsTotal.WithLabelValues(kind).Inc()
	DefaultMetrics.RoundsSimulated.Add(float64(rounds))
	DefaultMetrics.SimulationDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordInvalidParameter records a rejected request.
func RecordInvalidParameter(operation string) {
	DefaultMetrics.InvalidParameters.WithLabelValues(operation).Inc()
}

// RecordSweepPoint increments the completed sweep points counter.
func RecordSweepPoint() {
	DefaultMetrics.SweepPointsDone.Inc()
}

// RecordSweep records a finished sweep.
func RecordSweep(status string, seconds float64) {
	DefaultMetrics.SweepsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.SweepDuration.Observe(seconds)
}

// AddSweepSubscribers adjusts the progress subscriber gauge by delta.
func AddSweepSubscribers(delta int) {
	DefaultMetrics.SweepSubscribers.Add(float64(delta))
}

// RecordCacheLookup records a result cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheLookups.WithLabelValues(result).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordAnalysisPhase records an analysis phase.
func RecordAnalysisPhase(phase, status string, durationSeconds float64) {
	DefaultMetrics.AnalysisPhasesTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.AnalysisPhaseDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordReportGenerated increments the reports counter.
func RecordReportGenerated() {
	DefaultMetrics.ReportsGenerated.Inc()
}

// MarkAnalysisSuccess sets the last successful analysis timestamp.
func MarkAnalysisSuccess(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulAnalysis.Set(float64(unixSeconds))
}
