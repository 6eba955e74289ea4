package metrics

import (
	"time"

	"Sentinel/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchTotal    *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	circuitOpen   *prometheus.GaugeVec
	runDuration   *prometheus.HistogramVec
	runPartial    *prometheus.CounterVec
	signalState   *prometheus.GaugeVec
	hitRate       *prometheus.GaugeVec
	hitSamples    *prometheus.GaugeVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_fetch_total",
				Help: "Total number of upstream fetch attempts",
			},
			[]string{"source", "op"},
		),
		fetchErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_fetch_errors_total",
				Help: "Total number of failed upstream fetches",
			},
			[]string{"source", "op"},
		),
		fetchLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_fetch_duration_seconds",
				Help:    "Duration of upstream fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source", "op"},
		),
		circuitOpen: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentinel_source_circuit_open",
				Help: "1 when the circuit for a source is open, 0 otherwise",
			},
			[]string{"source"},
		),
		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_run_duration_seconds",
				Help:    "Duration of analysis runs in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"mode"},
		),
		runPartial: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_run_partial_total",
				Help: "Total number of runs completed with degraded coverage",
			},
			[]string{"mode"},
		),
		signalState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentinel_signal_state",
				Help: "Latest signal per symbol: 0=SAFE 1=WATCH 2=DANGER",
			},
			[]string{"code"},
		),
		hitRate: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentinel_hit_rate",
				Help: "Rolling signal hit rate per mode",
			},
			[]string{"mode"},
		),
		hitSamples: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentinel_hit_rate_samples",
				Help: "Number of conclusive samples behind the rolling hit rate",
			},
			[]string{"mode"},
		),
		httpRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
	}
}

// RecordFetch records one upstream fetch attempt.
func (r *Recorder) RecordFetch(source, op string, err error, elapsed time.Duration) {
	r.fetchTotal.WithLabelValues(source, op).Inc()
	if err != nil {
		r.fetchErrors.WithLabelValues(source, op).Inc()
	}
	r.fetchLatency.WithLabelValues(source, op).Observe(elapsed.Seconds())
}

// SetCircuitState records the circuit state for a source.
func (r *Recorder) SetCircuitState(source string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	r.circuitOpen.WithLabelValues(source).Set(v)
}

// RecordRun records the duration and coverage of an analysis run.
func (r *Recorder) RecordRun(mode string, elapsed time.Duration, partial bool) {
	r.runDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if partial {
		r.runPartial.WithLabelValues(mode).Inc()
	}
}

// SetSignalState records the latest signal for a symbol.
func (r *Recorder) SetSignalState(code string, state models.SignalState) {
	v := 0.0
	switch state {
	case models.StateWatch:
		v = 1
	case models.StateDanger:
		v = 2
	}
	r.signalState.WithLabelValues(code).Set(v)
}

// SetHitRate records the rolling hit rate and its sample count.
func (r *Recorder) SetHitRate(mode string, rate float64, samples int) {
	r.hitRate.WithLabelValues(mode).Set(rate)
	r.hitSamples.WithLabelValues(mode).Set(float64(samples))
}

// IncHTTPRequest counts one served HTTP request.
func (r *Recorder) IncHTTPRequest(method, path, status string) {
	r.httpRequests.WithLabelValues(method, path, status).Inc()
}

// ObserveHTTPDuration records HTTP handler latency.
func (r *Recorder) ObserveHTTPDuration(method, path string, elapsed time.Duration) {
	r.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
