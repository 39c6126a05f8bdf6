package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sample outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

var (
	samplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dopplertrack_samples_total",
			Help: "Range-rate samples computed, by strategy and outcome.",
		},
		[]string{"strategy", "outcome"},
	)

	passesFoundTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dopplertrack_passes_found_total",
			Help: "Complete AOS/LOS passes reported by the detector.",
		},
	)

	sweepDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dopplertrack_sweep_duration_seconds",
			Help:    "Wall time of a time sweep.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	strategyDisagreement = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dopplertrack_strategy_disagreement_m_s",
			Help: "Largest absolute analytic vs finite-difference range-rate difference in the last validation run.",
		},
	)

	implausibleTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dopplertrack_implausible_doppler_total",
			Help: "Doppler shifts beyond the LEO magnitude bound.",
		},
	)

	tleAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dopplertrack_tle_age_seconds",
			Help: "Age of the loaded element set relative to its epoch.",
		},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dopplertrack_streams_active",
			Help: "Open live Doppler streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dopplertrack_stream_messages_total",
			Help: "SSE messages sent on live Doppler streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dopplertrack_stream_errors_total",
			Help: "Live stream errors by reason.",
		},
		[]string{"reason"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dopplertrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dopplertrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(
		samplesTotal,
		passesFoundTotal,
		sweepDurationSeconds,
		strategyDisagreement,
		implausibleTotal,
		tleAgeSeconds,
		streamsActive,
		streamMessagesTotal,
		streamErrorsTotal,
		httpRequestsTotal,
		httpDurationSeconds,
	)
}

// RecordSample counts one range-rate sample.
func RecordSample(strategy, outcome string) {
	samplesTotal.WithLabelValues(strategy, outcome).Inc()
}

// RecordPasses counts n found passes.
func RecordPasses(n int) {
	passesFoundTotal.Add(float64(n))
}

// ObserveSweep records how long a sweep of the given kind took.
func ObserveSweep(kind string, d time.Duration) {
	sweepDurationSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

// SetDisagreement publishes the latest strategy disagreement in m/s.
func SetDisagreement(v float64) {
	strategyDisagreement.Set(v)
}

// RecordImplausible counts a shift that failed the magnitude check.
func RecordImplausible() {
	implausibleTotal.Inc()
}

// SetTLEAge publishes the element set age in seconds.
func SetTLEAge(seconds float64) {
	tleAgeSeconds.Set(seconds)
}

// IncStreamsActive increments the open stream gauge.
func IncStreamsActive() { streamsActive.Inc() }

// DecStreamsActive decrements the open stream gauge.
func DecStreamsActive() { streamsActive.Dec() }

// IncStreamMessages counts one SSE message.
func IncStreamMessages() { streamMessagesTotal.Inc() }

// IncStreamErrors counts a stream error.
func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

var knownRoutes = map[string]bool{
	"/":                   true,
	"/healthz":            true,
	"/readyz":             true,
	"/metrics":            true,
	"/api/v1/observation": true,
	"/api/v1/passes/next": true,
	"/api/v1/doppler":     true,
	"/api/v1/satellites":  true,

	"/api/v1/stream/doppler": true,
}

// normalizeRoute maps a request path to a bounded label set.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/satellites/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/api/v1/satellites/{id}"
	}
	return "other"
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
