package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navtrace_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navtrace_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	parseRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "navtrace_parse_records_total",
			Help: "Total ephemeris records decoded from navigation files.",
		},
	)

	parseSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navtrace_parse_skipped_blocks_total",
			Help: "Broadcast blocks dropped during parsing, by reason.",
		},
		[]string{"reason"},
	)

	propagationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "navtrace_propagation_duration_seconds",
			Help:    "Duration of one satellite position run.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)

	propagationSamplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "navtrace_propagation_samples_total",
			Help: "Total position samples computed.",
		},
	)

	extrapolationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "navtrace_propagation_extrapolations_total",
			Help: "Position runs requested outside the ephemeris validity window.",
		},
	)

	datasetSatellites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "navtrace_dataset_satellites",
			Help: "Satellites in the loaded navigation dataset.",
		},
	)

	datasetAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "navtrace_dataset_age_seconds",
			Help: "Age of the loaded navigation dataset in seconds.",
		},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "navtrace_result_cache_hits_total",
			Help: "Position run cache hits.",
		},
	)

	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "navtrace_result_cache_misses_total",
			Help: "Position run cache misses.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		parseRecordsTotal,
		parseSkippedTotal,
		propagationDuration,
		propagationSamplesTotal,
		extrapolationsTotal,
		datasetSatellites,
		datasetAgeSeconds,
		cacheHitsTotal,
		cacheMissesTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordParse publishes counters for one completed file parse.
func RecordParse(records, blank, short, badTimestamp int) {
	parseRecordsTotal.Add(float64(records))
	if blank > 0 {
		parseSkippedTotal.WithLabelValues("blank_identifier").Add(float64(blank))
	}
	if short > 0 {
		parseSkippedTotal.WithLabelValues("short_block").Add(float64(short))
	}
	if badTimestamp > 0 {
		parseSkippedTotal.WithLabelValues("bad_timestamp").Add(float64(badTimestamp))
	}
}

// RecordPropagation records one satellite run's duration and sample count.
func RecordPropagation(d time.Duration, samples int) {
	propagationDuration.Observe(d.Seconds())
	propagationSamplesTotal.Add(float64(samples))
}

// IncExtrapolations counts a run requested outside the toe validity window.
func IncExtrapolations() {
	extrapolationsTotal.Inc()
}

// SetDatasetSatellites publishes the satellite count of the loaded dataset.
func SetDatasetSatellites(n int) {
	datasetSatellites.Set(float64(n))
}

// SetDatasetAge publishes the age of the loaded dataset.
func SetDatasetAge(seconds float64) {
	datasetAgeSeconds.Set(seconds)
}

// IncCacheHits counts a result cache hit.
func IncCacheHits() {
	cacheHitsTotal.Inc()
}

// IncCacheMisses counts a result cache miss.
func IncCacheMisses() {
	cacheMissesTotal.Inc()
}

// knownRoutes are the exact paths served by the API; anything else collapses
// to "other" so scanner traffic cannot blow up label cardinality.
var knownRoutes = map[string]bool{
	"/":                     true,
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/api/v1/satellites":    true,
	"/api/v1/positions":     true,
	"/api/v1/positions.csv": true,
	"/api/v1/groundtrack":   true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
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
