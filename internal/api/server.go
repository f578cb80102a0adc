package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/navtrace/navtrace/internal/auth"
	"github.com/navtrace/navtrace/internal/cache"
	"github.com/navtrace/navtrace/internal/export"
	"github.com/navtrace/navtrace/internal/health"
	"github.com/navtrace/navtrace/internal/httputil"
	"github.com/navtrace/navtrace/internal/metrics"
	"github.com/navtrace/navtrace/internal/orbit"
	"github.com/navtrace/navtrace/internal/rinex"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr       string
	TrustProxy bool
	Auth       auth.Config
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	store      *rinex.Store
	prop       *orbit.Propagator
	results    *cache.ResultCache
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server over the navigation store.
func NewServer(cfg Config, store *rinex.Store, prop *orbit.Propagator, results *cache.ResultCache, logger *slog.Logger) *Server {
	s := &Server{
		store:   store,
		prop:    prop,
		results: results,
		logger:  logger,
	}

	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(store))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/satellites", s.satellitesHandler)
	mux.HandleFunc("GET /api/v1/positions", s.positionsHandler)
	mux.HandleFunc("GET /api/v1/positions.csv", s.positionsCSVHandler)
	mux.HandleFunc("GET /api/v1/groundtrack", s.groundtrackHandler)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type satelliteInfo struct {
	PRN     string  `json:"prn"`
	Records int     `json:"records"`
	ToeMin  float64 `json:"toe_min"`
	ToeMax  float64 `json:"toe_max"`
}

// satellitesHandler lists every satellite in the loaded dataset with its
// record count and toe validity bounds.
func (s *Server) satellitesHandler(w http.ResponseWriter, r *http.Request) {
	ds := s.store.Get()
	if ds == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no navigation data loaded")
		return
	}

	prns := ds.PRNs()
	sats := make([]satelliteInfo, 0, len(prns))
	for _, prn := range prns {
		records := ds.Records(prn)
		minToe, maxToe := orbit.TimeBounds(records)
		sats = append(sats, satelliteInfo{
			PRN:     prn,
			Records: len(records),
			ToeMin:  minToe,
			ToeMax:  maxToe,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"source":     ds.Source,
		"loaded_at":  ds.LoadedAt.UTC().Format(time.RFC3339),
		"satellites": sats,
	})
}

// sampleRun resolves the prn/dt/start/end query parameters, consults the
// result cache, and runs the propagation on a miss. On failure it writes the
// error response itself and returns ok=false.
func (s *Server) sampleRun(w http.ResponseWriter, r *http.Request) (prn string, dt float64, samples []orbit.PositionSample, ok bool) {
	q := r.URL.Query()

	prn = q.Get("prn")
	if prn == "" {
		writeJSONError(w, http.StatusBadRequest, "missing prn parameter")
		return "", 0, nil, false
	}

	dt = s.prop.Step()
	if raw := q.Get("dt"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid dt %q", raw))
			return "", 0, nil, false
		}
		dt = v
	}
	if dt <= 0 {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("dt must be positive, got %g", dt))
		return "", 0, nil, false
	}

	var start, end float64
	for _, p := range []struct {
		name string
		dst  *float64
	}{{"start", &start}, {"end", &end}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", p.name, raw))
			return "", 0, nil, false
		}
		*p.dst = v
	}

	ds := s.store.Get()
	if ds == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no navigation data loaded")
		return "", 0, nil, false
	}

	key := cache.Key{PRN: prn, Start: start, End: end, Dt: dt}
	if cached, hit := s.results.Get(ds.LoadedAt, key); hit {
		return prn, dt, cached, true
	}

	samples, err := s.prop.SampleRange(prn, start, end, dt)
	if err != nil {
		switch {
		case errors.Is(err, orbit.ErrUnknownSatellite):
			writeJSONError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, orbit.ErrInvalidStep):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		default:
			writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		}
		return "", 0, nil, false
	}

	s.results.Put(ds.LoadedAt, key, samples)
	return prn, dt, samples, true
}

// positionsHandler returns a sampled ECEF position run as JSON.
func (s *Server) positionsHandler(w http.ResponseWriter, r *http.Request) {
	prn, dt, samples, ok := s.sampleRun(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"prn":        prn,
		"dt_seconds": dt,
		"count":      len(samples),
		"positions":  samples,
	})
}

// positionsCSVHandler returns the same run as a CSV download.
func (s *Server) positionsCSVHandler(w http.ResponseWriter, r *http.Request) {
	prn, _, samples, ok := s.sampleRun(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "output_"+prn+".csv"))
	if err := export.WriteCSV(w, samples); err != nil {
		s.logger.Error("csv write failed", "component", "api", "prn", prn, "error", err)
	}
}

// groundtrackHandler returns the run's geodetic ground track as a GeoJSON
// LineString feature.
func (s *Server) groundtrackHandler(w http.ResponseWriter, r *http.Request) {
	prn, _, samples, ok := s.sampleRun(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	json.NewEncoder(w).Encode(export.GroundTrack(prn, samples))
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
