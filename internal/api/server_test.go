package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/navtrace/navtrace/internal/auth"
	"github.com/navtrace/navtrace/internal/cache"
	"github.com/navtrace/navtrace/internal/orbit"
	"github.com/navtrace/navtrace/internal/rinex"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testRecord(prn string, toe float64) rinex.EphemerisRecord {
	return rinex.EphemerisRecord{
		PRN:      prn,
		SqrtA:    5153.625,
		E:        0.0125,
		M0:       1.25,
		DeltaN:   4.5e-9,
		Omega:    -1.8125,
		Omega0:   -0.75,
		OmegaDot: -8.1e-9,
		I0:       0.9625,
		IDot:     4.2e-10,
		Toe:      toe,
	}
}

func newTestServer(ds *rinex.Dataset) *Server {
	store := rinex.NewStore()
	if ds != nil {
		store.Set(ds)
	}
	logger := testLogger()
	prop := orbit.NewPropagator(store, orbit.Config{Workers: 1, Step: 30}, logger)
	return NewServer(Config{Addr: ":0"}, store, prop, cache.New(16), logger)
}

func testDataset() *rinex.Dataset {
	return &rinex.Dataset{
		Source:   "test",
		LoadedAt: time.Now(),
		Satellites: map[string][]rinex.EphemerisRecord{
			"G01": {testRecord("G01", 7200), testRecord("G01", 14400)},
			"G07": {testRecord("G07", 7200)},
		},
	}
}

func TestSatellitesHandler(t *testing.T) {
	srv := newTestServer(testDataset())

	req := httptest.NewRequest("GET", "/api/v1/satellites", nil)
	w := httptest.NewRecorder()
	srv.HTTPServer().Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Source     string `json:"source"`
		Satellites []struct {
			PRN     string  `json:"prn"`
			Records int     `json:"records"`
			ToeMin  float64 `json:"toe_min"`
			ToeMax  float64 `json:"toe_max"`
		} `json:"satellites"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Source != "test" {
		t.Errorf("source = %q, want %q", resp.Source, "test")
	}
	if len(resp.Satellites) != 2 {
		t.Fatalf("satellites = %d, want 2", len(resp.Satellites))
	}
	if resp.Satellites[0].PRN != "G01" || resp.Satellites[1].PRN != "G07" {
		t.Errorf("prns = %s, %s, want G01, G07", resp.Satellites[0].PRN, resp.Satellites[1].PRN)
	}
	if resp.Satellites[0].Records != 2 {
		t.Errorf("G01 records = %d, want 2", resp.Satellites[0].Records)
	}
	if resp.Satellites[0].ToeMin != 7200 || resp.Satellites[0].ToeMax != 14400 {
		t.Errorf("G01 toe bounds = (%g, %g), want (7200, 14400)",
			resp.Satellites[0].ToeMin, resp.Satellites[0].ToeMax)
	}
}

func TestSatellitesHandlerNoDataset(t *testing.T) {
	srv := newTestServer(nil)

	req := httptest.NewRequest("GET", "/api/v1/satellites", nil)
	w := httptest.NewRecorder()
	srv.HTTPServer().Handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestPositionsHandler(t *testing.T) {
	srv := newTestServer(testDataset())

	req := httptest.NewRequest("GET", "/api/v1/positions?prn=G01&dt=1800", nil)
	w := httptest.NewRecorder()
	srv.HTTPServer().Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		PRN       string                 `json:"prn"`
		DtSeconds float64                `json:"dt_seconds"`
		Count     int                    `json:"count"`
		Positions []orbit.PositionSample `json:"positions"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.PRN != "G01" || resp.DtSeconds != 1800 {
		t.Errorf("prn = %q dt = %g, want G01 1800", resp.PRN, resp.DtSeconds)
	}
	// Default window is the toe span [7200, 14400] at 1800 s cadence.
	if resp.Count != 5 || len(resp.Positions) != 5 {
		t.Fatalf("count = %d (%d positions), want 5", resp.Count, len(resp.Positions))
	}
	if resp.Positions[0].T != 7200 || resp.Positions[4].T != 14400 {
		t.Errorf("epoch range = [%g, %g], want [7200, 14400]",
			resp.Positions[0].T, resp.Positions[4].T)
	}
}

func TestPositionsHandlerErrors(t *testing.T) {
	srv := newTestServer(testDataset())

	tests := []struct {
		name       string
		url        string
		wantStatus int
	}{
		{name: "missing prn", url: "/api/v1/positions", wantStatus: http.StatusBadRequest},
		{name: "unknown prn", url: "/api/v1/positions?prn=G99", wantStatus: http.StatusNotFound},
		{name: "non-numeric dt", url: "/api/v1/positions?prn=G01&dt=fast", wantStatus: http.StatusBadRequest},
		{name: "zero dt", url: "/api/v1/positions?prn=G01&dt=0", wantStatus: http.StatusBadRequest},
		{name: "negative dt", url: "/api/v1/positions?prn=G01&dt=-30", wantStatus: http.StatusBadRequest},
		{name: "bad start", url: "/api/v1/positions?prn=G01&start=noon", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			w := httptest.NewRecorder()
			srv.HTTPServer().Handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp map[string]string
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp["error"] == "" {
				t.Error("expected error field in response")
			}
		})
	}
}

func TestPositionsCSVHandler(t *testing.T) {
	srv := newTestServer(testDataset())

	req := httptest.NewRequest("GET", "/api/v1/positions.csv?prn=G07&dt=3600&start=7200&end=10800", nil)
	w := httptest.NewRecorder()
	srv.HTTPServer().Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q, want text/csv", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "output_G07.csv") {
		t.Errorf("content disposition = %q, want output_G07.csv attachment", cd)
	}

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if lines[0] != "t,x,y,z" {
		t.Errorf("header = %q, want t,x,y,z", lines[0])
	}
	// 7200, 10800 at 3600 s cadence.
	if len(lines) != 3 {
		t.Errorf("lines = %d, want 3", len(lines))
	}
}

func TestGroundTrackHandler(t *testing.T) {
	srv := newTestServer(testDataset())

	req := httptest.NewRequest("GET", "/api/v1/groundtrack?prn=G01&dt=1800", nil)
	w := httptest.NewRecorder()
	srv.HTTPServer().Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("content type = %q, want application/geo+json", ct)
	}

	var feature struct {
		Type     string `json:"type"`
		Geometry struct {
			Type        string      `json:"type"`
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	}
	if err := json.NewDecoder(w.Body).Decode(&feature); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if feature.Type != "Feature" || feature.Geometry.Type != "LineString" {
		t.Errorf("got %s/%s, want Feature/LineString", feature.Type, feature.Geometry.Type)
	}
	if len(feature.Geometry.Coordinates) != 5 {
		t.Errorf("coordinates = %d, want 5", len(feature.Geometry.Coordinates))
	}
	if feature.Properties["prn"] != "G01" {
		t.Errorf("prn property = %v, want G01", feature.Properties["prn"])
	}
	for _, c := range feature.Geometry.Coordinates {
		if c[0] < -180 || c[0] > 180 || c[1] < -90 || c[1] > 90 {
			t.Errorf("coordinate out of range: %v", c)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	store := rinex.NewStore()
	store.Set(testDataset())
	logger := testLogger()
	prop := orbit.NewPropagator(store, orbit.Config{Workers: 1, Step: 30}, logger)
	srv := NewServer(Config{
		Addr: ":0",
		Auth: auth.Config{Enabled: true, Token: "secret"},
	}, store, prop, cache.New(16), logger)

	tests := []struct {
		name       string
		url        string
		token      string
		wantStatus int
	}{
		{name: "healthz exempt", url: "/healthz", wantStatus: http.StatusOK},
		{name: "satellites exempt", url: "/api/v1/satellites", wantStatus: http.StatusOK},
		{name: "positions without token", url: "/api/v1/positions?prn=G01", wantStatus: http.StatusUnauthorized},
		{name: "positions with wrong token", url: "/api/v1/positions?prn=G01", token: "wrong", wantStatus: http.StatusUnauthorized},
		{name: "positions with token", url: "/api/v1/positions?prn=G01", token: "secret", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			srv.HTTPServer().Handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestPositionsResultCache(t *testing.T) {
	ds := testDataset()
	srv := newTestServer(ds)

	url := "/api/v1/positions?prn=G01&dt=1800"
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", url, nil)
		w := httptest.NewRecorder()
		srv.HTTPServer().Handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}

	entries, hits, misses := srv.results.Stats()
	if entries != 1 || hits != 1 || misses != 1 {
		t.Errorf("cache stats = (%d, %d, %d), want (1, 1, 1)", entries, hits, misses)
	}
}
