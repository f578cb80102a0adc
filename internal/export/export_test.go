package export

import (
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/navtrace/navtrace/internal/orbit"
)

func TestWriteCSV(t *testing.T) {
	samples := []orbit.PositionSample{
		{T: 302400, X: 15000000.5, Y: -21000000, Z: 0.25},
		{T: 302430, X: 15001000, Y: -20999000, Z: 125},
	}

	var b strings.Builder
	if err := WriteCSV(&b, samples); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 (header + 2 rows)", len(lines))
	}
	if lines[0] != "t,x,y,z" {
		t.Errorf("header = %q, want t,x,y,z", lines[0])
	}
	if lines[1] != "302400.00000000000,1.50000005e+07,-2.1e+07,0.25" {
		t.Errorf("row 1 = %q", lines[1])
	}

	// Epoch carries exactly 11 decimal places.
	epoch := strings.SplitN(lines[2], ",", 2)[0]
	dot := strings.IndexByte(epoch, '.')
	if dot < 0 || len(epoch)-dot-1 != 11 {
		t.Errorf("epoch %q not formatted to 11 decimal places", epoch)
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var b strings.Builder
	if err := WriteCSV(&b, nil); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if got := b.String(); got != "t,x,y,z\n" {
		t.Errorf("empty run output = %q, want header only", got)
	}
}

func TestGeodetic(t *testing.T) {
	tests := []struct {
		name             string
		x, y, z          float64
		wantLat, wantLon float64 // degrees
	}{
		{"equator prime meridian", wgs84A, 0, 0, 0, 0},
		{"equator 90E", 0, wgs84A, 0, 0, 90},
		{"equator 180", -wgs84A, 0, 0, 0, 180},
		{"north pole", 0, 0, wgs84A * (1 - wgs84F), 90, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon := geodetic(tt.x, tt.y, tt.z)
			latDeg := lat * 180 / math.Pi
			lonDeg := lon * 180 / math.Pi
			if math.Abs(latDeg-tt.wantLat) > 1e-6 {
				t.Errorf("lat = %.8f°, want %.8f°", latDeg, tt.wantLat)
			}
			if math.Abs(lonDeg-tt.wantLon) > 1e-6 {
				t.Errorf("lon = %.8f°, want %.8f°", lonDeg, tt.wantLon)
			}
		})
	}
}

func TestGroundTrack(t *testing.T) {
	// Two equatorial-plane samples a quarter turn apart at GPS orbit radius.
	const r = 26560000.0
	samples := []orbit.PositionSample{
		{T: 0, X: r, Y: 0, Z: 0},
		{T: 30, X: 0, Y: r, Z: 0},
	}

	f := GroundTrack("G01", samples)

	track, ok := f.Geometry.(orb.LineString)
	if !ok {
		t.Fatalf("geometry is %T, want orb.LineString", f.Geometry)
	}
	if len(track) != 2 {
		t.Fatalf("track has %d points, want 2", len(track))
	}
	if math.Abs(track[0].Lon()-0) > 1e-6 || math.Abs(track[0].Lat()-0) > 1e-6 {
		t.Errorf("point 0 = (%.6f, %.6f), want (0, 0)", track[0].Lon(), track[0].Lat())
	}
	if math.Abs(track[1].Lon()-90) > 1e-6 {
		t.Errorf("point 1 lon = %.6f, want 90", track[1].Lon())
	}

	if f.Properties["prn"] != "G01" {
		t.Errorf("prn property = %v, want G01", f.Properties["prn"])
	}
	if f.Properties["samples"] != 2 {
		t.Errorf("samples property = %v, want 2", f.Properties["samples"])
	}
}
