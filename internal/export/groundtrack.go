package export

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/navtrace/navtrace/internal/orbit"
)

// WGS-84 ellipsoid.
const (
	wgs84A = 6378137.0
	wgs84F = 1.0 / 298.257223563
)

// GroundTrack converts an ECEF position run into a GeoJSON LineString of
// geodetic longitude/latitude points (degrees), the sub-satellite track.
func GroundTrack(prn string, samples []orbit.PositionSample) *geojson.Feature {
	track := make(orb.LineString, 0, len(samples))
	for _, s := range samples {
		lat, lon := geodetic(s.X, s.Y, s.Z)
		track = append(track, orb.Point{lon * 180 / math.Pi, lat * 180 / math.Pi})
	}

	f := geojson.NewFeature(track)
	f.Properties["prn"] = prn
	f.Properties["samples"] = len(samples)
	return f
}

// geodetic converts ECEF meters to geodetic latitude/longitude in radians by
// fixed-point iteration on the WGS-84 ellipsoid. Converges to sub-millimeter
// in a handful of iterations for orbital altitudes.
func geodetic(x, y, z float64) (lat, lon float64) {
	e2 := wgs84F * (2 - wgs84F)
	p := math.Hypot(x, y)
	lon = math.Atan2(y, x)

	// Spherical seed, then iterate on the prime-vertical radius.
	lat = math.Atan2(z, p*(1-e2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-e2*sinLat*sinLat)
		lat = math.Atan2(z+e2*n*sinLat, p)
	}
	return lat, lon
}
