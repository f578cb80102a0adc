// Package orbit propagates GPS broadcast ephemerides to ECEF positions.
//
// The model is the standard broadcast orbit computation from the GPS
// interface specification (IS-GPS-200, Table 20-IV): corrected mean motion,
// Kepler's equation for the eccentric anomaly, second-harmonic perturbation
// corrections at twice the argument of latitude, and rotation of the orbital
// plane through inclination and the earth-rotation-corrected longitude of
// node. Relativistic and atmospheric terms are deliberately omitted.
package orbit

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"time"

	"github.com/navtrace/navtrace/internal/gpstime"
	"github.com/navtrace/navtrace/internal/metrics"
	"github.com/navtrace/navtrace/internal/rinex"
)

// ErrUnknownSatellite reports a PRN with no records in the loaded dataset.
var ErrUnknownSatellite = errors.New("no ephemeris records")

const (
	// MU is the WGS-84 gravitational parameter of the Earth, m^3/s^2.
	MU = 3.986005e14

	// OmegaEarth is the WGS-84 Earth rotation rate, rad/s.
	OmegaEarth = 7.2921151467e-5
)

// SelectEphemeris returns the record whose toe is nearest to t in absolute
// value; ties go to the earlier record in file order. Returns nil for an
// empty sequence.
//
// This is epoch-proximity selection, not the broadcast "most recent still
// valid" rule — transmission time is ignored.
func SelectEphemeris(records []rinex.EphemerisRecord, t float64) *rinex.EphemerisRecord {
	if len(records) == 0 {
		return nil
	}
	best := 0
	bestDist := math.Abs(t - records[0].Toe)
	for i := 1; i < len(records); i++ {
		if d := math.Abs(t - records[i].Toe); d < bestDist {
			best, bestDist = i, d
		}
	}
	return &records[best]
}

// TimeBounds returns the minimum and maximum toe across records — the natural
// validity window for one satellite's broadcast set.
func TimeBounds(records []rinex.EphemerisRecord) (min, max float64) {
	min, max = records[0].Toe, records[0].Toe
	for _, rec := range records[1:] {
		if rec.Toe < min {
			min = rec.Toe
		}
		if rec.Toe > max {
			max = rec.Toe
		}
	}
	return min, max
}

// PositionAt computes the ECEF position of one ephemeris record at epoch t
// (GPS seconds of week).
func PositionAt(eph *rinex.EphemerisRecord, t float64) PositionSample {
	a := eph.SqrtA * eph.SqrtA
	tk := gpstime.WrapHalfWeek(t - eph.Toe)

	// Corrected mean motion and mean anomaly.
	n := math.Sqrt(MU/(a*a*a)) + eph.DeltaN
	m := eph.M0 + n*tk

	ecc := SolveKepler(m, eph.E)

	// True anomaly and argument of latitude.
	v := math.Atan2(math.Sqrt(1-eph.E*eph.E)*math.Sin(ecc), math.Cos(ecc)-eph.E)
	phi := v + eph.Omega

	sin2phi, cos2phi := math.Sin(2*phi), math.Cos(2*phi)

	u := phi + eph.Cus*sin2phi + eph.Cuc*cos2phi
	r := a*(1-eph.E*math.Cos(ecc)) + eph.Crs*sin2phi + eph.Crc*cos2phi
	inc := eph.I0 + eph.IDot*tk + eph.Cis*sin2phi + eph.Cic*cos2phi

	// Longitude of node, corrected for earth rotation over both the
	// propagation interval and the reference-epoch offset.
	node := eph.Omega0 + (eph.OmegaDot-OmegaEarth)*tk - OmegaEarth*eph.Toe

	// Orbital-plane coordinates rotated into ECEF.
	xp := r * math.Cos(u)
	yp := r * math.Sin(u)

	sinNode, cosNode := math.Sin(node), math.Cos(node)
	cosInc := math.Cos(inc)

	return PositionSample{
		T: t,
		X: xp*cosNode - yp*cosInc*sinNode,
		Y: xp*sinNode + yp*cosInc*cosNode,
		Z: yp * math.Sin(inc),
	}
}

// ComputePositions propagates one satellite's record sequence over the given
// epochs. Output order matches epoch order; each epoch independently selects
// its nearest ephemeris record.
func ComputePositions(records []rinex.EphemerisRecord, epochs iter.Seq[float64]) []PositionSample {
	var samples []PositionSample
	for t := range epochs {
		eph := SelectEphemeris(records, t)
		if eph == nil {
			break
		}
		samples = append(samples, PositionAt(eph, t))
	}
	return samples
}

// Propagator computes position runs against the navigation store.
type Propagator struct {
	store  *rinex.Store
	config Config
	logger *slog.Logger
}

// NewPropagator creates a propagation orchestrator over the store.
func NewPropagator(store *rinex.Store, config Config, logger *slog.Logger) *Propagator {
	return &Propagator{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Step returns the configured default sampling step in seconds.
func (p *Propagator) Step() float64 {
	return p.config.Step
}

// SampleRange propagates one satellite over [start, end] at dt-second cadence.
// A zero start and end defaults to the satellite's toe validity window.
// Epochs outside that window are permitted, but the run is logged and counted
// as an extrapolation.
func (p *Propagator) SampleRange(prn string, start, end, dt float64) ([]PositionSample, error) {
	ds := p.store.Get()
	if ds == nil {
		return nil, fmt.Errorf("no navigation dataset loaded")
	}
	records := ds.Records(prn)
	if len(records) == 0 {
		return nil, fmt.Errorf("satellite %s: %w", prn, ErrUnknownSatellite)
	}

	minToe, maxToe := TimeBounds(records)
	if start == 0 && end == 0 {
		start, end = minToe, maxToe
	}

	epochs, err := Sequence(start, end, dt)
	if err != nil {
		return nil, err
	}

	if start < minToe-gpstime.HalfWeek/2 || end > maxToe+gpstime.HalfWeek/2 {
		// Far outside the broadcast window the positions are numerically
		// defined but physically meaningless.
		p.logger.Warn("sampling far outside ephemeris validity window",
			"prn", prn,
			"start", start, "end", end,
			"toe_min", minToe, "toe_max", maxToe,
		)
	}
	if start < minToe || end > maxToe {
		metrics.IncExtrapolations()
	}

	began := time.Now()
	samples := ComputePositions(records, epochs)
	metrics.RecordPropagation(time.Since(began), len(samples))

	p.logger.Debug("propagation complete",
		"prn", prn,
		"samples", len(samples),
		"dt_seconds", dt,
	)

	return samples, nil
}
