package rinex

import (
	"sort"
	"time"
)

// EphemerisRecord is one broadcast navigation message for one satellite at one
// reference epoch. All angular elements are in radians and toe in GPS seconds
// of week, as transmitted. Records are immutable once parsed.
//
// Well-formed broadcasts satisfy SqrtA > 0 and 0 <= E < 1; the parser does not
// enforce this (structural leniency), so consumers propagating garbage records
// get garbage positions.
type EphemerisRecord struct {
	PRN string

	// Calendar timestamp from the block header line.
	Year, Month, Day, Hour, Minute int
	Second                         float64

	// Clock polynomial terms (bias, drift, drift rate).
	A0, A1, A2 float64

	// Orbital elements.
	SqrtA    float64 // square root of semi-major axis, sqrt(m)
	E        float64 // eccentricity
	M0       float64 // mean anomaly at toe
	DeltaN   float64 // mean motion correction
	Omega    float64 // argument of perigee
	Omega0   float64 // longitude of ascending node at week start
	OmegaDot float64 // rate of node
	I0       float64 // inclination at toe
	IDot     float64 // rate of inclination
	Toe      float64 // time of ephemeris, GPS seconds of week

	// Second-harmonic perturbation corrections.
	Cuc, Cus float64 // argument of latitude, rad
	Crc, Crs float64 // orbit radius, m
	Cic, Cis float64 // inclination, rad

	// Broadcast metadata, carried through as transmitted.
	IODC      float64
	L2Code    float64
	Week      float64
	L2PFlag   float64
	Accuracy  float64
	Health    float64
	TGD       float64
	IODC2     float64
	TransTime float64
	Spare     float64
}

// ParseStats counts blocks the parser dropped. The format is lenient by
// contract, so drops are reported rather than surfaced as errors.
type ParseStats struct {
	Records       int // records successfully decoded
	BlankBlocks   int // blocks with an empty satellite identifier
	ShortBlocks   int // blocks with fewer numeric tokens than record fields
	BadTimestamps int // blocks whose calendar columns failed to decode
}

// Skipped returns the total number of dropped blocks.
func (s ParseStats) Skipped() int {
	return s.BlankBlocks + s.ShortBlocks + s.BadTimestamps
}

// Dataset maps satellite identifiers (PRN, e.g. "G01") to their ephemeris
// records in file order. Read-only after parsing.
type Dataset struct {
	Source     string
	LoadedAt   time.Time
	Satellites map[string][]EphemerisRecord
	Stats      ParseStats
}

// PRNs returns the satellite identifiers in the dataset, sorted.
func (d *Dataset) PRNs() []string {
	prns := make([]string, 0, len(d.Satellites))
	for prn := range d.Satellites {
		prns = append(prns, prn)
	}
	sort.Strings(prns)
	return prns
}

// Records returns the ephemeris sequence for one satellite, or nil.
func (d *Dataset) Records(prn string) []EphemerisRecord {
	return d.Satellites[prn]
}
