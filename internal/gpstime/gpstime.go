// Package gpstime converts civil calendar timestamps into GPS time of week.
//
// GPS time counts seconds from the GPS epoch (1980-01-06 00:00:00 UTC,
// Julian Day 2444244.5) and wraps every week (604800 s). Broadcast ephemeris
// reference times (toe) are expressed as seconds of week, so all propagation
// arithmetic happens modulo one week. Leap seconds are not applied; broadcast
// orbit computation works entirely in the GPS time scale.
package gpstime

import "math"

const (
	// Week is the length of a GPS week in seconds.
	Week = 604800.0

	// HalfWeek is the wrap threshold for time-from-ephemeris differences.
	HalfWeek = 302400.0

	// gpsEpochJD is the Julian Day of the GPS epoch (1980-01-06 00:00 UTC).
	gpsEpochJD = 2444244.5

	secondsPerDay = 86400.0
)

// JulianDay returns the Julian Day for a Gregorian calendar date and time of
// day. The date part uses the standard Fliegel-Van Flandern integer algorithm.
func JulianDay(year, month, day, hour, min int, sec float64) float64 {
	a := (14 - month) / 12
	y := year + 4800 - a
	m := month + 12*a - 3

	jdn := day + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045

	return float64(jdn) + (float64(hour)-12.0)/24.0 + float64(min)/1440.0 + sec/secondsPerDay
}

// ToSecondsOfWeek converts a civil timestamp to GPS seconds of week in [0, Week).
func ToSecondsOfWeek(year, month, day, hour, min int, sec float64) float64 {
	elapsed := (JulianDay(year, month, day, hour, min, sec) - gpsEpochJD) * secondsPerDay
	sow := math.Mod(elapsed, Week)
	if sow < 0 {
		sow += Week
	}
	return sow
}

// WrapHalfWeek maps a time difference into [-HalfWeek, HalfWeek]. A toe near
// the end of a week and a target epoch near the start of the next (or the
// reverse) otherwise produce a difference of nearly a full week.
func WrapHalfWeek(tk float64) float64 {
	if tk > HalfWeek {
		tk -= Week
	}
	if tk < -HalfWeek {
		tk += Week
	}
	return tk
}
