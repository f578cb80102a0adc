package orbit

import "math"

const (
	// keplerTolerance is the eccentric anomaly convergence threshold, rad.
	keplerTolerance = 1e-12

	// keplerMaxIter is a hard iteration ceiling. GPS orbits are near-circular
	// (e < 0.03) so Newton steps converge in two or three iterations; the cap
	// only matters for pathological inputs, where the best estimate so far is
	// returned rather than an error.
	keplerMaxIter = 10
)

// SolveKepler solves Kepler's equation M = E - e*sin(E) for the eccentric
// anomaly E by Newton iteration seeded at E = M.
func SolveKepler(m, e float64) float64 {
	ecc := m
	for i := 0; i < keplerMaxIter; i++ {
		next := ecc - (ecc-e*math.Sin(ecc)-m)/(1-e*math.Cos(ecc))
		if math.Abs(next-ecc) < keplerTolerance {
			return next
		}
		ecc = next
	}
	return ecc
}
