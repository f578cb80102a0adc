package orbit

import (
	"errors"
	"fmt"
	"iter"
)

// ErrInvalidStep reports a non-positive sampling step.
var ErrInvalidStep = errors.New("sampling step must be positive")

// endTolerance lets the final point land on the interval end despite float
// accumulation in start + i*dt.
const endTolerance = 1e-9

// Sequence returns a finite, restartable iterator over evenly spaced epochs
// from start to end inclusive, step dt seconds. Each range over the returned
// sequence restarts from the beginning.
func Sequence(start, end, dt float64) (iter.Seq[float64], error) {
	if dt <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidStep, dt)
	}
	return func(yield func(float64) bool) {
		for i := 0; ; i++ {
			t := start + float64(i)*dt
			if t > end+endTolerance {
				return
			}
			if !yield(t) {
				return
			}
		}
	}, nil
}
