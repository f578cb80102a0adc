package orbit

import (
	"errors"
	"slices"
	"testing"
)

func TestSequence(t *testing.T) {
	tests := []struct {
		name           string
		start, end, dt float64
		want           []float64
	}{
		{"end inclusive", 0, 90, 30, []float64{0, 30, 60, 90}},
		{"end not on grid", 0, 100, 30, []float64{0, 30, 60, 90}},
		{"single point", 10, 10, 5, []float64{10}},
		{"empty interval", 10, 5, 5, nil},
		{"fractional step", 0, 1, 0.25, []float64{0, 0.25, 0.5, 0.75, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := Sequence(tt.start, tt.end, tt.dt)
			if err != nil {
				t.Fatalf("Sequence failed: %v", err)
			}
			got := slices.Collect(seq)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("point %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSequenceInvalidStep(t *testing.T) {
	for _, dt := range []float64{0, -1, -30} {
		if _, err := Sequence(0, 100, dt); !errors.Is(err, ErrInvalidStep) {
			t.Errorf("Sequence(0, 100, %v) error = %v, want ErrInvalidStep", dt, err)
		}
	}
}

// TestSequenceRestartable verifies the sequence can be ranged more than once.
func TestSequenceRestartable(t *testing.T) {
	seq, err := Sequence(0, 60, 30)
	if err != nil {
		t.Fatalf("Sequence failed: %v", err)
	}
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, second) {
		t.Errorf("restarted sequence differs: %v vs %v", first, second)
	}
}

// TestSequenceEarlyStop verifies the iterator honors a consumer break.
func TestSequenceEarlyStop(t *testing.T) {
	seq, err := Sequence(0, 1e9, 1)
	if err != nil {
		t.Fatalf("Sequence failed: %v", err)
	}
	var n int
	for range seq {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("consumed %d points, want 3", n)
	}
}
