package profile

import (
	"fmt"
	"slices"
	"sort"
)

// TimeSeries is an ascending list of time points in seconds.
type TimeSeries struct {
	points []float64
}

// Len returns the number of points.
func (s *TimeSeries) Len() int { return len(s.points) }

// Points returns the time points.
func (s *TimeSeries) Points() []float64 { return slices.Clone(s.points) }

// AppendInterval appends a point delta after the last one (or after zero).
func (s *TimeSeries) AppendInterval(delta float64, units TimeUnit) error {
	if delta <= 0 {
		return fmt.Errorf("%w: %g", ErrNonPositiveDuration, delta)
	}
	if !units.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownUnits, units)
	}
	var last float64
	if n := len(s.points); n > 0 {
		last = s.points[n-1]
	}
	s.points = append(s.points, last+delta*units.Seconds())
	return nil
}

// InsertPoint inserts a point keeping the series strictly ascending and
// returns its position. A point equal to an existing one is not inserted;
// its position is returned with inserted false.
func (s *TimeSeries) InsertPoint(t float64, units TimeUnit) (i int, inserted bool, err error) {
	if !units.valid() {
		return 0, false, fmt.Errorf("%w: %q", ErrUnknownUnits, units)
	}
	if t <= 0 {
		return 0, false, fmt.Errorf("%w: point %g", ErrNonPositiveDuration, t)
	}
	t *= units.Seconds()
	i = sort.SearchFloat64s(s.points, t)
	if i < len(s.points) && s.points[i] == t {
		return i, false, nil
	}
	s.points = slices.Insert(s.points, i, t)
	return i, true, nil
}

// Durations returns the intervals between consecutive points, the first one
// measured from zero.
func (s *TimeSeries) Durations() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		if i == 0 {
			out[i] = p
			continue
		}
		out[i] = p - s.points[i-1]
	}
	return out
}
