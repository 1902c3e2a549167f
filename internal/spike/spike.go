package spike

import (
	"errors"
	"fmt"
	"time"

	"trendwatch/internal/series"
)

// ErrInvalidPeak is returned when the peak has no date or a negative value.
var ErrInvalidPeak = errors.New("spike: peak must have a date and a non-negative value")

// ConsistencyError reports a boundary whose value disagrees with the source series.
// It signals an indexing defect in the caller, not a data condition, and must not be retried.
type ConsistencyError struct {
	Boundary string
	Date     time.Time
	Expected float64
	Got      float64
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("spike: %s boundary on %s does not match series: expected %v, got %v",
		e.Boundary, e.Date.Format(series.DateLayout), e.Expected, e.Got)
}

// Info describes the extent of one anomalous episode around a peak.
type Info struct {
	Peak        Point
	Threshold   float64
	LocalLeft   Point
	GlobalLeft  Point
	LocalRight  Point
	GlobalRight Point
}

// NewInfo assembles an Info. Unset boundaries default to the peak, and any boundary dated
// on the peak carries the peak value.
func NewInfo(peak Point, threshold float64, localLeft, globalLeft, localRight, globalRight Point) (Info, error) {
	if peak.IsZero() || peak.Value < 0 {
		return Info{}, fmt.Errorf("%w: %s=%v", ErrInvalidPeak, peak.Date.Format(series.DateLayout), peak.Value)
	}

	anchor := func(p Point) Point {
		if p.IsZero() || p.Date.Equal(peak.Date) {
			return peak
		}
		return p
	}

	return Info{
		Peak:        peak,
		Threshold:   threshold,
		LocalLeft:   anchor(localLeft),
		GlobalLeft:  anchor(globalLeft),
		LocalRight:  anchor(localRight),
		GlobalRight: anchor(globalRight),
	}, nil
}

// Characterize scans left (backwards in time) and right of the peak and builds the Info.
func Characterize(s series.Series, peak Point, threshold float64) (Info, error) {
	peak.Date = series.Day(peak.Date)

	left := s.Before(peak.Date).Reversed()
	right := s.After(peak.Date)

	leftRes := Scan(left, peak.Value, threshold)
	if err := verify(left, "local_left", leftRes.Local); err != nil {
		return Info{}, err
	}
	if err := verify(left, "global_left", leftRes.Global); err != nil {
		return Info{}, err
	}

	rightRes := Scan(right, peak.Value, threshold)
	if err := verify(right, "local_right", rightRes.Local); err != nil {
		return Info{}, err
	}
	if err := verify(right, "global_right", rightRes.Global); err != nil {
		return Info{}, err
	}

	return NewInfo(peak, threshold, leftRes.Local, leftRes.Global, rightRes.Local, rightRes.Global)
}

// verify re-reads the boundary date in the scanned slice and checks the stored value.
func verify(side series.Series, name string, p Point) error {
	if p.IsZero() {
		return nil
	}
	sample, ok := side.Lookup(p.Date)
	if !ok || !sample.Present {
		return nil
	}
	if sample.Value != p.Value {
		return &ConsistencyError{Boundary: name, Date: p.Date, Expected: sample.Value, Got: p.Value}
	}
	return nil
}
