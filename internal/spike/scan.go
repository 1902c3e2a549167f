package spike

import (
	"time"

	"trendwatch/internal/series"
)

// Point is a dated value. A zero Date means "no point".
type Point struct {
	Date  time.Time
	Value float64
}

// IsZero reports whether the point is unset.
func (p Point) IsZero() bool {
	return p.Date.IsZero()
}

// ScanResult carries the boundaries found walking away from a peak.
type ScanResult struct {
	Local  Point
	Global Point
}

// Scan walks samples ordered by increasing distance from the peak and locates the
// nearest local trough and the first sample at or below threshold.
//
// The local candidate starts at peakValue and follows non-increasing values above
// threshold; the first rise flags the previous candidate. The threshold check runs on
// every present sample and ends the walk.
func Scan(walk []series.Sample, peakValue, threshold float64) ScanResult {
	var res ScanResult
	if len(walk) == 0 {
		return res
	}

	localFound := false
	globalFound := false
	candidate := Point{Value: peakValue}

	for _, sample := range walk {
		if !sample.Present {
			continue
		}

		if !localFound && sample.Value > threshold {
			if sample.Value <= candidate.Value {
				candidate = Point{Date: sample.Date, Value: sample.Value}
			} else {
				localFound = true
			}
		}

		if sample.Value <= threshold {
			res.Global = Point{Date: sample.Date, Value: sample.Value}
			globalFound = true
			break
		}
	}
	res.Local = candidate

	if !globalFound && !localFound {
		// never rose and never crossed: the first sample stands in for the crossing
		if first := walk[0]; first.Present {
			res.Global = Point{Date: first.Date, Value: first.Value}
			globalFound = true
		}
	}
	if localFound && !globalFound {
		res.Global = res.Local
		globalFound = true
	}
	if globalFound && !localFound {
		res.Local = res.Global
	}
	return res
}
