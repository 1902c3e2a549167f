package series

import (
	"sort"
	"time"
)

// DateLayout is the day format used by series files.
const DateLayout = "2006-01-02"

// Sample is a single daily reading. Present is false for a missing reading.
type Sample struct {
	Date    time.Time
	Value   float64
	Present bool
}

// Point builds a present sample on the given day.
func Point(date time.Time, value float64) Sample {
	return Sample{Date: Day(date), Value: value, Present: true}
}

// Gap builds an absent sample on the given day.
func Gap(date time.Time) Sample {
	return Sample{Date: Day(date)}
}

// Series is a chronologically ordered daily time series with unique dates.
type Series []Sample

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Sort orders the series by date in place.
func (s Series) Sort() {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
}

// Before returns the samples strictly earlier than date, in chronological order.
func (s Series) Before(date time.Time) Series {
	out := make(Series, 0, len(s))
	for _, sample := range s {
		if sample.Date.Before(date) {
			out = append(out, sample)
		}
	}
	return out
}

// After returns the samples strictly later than date, in chronological order.
func (s Series) After(date time.Time) Series {
	out := make(Series, 0, len(s))
	for _, sample := range s {
		if sample.Date.After(date) {
			out = append(out, sample)
		}
	}
	return out
}

// Reversed returns a copy of the series in reverse order.
func (s Series) Reversed() Series {
	out := make(Series, len(s))
	for i, sample := range s {
		out[len(s)-1-i] = sample
	}
	return out
}

// Between returns the samples with from <= date <= to.
func (s Series) Between(from, to time.Time) Series {
	out := make(Series, 0)
	for _, sample := range s {
		if sample.Date.Before(from) || sample.Date.After(to) {
			continue
		}
		out = append(out, sample)
	}
	return out
}

// Lookup returns the sample recorded on date.
func (s Series) Lookup(date time.Time) (Sample, bool) {
	for _, sample := range s {
		if sample.Date.Equal(date) {
			return sample, true
		}
	}
	return Sample{}, false
}

// Max returns the present sample with the largest value; ties keep the earliest.
func (s Series) Max() (Sample, bool) {
	var best Sample
	found := false
	for _, sample := range s {
		if !sample.Present {
			continue
		}
		if !found || sample.Value > best.Value {
			best = sample
			found = true
		}
	}
	return best, found
}

// DropLast returns the series without its final sample.
func (s Series) DropLast() Series {
	if len(s) == 0 {
		return s
	}
	return s[:len(s)-1]
}
