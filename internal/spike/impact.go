package spike

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"trendwatch/internal/series"
)

// Range selects which boundary pair bounds an integration.
type Range int

const (
	// LocalRange is the tight trough-to-trough extent, used for display.
	LocalRange Range = iota
	// GlobalRange is the return-to-baseline extent, used for total impact.
	GlobalRange
)

// Bounds returns the first and last day of the selected range.
func (i Info) Bounds(r Range) (time.Time, time.Time) {
	if r == LocalRange {
		return i.LocalLeft.Date, i.LocalRight.Date
	}
	return i.GlobalLeft.Date, i.GlobalRight.Date
}

// Impact integrates the excess over threshold across the selected range, inclusive.
// Absent samples and samples at or below threshold contribute nothing.
func Impact(s series.Series, info Info, r Range) decimal.Decimal {
	from, to := info.Bounds(r)
	threshold := decimal.NewFromFloat(info.Threshold)

	total := decimal.Zero
	for _, sample := range s.Between(from, to) {
		if !sample.Present {
			continue
		}
		excess := decimal.NewFromFloat(sample.Value).Sub(threshold)
		if excess.IsPositive() {
			total = total.Add(excess)
		}
	}
	return total
}

// Episode is a characterized spike ready for the sinks.
type Episode struct {
	CountryCode string
	Topic       string
	Info        Info
	Impact      decimal.Decimal
	Quartile    int
}

// Start is the first day of the episode's global extent.
func (e Episode) Start() time.Time { return e.Info.GlobalLeft.Date }

// End is the last day of the episode's global extent.
func (e Episode) End() time.Time { return e.Info.GlobalRight.Date }

// AssignQuartiles ranks episodes by ascending impact and sets Quartile in 0..3.
// With fewer than four episodes the rank itself is used.
func AssignQuartiles(episodes []Episode) {
	n := len(episodes)
	if n == 0 {
		return
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return episodes[order[a]].Impact.LessThan(episodes[order[b]].Impact)
	})

	for rank, idx := range order {
		if n < 4 {
			episodes[idx].Quartile = rank
			continue
		}
		episodes[idx].Quartile = rank * 4 / n
	}
}
