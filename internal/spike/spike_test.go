package spike

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendwatch/internal/series"
)

var base = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return base.AddDate(0, 0, n)
}

func walkOf(values ...float64) []series.Sample {
	out := make([]series.Sample, len(values))
	for i, v := range values {
		out[i] = series.Point(day(i+1), v)
	}
	return out
}

func seriesOf(values ...float64) series.Series {
	out := make(series.Series, len(values))
	for i, v := range values {
		out[i] = series.Point(day(i), v)
	}
	return out
}

func TestScanLocalThenGlobal(t *testing.T) {
	res := Scan(walkOf(6, 8, 3), 10, 4)

	assert.Equal(t, Point{Date: day(1), Value: 6}, res.Local)
	assert.Equal(t, Point{Date: day(3), Value: 3}, res.Global)
}

func TestScanImmediateCrossing(t *testing.T) {
	res := Scan(walkOf(6, 3), 10, 4)

	assert.Equal(t, Point{Date: day(2), Value: 3}, res.Local)
	assert.Equal(t, Point{Date: day(2), Value: 3}, res.Global)
}

func TestScanStopsAtFirstCrossing(t *testing.T) {
	res := Scan(walkOf(9, 7, 2, 1, 9), 10, 4)

	assert.Equal(t, Point{Date: day(3), Value: 2}, res.Global)
	assert.Equal(t, res.Global, res.Local)
}

func TestScanLocalWithoutCrossing(t *testing.T) {
	res := Scan(walkOf(9, 7, 8, 9), 10, 4)

	assert.Equal(t, Point{Date: day(2), Value: 7}, res.Local)
	assert.Equal(t, res.Local, res.Global)
}

func TestScanSkipsAbsentSamples(t *testing.T) {
	walk := []series.Sample{
		series.Point(day(1), 6),
		series.Gap(day(2)),
		series.Point(day(3), 5),
		series.Gap(day(4)),
		series.Point(day(5), 4),
	}
	res := Scan(walk, 10, 4)

	assert.Equal(t, Point{Date: day(5), Value: 4}, res.Global)
	assert.Equal(t, res.Global, res.Local)
}

func TestScanFallsBackToFirstSample(t *testing.T) {
	// monotonically declining, never at threshold, never rising
	res := Scan(walkOf(9, 8, 7), 10, 4)

	assert.Equal(t, Point{Date: day(1), Value: 9}, res.Global)
	assert.Equal(t, res.Global, res.Local)
}

func TestScanFallbackNeedsPresentFirstSample(t *testing.T) {
	walk := []series.Sample{series.Gap(day(1)), series.Point(day(2), 8)}
	res := Scan(walk, 10, 4)

	assert.True(t, res.Global.IsZero())
	assert.Equal(t, Point{Date: day(2), Value: 8}, res.Local)
}

func TestScanEmptyWalk(t *testing.T) {
	res := Scan(nil, 10, 4)
	assert.True(t, res.Local.IsZero())
	assert.True(t, res.Global.IsZero())
}

func TestScanImmediateRiseFlagsPeak(t *testing.T) {
	res := Scan(walkOf(12, 3), 10, 4)

	assert.True(t, res.Local.IsZero())
	assert.Equal(t, 10.0, res.Local.Value)
	assert.Equal(t, Point{Date: day(2), Value: 3}, res.Global)
}

func TestCharacterizeBothSides(t *testing.T) {
	//                  0  1  2  3   4   5  6  7  8
	s := seriesOf(2, 5, 6, 5, 20, 9, 7, 8, 1)
	info, err := Characterize(s, Point{Date: day(4), Value: 20}, 4)
	require.NoError(t, err)

	assert.Equal(t, Point{Date: day(3), Value: 5}, info.LocalLeft)
	assert.Equal(t, Point{Date: day(0), Value: 2}, info.GlobalLeft)
	assert.Equal(t, Point{Date: day(6), Value: 7}, info.LocalRight)
	assert.Equal(t, Point{Date: day(8), Value: 1}, info.GlobalRight)
	assert.Equal(t, 4.0, info.Threshold)
}

func TestCharacterizePeakAtStart(t *testing.T) {
	s := seriesOf(20, 9, 3)
	peak := Point{Date: day(0), Value: 20}
	info, err := Characterize(s, peak, 4)
	require.NoError(t, err)

	assert.Equal(t, peak, info.LocalLeft)
	assert.Equal(t, peak, info.GlobalLeft)
	assert.Equal(t, Point{Date: day(2), Value: 3}, info.GlobalRight)
}

func TestCharacterizePeakAtEnd(t *testing.T) {
	s := seriesOf(3, 9, 20)
	peak := Point{Date: day(2), Value: 20}
	info, err := Characterize(s, peak, 4)
	require.NoError(t, err)

	assert.Equal(t, peak, info.LocalRight)
	assert.Equal(t, peak, info.GlobalRight)
	assert.Equal(t, Point{Date: day(0), Value: 3}, info.GlobalLeft)
}

func TestCharacterizeDetectsInconsistentSeries(t *testing.T) {
	s := series.Series{
		series.Point(day(0), 20),
		series.Point(day(1), 6),
		series.Point(day(1), 3),
	}
	_, err := Characterize(s, Point{Date: day(0), Value: 20}, 4)

	var cerr *ConsistencyError
	require.True(t, errors.As(err, &cerr), "want ConsistencyError, got %v", err)
	assert.Equal(t, day(1), cerr.Date)
	assert.Equal(t, 6.0, cerr.Expected)
	assert.Equal(t, 3.0, cerr.Got)
}

func TestCharacterizeSkipsNaNNextToPeak(t *testing.T) {
	s, err := series.Read(strings.NewReader("date,value\n2024-03-01,9\n2024-03-02,NaN\n2024-03-03,20\n"))
	require.NoError(t, err)
	require.False(t, s[1].Present)

	info, err := Characterize(s, Point{Date: day(2), Value: 20}, 4)
	require.NoError(t, err)

	assert.Equal(t, Point{Date: day(0), Value: 9}, info.LocalLeft)
	for _, p := range []Point{info.LocalLeft, info.GlobalLeft, info.LocalRight, info.GlobalRight} {
		assert.NotEqual(t, day(1), p.Date, "absent sample used as boundary")
	}
}

func TestNewInfoForcesPeakValue(t *testing.T) {
	peak := Point{Date: day(5), Value: 50}
	info, err := NewInfo(peak, 10,
		Point{Date: day(5), Value: 0},
		Point{},
		Point{Date: day(7), Value: 12},
		Point{Date: day(9), Value: 9},
	)
	require.NoError(t, err)

	assert.Equal(t, peak, info.LocalLeft)
	assert.Equal(t, peak, info.GlobalLeft)
	assert.Equal(t, Point{Date: day(7), Value: 12}, info.LocalRight)
}

func TestNewInfoRejectsBadPeak(t *testing.T) {
	_, err := NewInfo(Point{}, 1, Point{}, Point{}, Point{}, Point{})
	assert.ErrorIs(t, err, ErrInvalidPeak)

	_, err = NewInfo(Point{Date: day(1), Value: -1}, 1, Point{}, Point{}, Point{}, Point{})
	assert.ErrorIs(t, err, ErrInvalidPeak)
}

func TestImpactRanges(t *testing.T) {
	s := seriesOf(2, 5, 6, 5, 20, 9, 7, 8, 1)
	info, err := Characterize(s, Point{Date: day(4), Value: 20}, 4)
	require.NoError(t, err)

	// local: days 3..6 -> (5-4)+(20-4)+(9-4)+(7-4)
	assert.True(t, decimal.NewFromInt(25).Equal(Impact(s, info, LocalRange)))
	// global: days 0..8 -> 0+1+2+1+16+5+3+4+0
	assert.True(t, decimal.NewFromInt(32).Equal(Impact(s, info, GlobalRange)))
}

func TestAssignQuartiles(t *testing.T) {
	few := []Episode{
		{Impact: decimal.NewFromInt(30)},
		{Impact: decimal.NewFromInt(10)},
		{Impact: decimal.NewFromInt(20)},
	}
	AssignQuartiles(few)
	assert.Equal(t, []int{2, 0, 1}, []int{few[0].Quartile, few[1].Quartile, few[2].Quartile})

	many := make([]Episode, 8)
	for i := range many {
		many[i].Impact = decimal.NewFromInt(int64(8 - i))
	}
	AssignQuartiles(many)
	got := make([]int, len(many))
	for i, ep := range many {
		got[i] = ep.Quartile
	}
	assert.Equal(t, []int{3, 3, 2, 2, 1, 1, 0, 0}, got)
}
