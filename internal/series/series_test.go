package series

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func d(day int) time.Time {
	return time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC)
}

func TestReadSortsAndKeepsGaps(t *testing.T) {
	input := "Date,Value,isPartial\n2024-01-03,7,False\n2024-01-01,5,False\n2024-01-02,,True\n"
	s, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(s) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(s))
	}
	if !s[0].Date.Equal(d(1)) || s[0].Value != 5 || !s[0].Present {
		t.Fatalf("unexpected first sample: %+v", s[0])
	}
	if s[1].Present {
		t.Fatalf("expected gap on %s, got %+v", d(2).Format(DateLayout), s[1])
	}
	if s[2].Value != 7 {
		t.Fatalf("unexpected last sample: %+v", s[2])
	}
}

func TestReadRejectsMissingColumns(t *testing.T) {
	if _, err := Read(strings.NewReader("day,count\n2024-01-01,1\n")); err == nil {
		t.Fatalf("expected header error")
	}
}

func TestReadEmptyInput(t *testing.T) {
	s, err := Read(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(s) != 0 {
		t.Fatalf("expected empty series, got %d", len(s))
	}
}

func TestParseDateAcceptsTimestamps(t *testing.T) {
	got, err := ParseDate("2024-01-05T00:00:00Z")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if !got.Equal(d(5)) {
		t.Fatalf("expected %s, got %s", d(5), got)
	}
	if _, err := ParseDate("01/05/2024"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestParseDateRejectsTrailingJunk(t *testing.T) {
	for _, raw := range []string{"2024-03-011", "2024-03-01xyz", "2024-03-01Z"} {
		if _, err := ParseDate(raw); err == nil {
			t.Fatalf("ParseDate(%q) should fail", raw)
		}
	}
	if _, err := ParseDate("2024-03-01 12:00:00"); err != nil {
		t.Fatalf("space separated timestamp: %v", err)
	}
}

func TestReadTreatsNaNAsGap(t *testing.T) {
	input := "date,value\n2024-01-01,9\n2024-01-02,NaN\n2024-01-03,nan\n2024-01-04,20\n"
	s, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(s) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(s))
	}
	for _, i := range []int{1, 2} {
		if s[i].Present {
			t.Fatalf("NaN on %s should be a gap, got %+v", s[i].Date.Format(DateLayout), s[i])
		}
	}
}

func TestReadRejectsOutOfRangeValues(t *testing.T) {
	for _, raw := range []string{"Inf", "-Inf", "+Inf", "-1"} {
		input := "date,value\n2024-01-01," + raw + "\n"
		if _, err := Read(strings.NewReader(input)); err == nil {
			t.Fatalf("value %q should be rejected", raw)
		}
	}
}

func TestWriteFileReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "IR", "2024-01_multiTimeline.csv")
	in := Series{Point(d(1), 1.5), Gap(d(2)), Point(d(3), 42)}

	if err := WriteFile(path, in); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	out, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d: expected %+v, got %+v", i, in[i], out[i])
		}
	}
}

func TestWriteGapIsEmptyField(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Series{Gap(d(9))}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := buf.String(); got != "date,value\n2024-01-09,\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestSlicing(t *testing.T) {
	s := Series{Point(d(1), 1), Point(d(2), 9), Gap(d(3)), Point(d(4), 9), Point(d(5), 2)}

	if got := s.Before(d(3)); len(got) != 2 || !got[1].Date.Equal(d(2)) {
		t.Fatalf("Before: %+v", got)
	}
	if got := s.After(d(3)); len(got) != 2 || !got[0].Date.Equal(d(4)) {
		t.Fatalf("After: %+v", got)
	}
	if got := s.Before(d(3)).Reversed(); !got[0].Date.Equal(d(2)) {
		t.Fatalf("Reversed: %+v", got)
	}
	if got := s.Between(d(2), d(4)); len(got) != 3 {
		t.Fatalf("Between: %+v", got)
	}
	if got := s.DropLast(); len(got) != 4 || !got[3].Date.Equal(d(4)) {
		t.Fatalf("DropLast: %+v", got)
	}

	peak, ok := s.Max()
	if !ok || !peak.Date.Equal(d(2)) {
		t.Fatalf("Max should keep the earliest tie, got %+v", peak)
	}
	if _, ok := (Series{Gap(d(1))}).Max(); ok {
		t.Fatalf("Max of all gaps should report not found")
	}
}
