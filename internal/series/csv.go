package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var header = []string{"date", "value"}

// Read parses a date,value CSV. Extra columns are ignored; an empty value is a gap.
func Read(r io.Reader) (Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	head, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Series{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	dateIdx, valueIdx := -1, -1
	for i, name := range head {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date":
			dateIdx = i
		case "value":
			valueIdx = i
		}
	}
	if dateIdx < 0 || valueIdx < 0 {
		return nil, fmt.Errorf("series header must contain date and value columns, got %v", head)
	}

	out := make(Series, 0, 256)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if dateIdx >= len(record) {
			return nil, fmt.Errorf("line %d: missing date column", line)
		}

		date, err := ParseDate(record[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		raw := ""
		if valueIdx < len(record) {
			raw = strings.TrimSpace(record[valueIdx])
		}
		if raw == "" {
			out = append(out, Gap(date))
			continue
		}
		value, err := parseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if math.IsNaN(value) {
			out = append(out, Gap(date))
			continue
		}
		out = append(out, Point(date, value))
	}

	out.Sort()
	return out, nil
}

// parseValue accepts a non-negative finite number. NaN is passed through so the caller can
// record it as a gap.
func parseValue(raw string) (float64, error) {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse value %q: %w", raw, err)
	}
	if math.IsNaN(value) {
		return value, nil
	}
	if math.IsInf(value, 0) || value < 0 {
		return 0, fmt.Errorf("value %q out of range: must be finite and non-negative", raw)
	}
	return value, nil
}

// ReadFile reads a series CSV from disk.
func ReadFile(path string) (Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Read(file)
}

// Write renders the series as a date,value CSV.
func Write(w io.Writer, s Series) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, sample := range s {
		value := ""
		if sample.Present {
			value = strconv.FormatFloat(sample.Value, 'f', -1, 64)
		}
		if err := writer.Write([]string{sample.Date.Format(DateLayout), value}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile writes the series to path, creating parent directories.
func WriteFile(path string, s Series) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(file, s); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ParseDate accepts a YYYY-MM-DD day, optionally followed by a time component introduced
// by 'T' or a space.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	day := raw
	if len(raw) > len(DateLayout) {
		if sep := raw[len(DateLayout)]; sep != 'T' && sep != ' ' {
			return time.Time{}, fmt.Errorf("parse date %q: unexpected trailing text", raw)
		}
		day = raw[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t, nil
}
