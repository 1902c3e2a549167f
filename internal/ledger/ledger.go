package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"trendwatch/internal/window"
)

var header = []string{"country_code", "start_month", "end_month"}

// Ledger appends missing-window records to a CSV file.
// Rows are never deduplicated; repeated audits may list the same window again.
type Ledger struct {
	path string
	mu   sync.Mutex
}

// New returns a ledger backed by path. The file is created on first append.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the backing file.
func (l *Ledger) Path() string { return l.path }

// Append writes the records, emitting the header only when the file is new or empty.
func (l *Ledger) Append(records []window.MissingWindow) error {
	if len(records) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}

	fresh := false
	switch info, err := os.Stat(l.path); {
	case errors.Is(err, os.ErrNotExist):
		fresh = true
	case err != nil:
		return fmt.Errorf("stat ledger: %w", err)
	case info.Size() == 0:
		fresh = true
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if fresh {
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	for _, rec := range records {
		if err := writer.Write([]string{rec.CountryCode, rec.Start.String(), rec.End.String()}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Read loads every record from a ledger-format file.
func Read(path string) ([]window.MissingWindow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file)
}

// Parse decodes ledger-format CSV; header lines repeated mid-file are skipped.
func Parse(r io.Reader) ([]window.MissingWindow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	out := make([]window.MissingWindow, 0)
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read ledger line %d: %w", line, err)
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("ledger line %d: expected 3 columns, got %d", line, len(record))
		}
		if strings.EqualFold(strings.TrimSpace(record[0]), header[0]) {
			continue
		}

		start, err := window.ParseMonth(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", line, err)
		}
		end, err := window.ParseMonth(strings.TrimSpace(record[2]))
		if err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", line, err)
		}
		out = append(out, window.MissingWindow{
			CountryCode: strings.ToUpper(strings.TrimSpace(record[0])),
			Start:       start,
			End:         end,
		})
	}
	return out, nil
}
