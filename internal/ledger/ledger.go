// Package ledger keeps the attendance ledger: a CSV file with a Name,Date,Time header
// and at most one row per person.
package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// ErrNoRecords is returned by Records when the ledger file does not exist yet.
var ErrNoRecords = errors.New("no attendance records")

// Record is one ledger row.
type Record struct {
	Name string `json:"name"`
	Date string `json:"date"`
	Time string `json:"time"`
}

// Notifier is told about every record the ledger adds.
type Notifier interface {
	Notify(record Record)
}

// Ledger appends first-sighting records to a CSV file.
type Ledger struct {
	path     string
	clock    func() time.Time
	notifier Notifier
	mu       sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now as the source of record timestamps.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// WithNotifier registers n to receive newly added records.
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) {
		l.notifier = n
	}
}

// New creates a ledger backed by the file at path. The file is created lazily on the first Mark.
func New(path string, opts ...Option) *Ledger {
	l := &Ledger{
		path:  path,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// Mark records name if it is not in the ledger yet. It returns the record and
// whether it was appended by this call; for names already present the returned
// record carries only the name.
func (l *Ledger) Mark(name string) (Record, bool, error) {
	name = strings.ToLower(name)

	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Record{}, false, fmt.Errorf("reading ledger: %w", err)
	}

	seen, err := containsName(data, name)
	if err != nil {
		return Record{}, false, err
	}
	if seen {
		return Record{Name: name}, false, nil
	}

	now := l.clock()
	record := Record{
		Name: name,
		Date: now.Format(constants.DateLayout),
		Time: now.Format(constants.TimeLayout),
	}

	var buf bytes.Buffer
	switch {
	case len(data) == 0:
		buf.WriteString(constants.LedgerHeader + "\n")
	case data[len(data)-1] != '\n':
		buf.WriteByte('\n')
	}
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{record.Name, record.Date, record.Time}); err != nil {
		return Record{}, false, fmt.Errorf("encoding record: %w", err)
	}
	w.Flush()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // configured path
	if err != nil {
		return Record{}, false, fmt.Errorf("opening ledger: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return Record{}, false, fmt.Errorf("appending record: %w", err)
	}
	if err := f.Close(); err != nil {
		return Record{}, false, fmt.Errorf("closing ledger: %w", err)
	}

	if l.notifier != nil {
		l.notifier.Notify(record)
	}
	return record, true, nil
}

// containsName reports whether any data row starts with name. Rows of any width
// and stray quotes are tolerated.
func containsName(data []byte, name string) (bool, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("parsing ledger: %w", err)
		}
		if first {
			first = false
			if isHeader(row) {
				continue
			}
		}
		if len(row) > 0 && row[0] == name {
			return true, nil
		}
	}
}

func isHeader(row []string) bool {
	return len(row) > 0 && row[0] == constants.LedgerNameColumn
}

// Records returns all data rows. Every row must have exactly three fields.
func (l *Ledger) Records() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoRecords
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing ledger: %w", err)
	}
	if len(rows) > 0 && isHeader(rows[0]) {
		rows = rows[1:]
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Record{Name: row[0], Date: row[1], Time: row[2]})
	}
	return records, nil
}
