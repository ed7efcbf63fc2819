package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"chatwarden/pkg/warden"
)

// DefaultFileName is the ledger file name inside the data directory.
const DefaultFileName = "title_changes.csv"

// timestampLayout is the stored timestamp format. Timestamps are written in
// UTC so recorded rows stay in increasing order across zone transitions.
const timestampLayout = time.RFC3339

var header = []string{"timestamp", "new_value", "changed_by"}

// CSVStore is a ChangeLedger backed by one append-only CSV file.
//
// The file starts with a header row and every change is one appended row.
// Rows are never rewritten or deleted. Appends reopen the file per record,
// so concurrent external readers always observe complete records.
type CSVStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// CSVStoreOption mutates CSV store construction configuration.
type CSVStoreOption func(*CSVStore)

// WithClock overrides the timestamp source used for appended records
// carrying a zero timestamp.
func WithClock(now func() time.Time) CSVStoreOption {
	return func(store *CSVStore) {
		if now != nil {
			store.now = now
		}
	}
}

// NewCSVStore opens or creates the ledger file at path.
//
// Parent directories are created as needed. A fresh file receives the header
// row immediately so the ledger is valid from the first append.
func NewCSVStore(path string, options ...CSVStoreOption) (*CSVStore, error) {
	if path == "" {
		return nil, fmt.Errorf("new csv store: empty path")
	}

	store := &CSVStore{
		path: path,
		now:  time.Now,
	}
	for _, option := range options {
		option(store)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("new csv store: create data directory: %w", err)
	}
	if err := store.ensureHeader(); err != nil {
		return nil, fmt.Errorf("new csv store: %w", err)
	}

	return store, nil
}

// Path returns the backing file path.
func (s *CSVStore) Path() string {
	return s.path
}

// Append durably records one change at the end of the ledger file.
func (s *CSVStore) Append(record warden.ChangeRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = s.now()
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("append change record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("append change record: open ledger: %w", err)
	}

	writer := csv.NewWriter(file)
	writeErr := writer.Write([]string{
		record.Timestamp.UTC().Format(timestampLayout),
		record.NewValue,
		record.ChangedBy,
	})
	writer.Flush()
	if writeErr == nil {
		writeErr = writer.Error()
	}

	if closeErr := file.Close(); closeErr != nil && writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		return fmt.Errorf("append change record: write ledger row: %w", writeErr)
	}

	return nil
}

// Recent returns up to limit most recent records, newest first.
//
// An empty or header-only ledger yields an empty slice. Rows that cannot be
// parsed are skipped rather than failing the whole read, so one corrupt line
// cannot take the history feature down.
func (s *CSVStore) Recent(limit int) ([]warden.ChangeRecord, error) {
	if limit <= 0 {
		return []warden.ChangeRecord{}, nil
	}

	// The scan runs without the writer mutex: every append is one O_APPEND
	// write of a complete row, so a reader never observes a partial record
	// and never stalls an append for the duration of a full file parse.
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []warden.ChangeRecord{}, nil
		}
		return nil, fmt.Errorf("read recent changes: open ledger: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records := make([]warden.ChangeRecord, 0)
	first := true
	for {
		row, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read recent changes: %w", readErr)
		}
		if first {
			first = false
			if isHeaderRow(row) {
				continue
			}
		}

		record, ok := parseRow(row)
		if !ok {
			continue
		}
		records = append(records, record)
	}

	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	reverse(records)

	return records, nil
}

// ensureHeader writes the header row when the ledger file is new or empty.
func (s *CSVStore) ensureHeader() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("stat ledger: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}

	writer := csv.NewWriter(file)
	writeErr := writer.Write(header)
	writer.Flush()
	if writeErr == nil {
		writeErr = writer.Error()
	}

	if closeErr := file.Close(); closeErr != nil && writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		return fmt.Errorf("write ledger header: %w", writeErr)
	}

	return nil
}

func isHeaderRow(row []string) bool {
	if len(row) != len(header) {
		return false
	}
	for index := range header {
		if row[index] != header[index] {
			return false
		}
	}

	return true
}

func parseRow(row []string) (warden.ChangeRecord, bool) {
	if len(row) < 2 {
		return warden.ChangeRecord{}, false
	}

	timestamp, err := time.Parse(timestampLayout, row[0])
	if err != nil {
		return warden.ChangeRecord{}, false
	}
	timestamp = timestamp.UTC()

	record := warden.ChangeRecord{
		Timestamp: timestamp,
		NewValue:  row[1],
	}
	if len(row) > 2 {
		record.ChangedBy = row[2]
	}
	if record.NewValue == "" {
		return warden.ChangeRecord{}, false
	}

	return record, true
}

func reverse(records []warden.ChangeRecord) {
	for left, right := 0, len(records)-1; left < right; left, right = left+1, right-1 {
		records[left], records[right] = records[right], records[left]
	}
}

var _ warden.ChangeLedger = (*CSVStore)(nil)
