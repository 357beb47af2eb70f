package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/renameio"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// IOError reports a failed ledger read, write or export.
type IOError struct {
	Op   string // load, append or export
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ErrAlreadyStored is returned by a Store whose backing storage already holds
// a record for the same name and date, typically written by another process.
var ErrAlreadyStored = errors.New("attendance already stored")

// WriteCSV writes records with the Name,Date,Time header.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(constants.LedgerHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write([]string{r.Name, r.Date, r.Time}); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}

// utf8BOM is written at the start of CSV files by some spreadsheet tools.
const utf8BOM = "\ufeff"

// ReadCSV parses a ledger file. The header row and a leading UTF-8 byte
// order mark are optional.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(constants.LedgerHeader)

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(rows) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], utf8BOM)
	}
	if len(rows) > 0 && slices.Equal(rows[0], constants.LedgerHeader) {
		rows = rows[1:]
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Record{Name: row[0], Date: row[1], Time: row[2]})
	}
	return records, nil
}

// FileStore keeps the ledger in a single CSV file. Every append rewrites the
// whole file through a temporary file renamed over the original, so a failed
// write never leaves a truncated ledger behind.
type FileStore struct {
	path string
}

// NewFileStore creates a store for the CSV file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the ledger file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the ledger file. A missing file is an empty ledger.
func (s *FileStore) Load(_ context.Context) ([]Record, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &IOError{Op: "load", Path: s.path, Err: err}
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, &IOError{Op: "load", Path: s.path, Err: err}
	}
	return records, nil
}

// Append rewrites the ledger file with all records.
func (s *FileStore) Append(_ context.Context, _ Record, all []Record) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, all); err != nil {
		return &IOError{Op: "append", Path: s.path, Err: err}
	}
	if err := renameio.WriteFile(s.path, buf.Bytes(), 0644); err != nil {
		return &IOError{Op: "append", Path: s.path, Err: err}
	}
	return nil
}

// Export writes every record to dest in the ledger file format. The file is
// written to a temporary sibling and atomically renamed, so dest either keeps
// its previous content or holds the complete export.
func (l *Ledger) Export(dest string) error {
	records := l.Records()

	pending, err := renameio.TempFile(filepath.Dir(dest), dest)
	if err != nil {
		return &IOError{Op: "export", Path: dest, Err: err}
	}
	defer pending.Cleanup()

	if err := pending.Chmod(0644); err != nil {
		return &IOError{Op: "export", Path: dest, Err: err}
	}
	if err := WriteCSV(pending, records); err != nil {
		return &IOError{Op: "export", Path: dest, Err: err}
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return &IOError{Op: "export", Path: dest, Err: err}
	}

	l.logger.Info("exported attendance", "path", dest, "records", len(records))
	return nil
}
