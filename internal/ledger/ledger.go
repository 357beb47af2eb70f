// Package ledger keeps the attendance records: at most one record per person
// per calendar day, in the order they were taken.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Record is one attendance entry. Date is YYYY-MM-DD and Time is HH:MM:SS,
// both in the ledger's calendar location.
type Record struct {
	Name string `json:"name"`
	Date string `json:"date"`
	Time string `json:"time"`
}

// Outcome is the result of marking a person present.
type Outcome int

const (
	// Recorded means a new record was appended and persisted.
	Recorded Outcome = iota
	// AlreadyPresent means the person already has a record for that day.
	AlreadyPresent
)

func (o Outcome) String() string {
	switch o {
	case Recorded:
		return "recorded"
	case AlreadyPresent:
		return "already_present"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Store persists the ledger.
type Store interface {
	// Load returns every persisted record in insertion order.
	// A store that does not exist yet yields no records and no error.
	Load(ctx context.Context) ([]Record, error)
	// Append persists rec. all holds the full ledger including rec, for
	// stores that rewrite everything on each change.
	Append(ctx context.Context, rec Record, all []Record) error
}

type dayKey struct {
	name string
	date string
}

// Ledger is the in-memory attendance ledger backed by a Store.
// Mark calls are serialized; readers get snapshots taken under the same lock.
type Ledger struct {
	store  Store
	loc    *time.Location
	logger *slog.Logger

	mu      sync.Mutex
	records []Record
	present map[dayKey]struct{}
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLocation sets the location whose calendar decides the attendance day.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates an empty ledger. Call Load to read previously persisted records.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		loc:     time.Local,
		logger:  slog.Default(),
		present: make(map[dayKey]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the in-memory records with the persisted ones.
func (l *Ledger) Load(ctx context.Context) error {
	records, err := l.store.Load(ctx)
	if err != nil {
		return err
	}

	present := make(map[dayKey]struct{}, len(records))
	for _, r := range records {
		present[dayKey{r.Name, r.Date}] = struct{}{}
	}

	l.mu.Lock()
	l.records = records
	l.present = present
	l.mu.Unlock()

	l.logger.Debug("loaded attendance ledger", "records", len(records))
	return nil
}

// Mark records name as present at ts unless a record for the same name and
// calendar day already exists. The in-memory ledger only changes after the
// store accepted the record, so a failed write leaves no trace and the next
// Mark for the same person tries again.
func (l *Ledger) Mark(ctx context.Context, name string, ts time.Time) (Outcome, error) {
	local := ts.In(l.loc)
	rec := Record{
		Name: name,
		Date: local.Format(constants.DateLayout),
		Time: local.Format(constants.TimeLayout),
	}
	key := dayKey{rec.Name, rec.Date}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.present[key]; ok {
		return AlreadyPresent, nil
	}

	all := append(l.records[:len(l.records):len(l.records)], rec)
	err := l.store.Append(ctx, rec, all)
	if errors.Is(err, ErrAlreadyStored) {
		l.adoptStoredLocked(ctx, key)
		return AlreadyPresent, nil
	}
	if err != nil {
		return 0, err
	}
	l.records = all
	l.present[key] = struct{}{}

	l.logger.Info("attendance recorded", "name", rec.Name, "date", rec.Date, "time", rec.Time)
	return Recorded, nil
}

// adoptStoredLocked picks up a record another writer persisted for key, so
// the in-memory ledger carries the stored time instead of the rejected one.
func (l *Ledger) adoptStoredLocked(ctx context.Context, key dayKey) {
	l.present[key] = struct{}{}
	stored, err := l.store.Load(ctx)
	if err != nil {
		l.logger.Warn("failed to reload attendance after duplicate", "name", key.name, "date", key.date, "error", err)
		return
	}
	for _, r := range stored {
		if r.Name == key.name && r.Date == key.date {
			l.records = append(l.records, r)
			break
		}
	}
	l.logger.Info("attendance already stored", "name", key.name, "date", key.date)
}

// Records returns a copy of all records in insertion order.
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.records)
}

// Count returns the number of records.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Query returns the records of date (YYYY-MM-DD), or all records when date is
// empty, in insertion order. The sequence iterates over a snapshot taken when
// Query is called and can be ranged over any number of times.
func (l *Ledger) Query(date string) iter.Seq[Record] {
	l.mu.Lock()
	snapshot := l.records[:len(l.records):len(l.records)]
	l.mu.Unlock()

	return func(yield func(Record) bool) {
		for _, r := range snapshot {
			if date != "" && r.Date != date {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Today returns the current attendance day in the ledger's location.
func (l *Ledger) Today() string {
	return time.Now().In(l.loc).Format(constants.DateLayout)
}

// ParseDate validates a YYYY-MM-DD filter and returns it in canonical form.
func ParseDate(s string) (string, error) {
	d, err := time.Parse(constants.DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return d.Format(constants.DateLayout), nil
}
