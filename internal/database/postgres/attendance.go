package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Load returns all attendance records in insertion order
func (r *AttendanceRepository) Load(ctx context.Context) ([]ledger.Record, error) {
	query := `
		SELECT name, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI:SS')
		FROM attendance
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, &ledger.IOError{Op: "load", Err: fmt.Errorf("query attendance: %w", err)}
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var rec ledger.Record
		if err := rows.Scan(&rec.Name, &rec.Date, &rec.Time); err != nil {
			return nil, &ledger.IOError{Op: "load", Err: fmt.Errorf("scan attendance: %w", err)}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &ledger.IOError{Op: "load", Err: fmt.Errorf("iterate attendance: %w", err)}
	}
	return records, nil
}

// Append inserts a single record. A record for the same (name, date) written
// by another process is left untouched and reported as ledger.ErrAlreadyStored.
func (r *AttendanceRepository) Append(ctx context.Context, rec ledger.Record, _ []ledger.Record) error {
	query := `
		INSERT INTO attendance (name, date, time)
		VALUES ($1, $2::date, $3::time)
		ON CONFLICT (name, date) DO NOTHING
	`

	res, err := r.pool.Exec(ctx, query, rec.Name, rec.Date, rec.Time)
	if err != nil {
		return &ledger.IOError{Op: "append", Err: fmt.Errorf("insert attendance: %w", err)}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &ledger.IOError{Op: "append", Err: fmt.Errorf("rows affected: %w", err)}
	}
	if n == 0 {
		return ledger.ErrAlreadyStored
	}
	return nil
}

// Count returns the total number of attendance records
func (r *AttendanceRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM attendance").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}
