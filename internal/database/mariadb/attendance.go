package mariadb

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/ledger"
)

const createAttendanceTable = `
	CREATE TABLE IF NOT EXISTS attendance (
		id         BIGINT AUTO_INCREMENT PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		date       DATE NOT NULL,
		time       TIME NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY attendance_name_date (name, date)
	) DEFAULT CHARSET = utf8mb4 COLLATE = utf8mb4_bin
`

func (p *Pool) ensureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createAttendanceTable); err != nil {
		return fmt.Errorf("create attendance table: %w", err)
	}
	return nil
}

// AttendanceRepository provides MariaDB-backed attendance storage
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new MariaDB attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Load returns all attendance records in insertion order
func (r *AttendanceRepository) Load(ctx context.Context) ([]ledger.Record, error) {
	query := `
		SELECT name, DATE_FORMAT(date, '%Y-%m-%d'), TIME_FORMAT(time, '%H:%i:%s')
		FROM attendance
		ORDER BY id
	`

	rows, err := r.pool.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &ledger.IOError{Op: "load", Err: fmt.Errorf("query attendance: %w", err)}
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var rec ledger.Record
		if err := rows.Scan(&rec.Name, &rec.Date, &rec.Time); err != nil {
			return nil, &ledger.IOError{Op: "load", Err: fmt.Errorf("scan row: %w", err)}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &ledger.IOError{Op: "load", Err: fmt.Errorf("iterate rows: %w", err)}
	}
	return records, nil
}

// Append inserts a single record. A duplicate (name, date) is ignored by the
// server and reported as ledger.ErrAlreadyStored.
func (r *AttendanceRepository) Append(ctx context.Context, rec ledger.Record, _ []ledger.Record) error {
	query := `INSERT IGNORE INTO attendance (name, date, time) VALUES (?, ?, ?)`
	res, err := r.pool.db.ExecContext(ctx, query, rec.Name, rec.Date, rec.Time)
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
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attendance").Scan(&count); err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}
