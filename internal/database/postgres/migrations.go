package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
)

// The attendance and gallery embedding schema, one file per version. Files
// are applied in name order and recorded by file name in schema_migrations.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

const createSchemaMigrations = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ DEFAULT NOW()
	)
`

// schemaMigration is one embedded SQL file.
type schemaMigration struct {
	Version string // file name, e.g. 001_attendance.sql
	SQL     string
}

// pendingMigrations reads the migrations in fsys that are not in applied,
// ordered by version.
func pendingMigrations(fsys fs.FS, applied map[string]bool) ([]schemaMigration, error) {
	paths, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(paths)

	var pending []schemaMigration
	for _, p := range paths {
		version := path.Base(p)
		if applied[version] {
			continue
		}
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", version, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			return nil, fmt.Errorf("migration %s is empty", version)
		}
		pending = append(pending, schemaMigration{Version: version, SQL: string(content)})
	}
	return pending, nil
}

// Migrate brings the attendance schema up to date. It runs on every Open.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createSchemaMigrations); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	versions, err := p.MigrationsApplied(ctx)
	if err != nil {
		return err
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	pending, err := pendingMigrations(migrationsFS, applied)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := p.applyMigration(ctx, m); err != nil {
			return err
		}
		slog.Info("applied schema migration", "migration", m.Version)
	}
	slog.Debug("attendance schema up to date", "applied", len(versions)+len(pending), "new", len(pending))
	return nil
}

// applyMigration runs m and records it in one transaction, so a failing file
// leaves neither its changes nor its version behind.
func (p *Pool) applyMigration(ctx context.Context, m schemaMigration) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("execute migration %s: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
		return fmt.Errorf("record migration %s: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.Version, err)
	}
	return nil
}

// MigrationsApplied returns the applied migration versions in order.
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration versions: %w", err)
	}
	return versions, nil
}
