//go:build integration

package mariadb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

var _ database.AttendanceStore = (*AttendanceRepository)(nil)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mariadb:11",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MARIADB_ROOT_PASSWORD": "test",
			"MARIADB_DATABASE":      "attendance",
		},
		WaitingFor: wait.ForListeningPort("3306/tcp").WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		MySQLDSN:     fmt.Sprintf("root:test@tcp(%s:%s)/attendance", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	var pool *Pool
	// The port opens before the server accepts logins.
	for range 30 {
		pool, err = Open(ctx, cfg)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to open database: %v", err)
	}

	return pool, func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
}

func TestAttendanceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewAttendanceRepository(pool)
	l := ledger.New(repo, ledger.WithLocation(time.UTC))

	for _, ts := range []time.Time{
		time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 9, 5, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 7, 30, 0, 0, time.UTC),
	} {
		if _, err := l.Mark(ctx, "Alice", ts); err != nil {
			t.Fatalf("Failed to mark: %v", err)
		}
	}

	// Duplicate from another writer is ignored.
	err := repo.Append(ctx, ledger.Record{Name: "Alice", Date: "2024-01-01", Time: "12:00:00"}, nil)
	if !errors.Is(err, ledger.ErrAlreadyStored) {
		t.Fatalf("Expected ErrAlreadyStored for duplicate insert, got %v", err)
	}

	records, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	want := []ledger.Record{
		{Name: "Alice", Date: "2024-01-01", Time: "09:00:00"},
		{Name: "Alice", Date: "2024-01-02", Time: "07:30:00"},
	}
	if len(records) != len(want) {
		t.Fatalf("Expected %d records, got %v", len(want), records)
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("Record %d: expected %v, got %v", i, want[i], records[i])
		}
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 records, got %d", count)
	}
}
