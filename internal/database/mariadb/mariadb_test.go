package mariadb

import (
	"testing"

	"github.com/kozaktomas/face-attendance/internal/config"
)

func TestNewPoolRequiresDSN(t *testing.T) {
	_, err := NewPool(&config.DatabaseConfig{})
	if err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestNewPoolInvalidDSN(t *testing.T) {
	_, err := NewPool(&config.DatabaseConfig{MySQLDSN: "not a dsn", MaxOpenConns: 1, MaxIdleConns: 1})
	if err == nil {
		t.Fatal("expected error for malformed DSN")
	}
}
