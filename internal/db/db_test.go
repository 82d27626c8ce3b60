package db

import (
	"fmt"
	"testing"

	"github.com/diewo77/docbatch/internal/config"
	"github.com/diewo77/docbatch/internal/models"
	"go.uber.org/zap"
)

func TestNormalizeDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{` "postgres://u:p@h/db" `, "postgres://u:p@h/db"},
		{"host=h   user=u dbname=d", "host=h user=u dbname=d sslmode=disable"},
		{"host=h sslmode=require", "host=h sslmode=require"},
		{"garbage", "garbage"},
	}
	for _, tt := range tests {
		if got := NormalizeDSN(tt.in); got != tt.want {
			t.Errorf("NormalizeDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(config.DatabaseConfig{Driver: "oracle"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestMigrateAndSeedIdempotent(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: dsn}, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := Seed(conn, "op1", "Operator"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := Seed(conn, "op1", "Operator"); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	var count int64
	conn.Model(&models.User{}).Where("id = ?", "op1").Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 operator got %d", count)
	}
	var u models.User
	if err := conn.First(&u, "id = ?", "op1").Error; err != nil {
		t.Fatalf("load operator: %v", err)
	}
	if u.Role != "ADMIN" {
		t.Fatalf("expected ADMIN role got %q", u.Role)
	}
}
