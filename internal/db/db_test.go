package db

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSqliteDir(t *testing.T) {
	tests := map[string]string{
		"./data/app.db?_pragma=foreign_keys(1)": "data",
		"file:/var/lib/app/app.db":              "/var/lib/app",
		"app.db":                                ".",
	}
	for in, want := range tests {
		if got := sqliteDir(in); got != want {
			t.Errorf("sqliteDir(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMigrationsUpDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "migrate.db")
	database, err := Init("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	defer database.Close()

	if err := RunMigrations(database.DB, "sqlite"); err != nil {
		t.Fatalf("RunMigrations() error: %v", err)
	}

	v, err := Version(database.DB, "sqlite")
	if err != nil {
		t.Fatalf("Version() error: %v", err)
	}
	if v != 1 {
		t.Errorf("Version() = %d, want 1", v)
	}

	for _, table := range []string{"users", "devices", "device_api_keys", "speed_events", "global_statistics"} {
		var n int
		if err := database.Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
			t.Errorf("table %s not queryable: %v", table, err)
		}
	}

	if err := MigrateDown(database.DB, "sqlite"); err != nil {
		t.Fatalf("MigrateDown() error: %v", err)
	}
	var n int
	if err := database.Get(&n, "SELECT COUNT(*) FROM speed_events"); err == nil {
		t.Error("speed_events still exists after MigrateDown()")
	}

	if err := Ping(context.Background(), database); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	if err := setupGoose("mysql"); err == nil {
		t.Error("setupGoose(mysql) expected error")
	}
}
