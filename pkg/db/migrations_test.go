package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEmbeddedMigrations(t *testing.T) {
	available, err := NewMigrationManager(nil).Available()
	if err != nil {
		t.Fatalf("Available failed: %v", err)
	}
	if len(available) < 2 {
		t.Fatalf("Expected at least 2 embedded migrations, got %d", len(available))
	}
	if available[0].Version != 1 || available[0].Name != "snapshots" {
		t.Errorf("Unexpected first migration %d %q", available[0].Version, available[0].Name)
	}
}

func TestInitializeDatabaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := InitializeDatabase(ctx, db); err != nil {
		t.Fatalf("First initialization failed: %v", err)
	}
	if err := InitializeDatabase(ctx, db); err != nil {
		t.Fatalf("Second initialization failed: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count); err != nil {
		t.Fatalf("Counting migrations failed: %v", err)
	}
	available, _ := NewMigrationManager(db).Available()
	if count != len(available) {
		t.Errorf("Expected %d applied migrations, got %d", len(available), count)
	}

	if _, err := db.Exec(`INSERT INTO snapshots (key, body, encoding, size, updated_at) VALUES ('k', x'00', 'raw', 1, CURRENT_TIMESTAMP)`); err != nil {
		t.Errorf("Snapshots table not usable: %v", err)
	}
}

func TestMigrateFromFS(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	fsys := fstest.MapFS{
		"001_first.sql":  {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"002_second.sql": {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"README.md":      {Data: []byte("ignored")},
		"x_bad.sql":      {Data: []byte("not sql")},
	}
	m := NewMigrationManagerFS(db, fsys)

	n, err := m.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 migrations applied, got %d", n)
	}

	pending, err := m.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected no pending migrations, got %d", len(pending))
	}

	fsys["003_broken.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE")}
	if _, err := m.Migrate(ctx); err == nil {
		t.Error("Expected broken migration to fail")
	}
	pending, _ = m.Pending(ctx)
	if len(pending) != 1 || pending[0].Version != 3 {
		t.Errorf("Broken migration should stay pending, got %+v", pending)
	}
}
