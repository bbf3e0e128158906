package migrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"m/001_create_a.up.sql":   {Data: []byte("CREATE TABLE a (id INTEGER)")},
		"m/001_create_a.down.sql": {Data: []byte("DROP TABLE a")},
		"m/002_create_b.up.sql":   {Data: []byte("CREATE TABLE b (id INTEGER)")},
		"m/002_create_b.down.sql": {Data: []byte("DROP TABLE b")},
		"m/README":                {Data: []byte("ignored")},
	}
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n == 1
}

func TestMigrateUpAndDown(t *testing.T) {
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(testFS(), "m", ""), nil)

	pending, err := m.GetPendingMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].Version != 1 || pending[0].Name != "create a" {
		t.Fatalf("pending = %+v", pending)
	}

	if err := m.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	if v, _ := m.GetCurrentVersion(); v != 2 {
		t.Errorf("version = %d, want 2", v)
	}
	if !tableExists(t, db, "a") || !tableExists(t, db, "b") {
		t.Error("tables not created")
	}

	// Re-running is a no-op.
	if err := m.MigrateUp(); err != nil {
		t.Fatalf("second MigrateUp: %v", err)
	}

	if err := m.MigrateTo(1); err != nil {
		t.Fatalf("MigrateTo(1): %v", err)
	}
	if v, _ := m.GetCurrentVersion(); v != 1 {
		t.Errorf("version after rollback = %d, want 1", v)
	}
	if tableExists(t, db, "b") {
		t.Error("table b survived rollback")
	}

	if err := m.MigrateTo(0); err != nil {
		t.Fatalf("MigrateTo(0): %v", err)
	}
	if v, _ := m.GetCurrentVersion(); v != 0 {
		t.Errorf("version after full rollback = %d, want 0", v)
	}
}

func TestMigrateFailureRollsBack(t *testing.T) {
	fsys := testFS()
	fsys["m/003_broken.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE")}
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(fsys, "m", "config_migrations"), nil)

	if err := m.MigrateUp(); err == nil {
		t.Fatal("MigrateUp succeeded with a broken migration")
	}
	if v, _ := m.GetCurrentVersion(); v != 2 {
		t.Errorf("version = %d, want 2 (last good migration)", v)
	}
}
