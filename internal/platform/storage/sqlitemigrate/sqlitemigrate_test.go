package sqlitemigrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate-test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func TestApplyMigrationsRunsOnce(t *testing.T) {
	fsys := fstest.MapFS{
		"001_create.sql": &fstest.MapFile{Data: []byte(`-- +migrate Up
CREATE TABLE widgets (id TEXT PRIMARY KEY);
-- +migrate Down
DROP TABLE widgets;
`)},
	}

	sqlDB := openTestDB(t)
	if err := ApplyMigrations(sqlDB, fsys, "."); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	// Re-applying must be a no-op, not a duplicate-table error.
	if err := ApplyMigrations(sqlDB, fsys, "."); err != nil {
		t.Fatalf("re-apply migrations: %v", err)
	}

	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count applied migrations: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 applied migration, got %d", count)
	}
}

func TestApplyMigrationsOrdersFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"002_add_column.sql": &fstest.MapFile{Data: []byte(`-- +migrate Up
ALTER TABLE widgets ADD COLUMN name TEXT;
`)},
		"001_create.sql": &fstest.MapFile{Data: []byte(`-- +migrate Up
CREATE TABLE widgets (id TEXT PRIMARY KEY);
`)},
	}

	sqlDB := openTestDB(t)
	if err := ApplyMigrations(sqlDB, fsys, "."); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if _, err := sqlDB.Exec("INSERT INTO widgets (id, name) VALUES ('w1', 'widget')"); err != nil {
		t.Fatalf("expected both migrations applied in order: %v", err)
	}
}

func TestExtractUpMigration(t *testing.T) {
	content := `-- +migrate Up
CREATE TABLE a (id TEXT);
-- +migrate Down
DROP TABLE a;`
	up := ExtractUpMigration(content)
	if up != "\nCREATE TABLE a (id TEXT);\n" {
		t.Fatalf("unexpected up migration: %q", up)
	}

	// Without markers the whole content is the up migration.
	if got := ExtractUpMigration("CREATE TABLE b (id TEXT);"); got != "CREATE TABLE b (id TEXT);" {
		t.Fatalf("unexpected up migration without markers: %q", got)
	}
}

func TestApplyMigrationsRejectsNilDB(t *testing.T) {
	if err := ApplyMigrations(nil, fstest.MapFS{}, "."); err == nil {
		t.Fatal("expected nil db to be rejected")
	}
}
