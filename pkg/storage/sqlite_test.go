package storage

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestMigrationsApplied(t *testing.T) {
	store := newTestStore(t)

	version, err := store.GetSchemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	want := migrations[len(migrations)-1].Version
	if version != want {
		t.Errorf("expected schema version %d, got %d", want, version)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	store, err := New(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	// Reopening the same file must not re-run migrations or fail.
	store, err = New(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	version, err := store.GetSchemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if want := migrations[len(migrations)-1].Version; version != want {
		t.Errorf("expected schema version %d after reopen, got %d", want, version)
	}
}

func TestDatabaseFilePrivate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes not meaningful on windows")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "test.db")

	store, err := New(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("failed to stat db file: %v", err)
	}
	if mode := info.Mode().Perm(); mode&0o077 != 0 {
		t.Errorf("expected private db file, got mode %v", mode)
	}

	dirInfo, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatalf("failed to stat db dir: %v", err)
	}
	if mode := dirInfo.Mode().Perm(); mode&0o077 != 0 {
		t.Errorf("expected private db directory, got mode %v", mode)
	}
}

func TestInMemoryDatabase(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	version, err := store.GetSchemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version == 0 {
		t.Errorf("expected migrations to run for in-memory database")
	}
}
