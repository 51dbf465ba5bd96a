package database

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// openTestDB opens a WAL-mode database in a temp directory.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "gateway_test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return db
}

// seedPropertyTable creates a table shaped like the adapter's property
// store and inserts one row.
func seedPropertyTable(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE props (key TEXT PRIMARY KEY, value TEXT NOT NULL)
	`); err != nil {
		t.Fatalf("creating props table: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO props (key, value) VALUES (?, ?)", "apiVersion", "2.5.0"); err != nil {
		t.Fatalf("seeding props: %v", err)
	}
}

// ===== Open =====

func TestOpen_CreatesFileAndParentDirs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "gateway", "gateway.db")

	db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file missing: %v", err)
	}
	if got := db.Path(); got != dbPath {
		t.Errorf("Path() = %q, want %q", got, dbPath)
	}
}

func TestOpen_WithoutWALMode(t *testing.T) {
	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "plain.db"),
		WALMode:     false,
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

// ===== Lifecycle =====

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose_SafeToRepeat(t *testing.T) {
	db := openTestDB(t)

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() after nil error = %v", err)
	}
}

func TestStats_SingleWriter(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1 (SQLite single writer)", got)
	}
}

// ===== Transactions =====

func TestTransaction_Commit(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup
	seedPropertyTable(t, db)

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO props (key, value) VALUES (?, ?)", "eventPort", "8443"); err != nil {
		t.Fatalf("INSERT error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	var value string
	if err := db.QueryRowContext(ctx,
		"SELECT value FROM props WHERE key = ?", "eventPort").Scan(&value); err != nil {
		t.Fatalf("SELECT error = %v", err)
	}
	if value != "8443" {
		t.Errorf("value = %q, want 8443", value)
	}
}

func TestTransaction_RollbackDiscardsWrite(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup
	seedPropertyTable(t, db)

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE props SET value = ? WHERE key = ?", "9.9.9", "apiVersion"); err != nil {
		t.Fatalf("UPDATE error = %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	var value string
	if err := db.QueryRowContext(ctx,
		"SELECT value FROM props WHERE key = ?", "apiVersion").Scan(&value); err != nil {
		t.Fatalf("SELECT error = %v", err)
	}
	if value != "2.5.0" {
		t.Errorf("value = %q, want original 2.5.0 after rollback", value)
	}
}

// ===== Concurrency =====

// The property store and the discovery seeder hit the database from
// different goroutines; reads must not fail under that interleaving.
func TestConcurrentReads(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup
	seedPropertyTable(t, db)

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 8)

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var value string
			if err := db.QueryRowContext(ctx,
				"SELECT value FROM props WHERE key = ?", "apiVersion").Scan(&value); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent read error = %v", err)
	}
}
