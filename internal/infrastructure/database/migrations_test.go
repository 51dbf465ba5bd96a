package database

import (
	"context"
	"embed"
	"testing"
)

//go:embed testdata/*.sql
var testSchemaFS embed.FS

// useTestSchema points the migration engine at the testdata files for
// the duration of one test.
func useTestSchema(t *testing.T) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
	MigrationsFS = testSchemaFS
	MigrationsDir = "testdata"
}

// tableExists reports whether a table is present in the schema.
func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return count > 0
}

// ===== Migrate =====

func TestMigrate_AppliesAndRecords(t *testing.T) {
	useTestSchema(t)
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if !tableExists(t, db, "channel_log") {
		t.Fatal("channel_log table not created")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("applied = %d, want 1", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
	if len(applied) == 1 && applied[0].AppliedAt.IsZero() {
		t.Error("applied_at timestamp not recorded")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	useTestSchema(t)
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("first Migrate() error = %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("applied = %d after re-run, want 1", len(applied))
	}
}

func TestMigrate_NoRegisteredFilesystem(t *testing.T) {
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
	var emptyFS embed.FS
	MigrationsFS = emptyFS
	MigrationsDir = "."

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
}

// ===== MigrateDown =====

func TestMigrateDown_RollsBackLatest(t *testing.T) {
	useTestSchema(t)
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "channel_log") {
		t.Error("channel_log still present after rollback")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("applied = %d after rollback, want 0", len(applied))
	}
	if len(pending) != 1 {
		t.Errorf("pending = %d after rollback, want 1", len(pending))
	}
}

func TestMigrateDown_NothingApplied(t *testing.T) {
	useTestSchema(t)
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.MigrateDown(context.Background()); err != nil {
		t.Fatalf("MigrateDown() with nothing applied error = %v", err)
	}
}

// ===== Status =====

func TestGetMigrationStatus_PendingBeforeMigrate(t *testing.T) {
	useTestSchema(t)
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	applied, pending, err := db.GetMigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("applied = %d, want 0", len(applied))
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if pending[0].Name != "channel_log" {
		t.Errorf("pending name = %q, want channel_log", pending[0].Name)
	}
	if pending[0].DownSQL == "" {
		t.Error("down SQL not paired with up migration")
	}
}

// ===== Filename parsing =====

func TestSplitMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOk      bool
	}{
		{"20260401_090000_channel_log.up.sql", "20260401_090000", "channel_log", true, true},
		{"20260401_090000_channel_log.down.sql", "20260401_090000", "channel_log", false, true},
		{"20260815_120000_initial_schema.up.sql", "20260815_120000", "initial_schema", true, true},
		{"notes.txt", "", "", false, false},
		{"20260401_090000_channel_log.sql", "", "", false, false},
		{"orphan.up.sql", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, up, ok := splitMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if up != tt.wantUp {
				t.Errorf("up = %v, want %v", up, tt.wantUp)
			}
		})
	}
}
