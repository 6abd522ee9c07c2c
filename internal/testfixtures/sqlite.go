package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/school-bell/internal/persistence"
	"github.com/example/school-bell/internal/persistence/memory"
	"github.com/example/school-bell/internal/persistence/sqlite"
	"github.com/example/school-bell/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style persistence tests.
type SQLiteHarness struct {
	Store     persistence.Store
	Schedules persistence.ScheduleRepository
	Commands  persistence.CommandQueue
	Siren     persistence.SirenTracker

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "bell.db")
	storage, err := sqlite.OpenWithConfig(migration.TempFileTestSQLiteConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store:     storage,
		Schedules: storage,
		Commands:  storage,
		Siren:     storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// Backends returns a constructor per supported backend, keyed by name, so
// contract tests can run the same assertions against each.
func Backends() map[string]func(testing.TB) persistence.Store {
	return map[string]func(testing.TB) persistence.Store{
		"memory": func(testing.TB) persistence.Store { return memory.Open() },
		"sqlite": func(tb testing.TB) persistence.Store { return NewSQLiteHarness(tb).Store },
	}
}
