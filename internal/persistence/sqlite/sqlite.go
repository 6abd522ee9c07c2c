// Package sqlite implements the persistence interfaces on top of SQLite.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/school-bell/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// singletonID is the primary key of the command and siren slots.
const singletonID = 1

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	*ScheduleRepository
	*CommandRepository
	*SirenRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

// Open opens the database at dsn with the default server configuration.
func Open(dsn string) (*Storage, error) {
	return OpenWithConfig(migration.DefaultSQLiteConfig(dsn), nil)
}

// OpenWithConfig opens the database described by config.
func OpenWithConfig(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	return &Storage{
		ScheduleRepository: NewScheduleRepository(pool),
		CommandRepository:  NewCommandRepository(pool),
		SirenRepository:    NewSirenRepository(pool),
		pool:               pool,
		logger:             logger,
	}, nil
}

// Migrate applies the embedded schema migrations. It seeds the command and
// siren slots, so a migrated database always has both singleton rows.
func (s *Storage) Migrate(ctx context.Context) error {
	migrations, err := migration.Load(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite: load migrations: %w", err)
	}

	manager := migration.NewManager(migration.NewSQLiteExecutor(s.pool.DB()), migrations, s.logger)
	if err := manager.Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
