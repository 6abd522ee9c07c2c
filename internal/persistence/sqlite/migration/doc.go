// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files are read from an fs.FS (normally an embedded directory) and
// follow the naming convention {version}_{description}.sql, for example
// "001_bell_schema.sql". Applied versions are tracked in a schema_migrations
// table so each file runs exactly once, inside its own transaction.
//
// Example usage:
//
//	migrations, err := migration.Load(files, "migrations")
//	if err != nil {
//		return err
//	}
//	manager := migration.NewManager(migration.NewSQLiteExecutor(db), migrations, logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
