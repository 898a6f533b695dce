// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files live in an fs.FS (normally embedded into the binary) and are
// named {version}_{description}.sql, e.g. "001_create_workshops.sql". Applied
// versions are recorded in the schema_migrations table together with the file
// checksum, so a file that changes after it was applied is reported instead of
// silently diverging.
//
//	manager := migration.NewManager(db, migrationsFS, logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
