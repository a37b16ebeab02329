// Package migration reconciles the versioned SQL scripts shipped with the
// service against the version recorded in the target database.
//
// Scripts are discovered by file name: four digits, an underscore, a name made
// of letters and underscores, and the .sql extension (e.g. "0001_add_users.sql").
// Anything else in the script directory is ignored. The database records every
// applied script as one row of the schema_version table; the highest version
// in that table is the current database version.
//
// A Manager never rolls back and never skips: UpdateDatabase applies each
// missing script in ascending order, stopping at the first gap in the
// sequence, and refuses to touch a database that is ahead of the scripts.
//
// Example usage:
//
//	mgr := migration.NewManager(migration.NewDirSource("SQL"), executor, log.Logger)
//	if err := mgr.UpdateDatabase(ctx); err != nil {
//		log.Fatal().Err(err).Msg("Failed to update database")
//	}
package migration
