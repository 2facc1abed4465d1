// Package database provides the SQLite connection behind the device
// event journal.
//
// This package manages:
//   - Opening the database with WAL mode and a busy timeout
//   - Versioned schema migrations read from an fs.FS
//   - Health checks and lifecycle
//
// The journal records session lifecycle events only. Message payloads are
// never stored for redelivery.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and are applied oldest first, one transaction each.
package database
