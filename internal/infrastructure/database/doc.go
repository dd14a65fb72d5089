// Package database owns the SQLite handle for Hearth Core: opening the
// file with WAL mode and foreign keys enforced, pinning the pool to a
// single connection, and applying embedded schema migrations.
//
// Migrations are additive-only. New columns are nullable or carry a
// default, columns are never dropped or renamed, and every version has
// both an .up.sql and a .down.sql half. Each migration commits in its
// own transaction so a failed batch resumes from the failure point.
//
// Typical startup sequence:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// The database file is created with owner-only permissions; all access
// goes through parameterised statements.
package database
