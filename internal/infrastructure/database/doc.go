// Package database provides the SQLite connection behind the emeraldhwsd history store.
//
// This package manages:
//   - Database connection with WAL mode so `emeraldhwsd history` can read
//     while a daemon is writing
//   - Schema migrations embedded in the binary (see the migrations package)
//   - Connection lifecycle
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//   - Account credentials are never written to the database
//
// Usage:
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
// Migrations are additive-only: new columns must be NULLABLE or have DEFAULT
// values, and each .up.sql has a matching .down.sql.
package database
