// Package database handles database connections and schema inspection.
//
// It provides a wrapper around GORM (Go Object Relational Mapping) to properly configure
// MySQL and SQLite connections based on the application's configuration.
//
// # Connect
//
// The Connect function establishes a connection to the database. MySQL connections get
// DSN timeouts and a bounded pool, SQLite in-memory databases are pinned to a single
// connection.
//
// # Schema Inspection
//
// GetTableColumns retrieves the columns of a table, which the persistence schema check
// compares against the entity definitions.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	columns, err := database.GetTableColumns(db, "posts")
package database
