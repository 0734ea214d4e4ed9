// Package db stores metric runs in SQLite.
//
// The schema is managed with golang-migrate from migrations embedded in the
// binary; call MigrateUp after Open before recording runs.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the results database connection.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the SQLite database at path with foreign
// keys enforced. It does not migrate.
func Open(path string) (*DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers; one connection also keeps pragmas uniform.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{sqlDB}, nil
}
