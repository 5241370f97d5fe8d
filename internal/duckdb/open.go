// Package duckdb opens the report database used by the SQL feature
// sink.
package duckdb

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
)

// Open opens (or creates) a DuckDB database at path and verifies the
// connection. The report is written by a single process, so the pool is
// capped at one writer connection.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", injectThreadConfig(path))
	if err != nil {
		return nil, fmt.Errorf("duckdb: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb: ping %s: %w", path, err)
	}
	return db, nil
}

// injectThreadConfig adds a threads limit to the DSN query parameters
// if not already set, keeping DuckDB's internal parallelism from
// fighting the scan worker pool for cores.
func injectThreadConfig(dsn string) string {
	if dsn == "" || dsn == ":memory:" {
		return dsn
	}
	sep := strings.IndexByte(dsn, '?')
	path := dsn
	query := ""
	if sep >= 0 {
		path = dsn[:sep]
		query = dsn[sep+1:]
	}
	params, err := url.ParseQuery(query)
	if err != nil {
		return dsn
	}
	if !params.Has("threads") {
		params.Set("threads", "2")
	}
	return path + "?" + params.Encode()
}
