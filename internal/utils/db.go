// Package utils opens the external stores used by the service: a SQL database for the partition
// table and an optional Redis for query statistics.
package utils

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	defaultSQLitePath = "postcodes.db"
)

// OpenDB opens and pings a database. maxOpen and maxIdle are applied when positive.
func OpenDB(driver, dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver, ResolveDSN(driver, dsn))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// ResolveDSN fills in a default DSN: the PG_* environment for postgres, a local file for sqlite.
func ResolveDSN(driver, dsn string) string {
	if dsn != "" {
		return dsn
	}
	if driver == DriverPostgres {
		return BuildPostgresDSNFromEnv()
	}
	return defaultSQLitePath
}

// BuildPostgresDSNFromEnv assembles a postgres URL from PG_HOST, PG_PORT, PG_USER, PG_PASSWORD,
// PG_DB and PG_SSLMODE.
func BuildPostgresDSNFromEnv() string {
	host := os.Getenv("PG_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("PG_PORT")
	if port == "" {
		port = "5432"
	}
	user := os.Getenv("PG_USER")
	if user == "" {
		user = "postgres"
	}
	pass := os.Getenv("PG_PASSWORD")
	db := os.Getenv("PG_DB")
	if db == "" {
		db = "postcodes"
	}
	ssl := os.Getenv("PG_SSLMODE")
	if ssl == "" {
		ssl = "disable"
	}
	dsn := "postgres://" + user
	if pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + host + ":" + port + "/" + db + "?sslmode=" + ssl
	return dsn
}
