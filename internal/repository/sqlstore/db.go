package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open connects to the database named by url and creates the schema.
// postgres:// and postgresql:// URLs use lib/pq; sqlite://<path>, file: and
// :memory: use modernc.org/sqlite.
func Open(ctx context.Context, url string) (*sqlx.DB, error) {
	driver, dsn, err := parseURL(url)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		// One connection serializes writers and keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := InitializeDatabase(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func parseURL(url string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, url, nil
	case strings.HasPrefix(url, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(url, "sqlite://"), nil
	case strings.HasPrefix(url, "file:"), url == ":memory:":
		return DriverSQLite, url, nil
	default:
		return "", "", fmt.Errorf("unsupported database url %q", url)
	}
}

// InitializeDatabase creates the necessary tables
func InitializeDatabase(ctx context.Context, db *sqlx.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			id VARCHAR(36) PRIMARY KEY,
			thread_id VARCHAR(255) UNIQUE NOT NULL,
			sender TEXT NOT NULL,
			subject TEXT,
			body_plain TEXT,
			body_html TEXT,
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			summary TEXT,
			category VARCHAR(64),
			failure_reason TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS skipped_messages (
			id VARCHAR(36) PRIMARY KEY,
			thread_id VARCHAR(255) NOT NULL REFERENCES threads(thread_id) ON DELETE CASCADE,
			message_id VARCHAR(255) NOT NULL,
			reason TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(320) UNIQUE NOT NULL,
			name TEXT NOT NULL,
			company TEXT NOT NULL DEFAULT 'N/A',
			address TEXT NOT NULL DEFAULT 'N/A',
			phone TEXT NOT NULL DEFAULT 'N/A',
			job_title TEXT NOT NULL DEFAULT 'N/A',
			importance VARCHAR(32) NOT NULL DEFAULT 'LESS IMPORTANT',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_threads_status ON threads (status)`,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}
