package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"cinepasse-backoffice/internal/config"
)

// ChangeChannel is the LISTEN/NOTIFY channel carrying the name of every
// table written to.
const ChangeChannel = "record_changes"

// NewPostgres creates a new PostgreSQL connection and runs migrations.
func NewPostgres(cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)

	slog.Info("connected to PostgreSQL", "db", cfg.DBName)

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name VARCHAR(200) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL DEFAULT '',
			cpf VARCHAR(20) NOT NULL DEFAULT '',
			age INTEGER,
			plan VARCHAR(20) NOT NULL DEFAULT 'none',
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS movies (
			id TEXT PRIMARY KEY,
			title VARCHAR(500) NOT NULL,
			synopsis TEXT NOT NULL DEFAULT '',
			poster_url TEXT NOT NULL DEFAULT '',
			backdrop_url TEXT NOT NULL DEFAULT '',
			genre VARCHAR(100) NOT NULL DEFAULT '',
			duration VARCHAR(50) NOT NULL DEFAULT '',
			content_rating VARCHAR(10) NOT NULL DEFAULT 'Livre',
			average_rating DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id TEXT PRIMARY KEY,
			purchaser_id TEXT NOT NULL DEFAULT '',
			movie_title VARCHAR(500) NOT NULL DEFAULT '',
			session_date TIMESTAMPTZ,
			session_time VARCHAR(20) NOT NULL DEFAULT '',
			purchase_code VARCHAR(100) NOT NULL DEFAULT '',
			ticket_type VARCHAR(100) NOT NULL DEFAULT '',
			reservation_type VARCHAR(100) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL DEFAULT 'Pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			email VARCHAR(255) PRIMARY KEY,
			uid TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			disabled BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS blobs (
			name TEXT PRIMARY KEY,
			content_type VARCHAR(255) NOT NULL DEFAULT 'application/octet-stream',
			data BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// Change notifications for live subscriptions
		`CREATE OR REPLACE FUNCTION notify_record_change() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('` + ChangeChannel + `', TG_TABLE_NAME);
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS users_changed ON users`,
		`CREATE TRIGGER users_changed AFTER INSERT OR UPDATE OR DELETE ON users
			FOR EACH STATEMENT EXECUTE FUNCTION notify_record_change()`,
		`DROP TRIGGER IF EXISTS movies_changed ON movies`,
		`CREATE TRIGGER movies_changed AFTER INSERT OR UPDATE OR DELETE ON movies
			FOR EACH STATEMENT EXECUTE FUNCTION notify_record_change()`,
		`DROP TRIGGER IF EXISTS tickets_changed ON tickets`,
		`CREATE TRIGGER tickets_changed AFTER INSERT OR UPDATE OR DELETE ON tickets
			FOR EACH STATEMENT EXECUTE FUNCTION notify_record_change()`,
		// Indexes for common query patterns
		`CREATE INDEX IF NOT EXISTS idx_movies_title ON movies(title)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_created_at ON tickets(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_purchaser_created ON tickets(purchaser_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_credentials_uid ON credentials(uid)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	slog.Info("database migrations completed")
	return nil
}
