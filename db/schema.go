package db

import (
	"github.com/jmoiron/sqlx"
)

func InitializeDatabaseSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ticket_scans (
			scan_id UUID PRIMARY KEY,
			public_token VARCHAR(64) NOT NULL,
			found BOOLEAN NOT NULL,
			scanned_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS ticket_scans_public_token_idx ON ticket_scans (public_token);

		CREATE TABLE IF NOT EXISTS events (
			event_id UUID PRIMARY KEY,
			published_at TIMESTAMP WITH TIME ZONE NOT NULL,
			event_name VARCHAR(255) NOT NULL,
			event_payload JSONB NOT NULL
		);
	`)
	return err
}
