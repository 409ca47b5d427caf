package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"ticketledger/entity"
)

// EventLogPostgresRepository keeps every domain event, so the issue and scan
// history can be rebuilt without the ledger file.
type EventLogPostgresRepository struct {
	db *sqlx.DB
}

func NewEventLogPostgresRepository(db *sqlx.DB) EventLogPostgresRepository {
	if db == nil {
		panic("db is nil")
	}

	return EventLogPostgresRepository{db: db}
}

func (r EventLogPostgresRepository) StoreEvent(ctx context.Context, event entity.StoredEvent) error {
	_, err := r.db.NamedExecContext(
		ctx,
		`
			INSERT INTO
			    events (event_id, published_at, event_name, event_payload)
			VALUES
			    (:event_id, :published_at, :event_name, :event_payload)`,
		event,
	)
	var postgresError *pq.Error
	if errors.As(err, &postgresError) && postgresError.Code.Name() == "unique_violation" {
		// re-delivery
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not store %s event %s: %w", event.Name, event.ID, err)
	}

	return nil
}

func (r EventLogPostgresRepository) Events(ctx context.Context, name string) ([]entity.StoredEvent, error) {
	var events []entity.StoredEvent
	err := r.db.SelectContext(ctx, &events, `
		SELECT event_id, published_at, event_name, event_payload
		FROM events
		WHERE $1 = '' OR event_name = $1
		ORDER BY published_at ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("could not get events: %w", err)
	}

	return events, nil
}
