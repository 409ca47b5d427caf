package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ticketledger/entity"
	"ticketledger/pkg"
)

type ScansPostgresRepository struct {
	db     *sqlx.DB
	logger watermill.LoggerAdapter
}

func NewScansPostgresRepository(db *sqlx.DB, logger watermill.LoggerAdapter) *ScansPostgresRepository {
	if db == nil {
		panic("db is nil")
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	return &ScansPostgresRepository{db: db, logger: logger}
}

// RecordScan stores the scan and publishes TicketScanned through the outbox in
// the same transaction. It returns how many times the token had already been
// accepted before this scan.
func (r *ScansPostgresRepository) RecordScan(ctx context.Context, publicToken string, found bool) (previousScans int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			err = errors.Join(err, rollbackErr)
			return
		}
		err = tx.Commit()
	}()

	err = tx.GetContext(ctx, &previousScans, `
		SELECT COUNT(*)
		FROM ticket_scans
		WHERE public_token = $1 AND found
	`, publicToken)
	if err != nil {
		return 0, fmt.Errorf("could not count previous scans: %w", err)
	}

	scan := entity.Scan{
		ScanID:      uuid.NewString(),
		PublicToken: publicToken,
		Found:       found,
		ScannedAt:   time.Now().UTC(),
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO
		    ticket_scans (scan_id, public_token, found, scanned_at)
		VALUES (:scan_id, :public_token, :found, :scanned_at)
	`, scan)
	if err != nil {
		return 0, fmt.Errorf("could not store scan: %w", err)
	}

	outboxPublisher, err := pkg.NewPsqlPublisher(tx.Tx, r.logger)
	if err != nil {
		return 0, fmt.Errorf("could not create outbox publisher: %w", err)
	}

	eventBus, err := pkg.NewEventBus(outboxPublisher)
	if err != nil {
		return 0, err
	}

	err = eventBus.Publish(ctx, entity.TicketScanned{
		Header:      entity.NewEventHeader(),
		ScanID:      scan.ScanID,
		PublicToken: scan.PublicToken,
		Found:       scan.Found,
		ScannedAt:   scan.ScannedAt,
	})
	if err != nil {
		return 0, fmt.Errorf("could not publish event: %w", err)
	}

	return previousScans, nil
}

func (r *ScansPostgresRepository) FindByPublicToken(ctx context.Context, publicToken string) ([]entity.Scan, error) {
	var scans []entity.Scan
	err := r.db.SelectContext(ctx, &scans, `
		SELECT scan_id, public_token, found, scanned_at
		FROM ticket_scans
		WHERE public_token = $1
		ORDER BY scanned_at
	`, publicToken)
	return scans, err
}
