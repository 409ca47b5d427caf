package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"ticketledger/entity"
	"ticketledger/metrics"
)

type TicketFinder interface {
	FindByPublicToken(ctx context.Context, publicToken string) (entity.TicketRecord, bool, error)
}

// ScanRecorder keeps an audit trail of scans and tells how many times the
// token was already accepted.
type ScanRecorder interface {
	RecordScan(ctx context.Context, publicToken string, found bool) (previousScans int, err error)
}

type ScanResult struct {
	Found         bool
	Record        entity.TicketRecord
	PreviousScans int
}

// Public is the view safe for anonymous scanning screens: no unique id, no holder name.
func (r ScanResult) Public() *entity.PublicTicket {
	if !r.Found {
		return nil
	}
	public := r.Record.Public()
	return &public
}

type Validator struct {
	tickets  TicketFinder
	recorder ScanRecorder
}

// NewValidator builds a validator; recorder may be nil when scans should not be audited.
func NewValidator(tickets TicketFinder, recorder ScanRecorder) Validator {
	if tickets == nil {
		panic("missing tickets")
	}

	return Validator{
		tickets:  tickets,
		recorder: recorder,
	}
}

// Validate looks the scanned token up among issued public tokens. An unknown
// token is a normal outcome, reported with Found=false and no error.
func (v Validator) Validate(ctx context.Context, scannedToken string) (ScanResult, error) {
	token := strings.TrimSpace(scannedToken)

	var (
		record entity.TicketRecord
		found  bool
	)
	// a blank scan never matches, even a ledger row with an empty token
	if token != "" {
		var err error
		record, found, err = v.tickets.FindByPublicToken(ctx, token)
		if err != nil {
			return ScanResult{}, fmt.Errorf("could not look up ticket: %w", err)
		}
	}

	result := ScanResult{Found: found, Record: record}

	if v.recorder != nil && token != "" {
		previous, err := v.recorder.RecordScan(ctx, token, found)
		if err != nil {
			return ScanResult{}, fmt.Errorf("could not record scan: %w", err)
		}
		result.PreviousScans = previous
	}

	outcome := "not_found"
	if found {
		outcome = "found"
	}
	metrics.TicketScans.WithLabelValues(outcome).Inc()

	log.FromContext(ctx).
		WithField("found", found).
		WithField("previous_scans", result.PreviousScans).
		Info("Ticket scanned")

	return result, nil
}
