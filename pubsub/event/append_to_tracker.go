package event

import (
	"context"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"ticketledger/entity"
)

const (
	IssuedSheet  = "tickets-issued"
	ScannedSheet = "tickets-scanned"
)

// AppendToTrackerHandler keeps the sales sheet current. Tokens never go to the sheet.
func (h Handler) AppendToTrackerHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"AppendToTrackerHandler",
		func(ctx context.Context, event *entity.TicketIssued) error {
			log.FromContext(ctx).Info("Appending ticket to the tracker")

			return h.spreadsheetsService.AppendRow(
				ctx,
				IssuedSheet,
				[]string{
					event.EventType,
					event.EventDate,
					strconv.Itoa(event.Adults),
					strconv.Itoa(event.Children),
					event.IssuedAt.Format(time.RFC3339),
					event.HolderName,
				},
			)
		},
	)
}

func (h Handler) TicketScannedToTrackerHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"TicketScannedToTrackerHandler",
		func(ctx context.Context, event *entity.TicketScanned) error {
			log.FromContext(ctx).Info("Appending scan to the tracker")

			result := "rejected"
			if event.Found {
				result = "accepted"
			}

			return h.spreadsheetsService.AppendRow(
				ctx,
				ScannedSheet,
				[]string{event.ScanID, event.ScannedAt.Format(time.RFC3339), result},
			)
		},
	)
}
