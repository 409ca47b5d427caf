package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"ticketledger/entity"
)

type EventLog interface {
	StoreEvent(ctx context.Context, event entity.StoredEvent) error
}

func storeEvent(ctx context.Context, eventLog EventLog, name string, header entity.EventHeader, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not marshal %s: %w", name, err)
	}

	return eventLog.StoreEvent(ctx, entity.StoredEvent{
		ID:          header.ID,
		PublishedAt: header.PublishedAt,
		Name:        name,
		Payload:     payload,
	})
}

func (h Handler) eventLogHandlers() []cqrs.EventHandler {
	return []cqrs.EventHandler{
		cqrs.NewEventHandler(
			"event_log.OnTicketIssued",
			func(ctx context.Context, event *entity.TicketIssued) error {
				return storeEvent(ctx, h.eventLog, "TicketIssued", event.Header, event)
			},
		),
		cqrs.NewEventHandler(
			"event_log.OnTicketPrinted",
			func(ctx context.Context, event *entity.TicketPrinted) error {
				return storeEvent(ctx, h.eventLog, "TicketPrinted", event.Header, event)
			},
		),
		cqrs.NewEventHandler(
			"event_log.OnTicketScanned",
			func(ctx context.Context, event *entity.TicketScanned) error {
				return storeEvent(ctx, h.eventLog, "TicketScanned", event.Header, event)
			},
		),
	}
}
