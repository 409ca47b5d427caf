package ticketing

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"ticketledger/clock"
	"ticketledger/entity"
	"ticketledger/issuer"
	"ticketledger/ledger"
	"ticketledger/metrics"
)

type Ledger interface {
	Update(ctx context.Context, fn func(tx *ledger.Tx) error) error
	LoadAll(ctx context.Context) ([]entity.TicketRecord, error)
}

type EventBus interface {
	Publish(ctx context.Context, event any) error
}

type Service struct {
	issuer   issuer.Issuer
	ledger   Ledger
	eventBus EventBus
	clock    clock.Clock
}

func NewService(iss issuer.Issuer, l Ledger, eventBus EventBus, clk clock.Clock) Service {
	if l == nil {
		panic("missing ledger")
	}
	if eventBus == nil {
		panic("missing eventBus")
	}
	if clk == nil {
		panic("missing clock")
	}

	return Service{
		issuer:   iss,
		ledger:   l,
		eventBus: eventBus,
		clock:    clk,
	}
}

func (s Service) EventTypes() []string {
	return s.issuer.EventTypes()
}

// IssueTicket allocates an identity and appends the record while holding the
// ledger lock, then announces the ticket. Rendering reacts to TicketIssued, so
// a rendering failure never loses an issued ticket.
func (s Service) IssueTicket(ctx context.Context, req issuer.TicketRequest) (entity.TicketRecord, error) {
	var record entity.TicketRecord

	err := s.ledger.Update(ctx, func(tx *ledger.Tx) error {
		issued, err := s.issuer.Issue(ctx, tx, req)
		if err != nil {
			return err
		}

		createdAt := s.clock.Now()
		record = entity.TicketRecord{
			PublicToken:  issued.PublicToken,
			UniqueID:     issued.UniqueID,
			EventType:    issued.Ticket.EventType,
			EventDate:    issued.Ticket.Date,
			Adults:       issued.Ticket.Adults,
			Children:     issued.Ticket.Children,
			CreatedAt:    createdAt,
			ArtifactPath: ArtifactPath(issued.Ticket.EventType, issued.Ticket.Date, createdAt.Format("2006-01-02T15:04:05.000000")),
			HolderName:   issued.Ticket.HolderName,
		}

		return tx.Append(ctx, record)
	})
	if err != nil {
		return entity.TicketRecord{}, err
	}

	metrics.TicketsIssued.WithLabelValues(record.EventType).Inc()
	log.FromContext(ctx).
		WithField("event_type", record.EventType).
		WithField("artifact_path", record.ArtifactPath).
		Info("Ticket issued")

	err = s.eventBus.Publish(ctx, entity.TicketIssued{
		Header:       entity.NewEventHeader(),
		PublicToken:  record.PublicToken,
		EventType:    record.EventType,
		EventDate:    record.EventDate,
		Adults:       record.Adults,
		Children:     record.Children,
		HolderName:   record.HolderName,
		ArtifactPath: record.ArtifactPath,
		IssuedAt:     record.CreatedAt,
	})
	if err != nil {
		return record, fmt.Errorf("ticket stored but TicketIssued was not published: %w", err)
	}

	return record, nil
}

// ArtifactPath names the rendered ticket: tickets/<event>/ticket_<event>_<date>_<stamp>.html
func ArtifactPath(eventType, date, stamp string) string {
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return path.Join("tickets", eventType, fmt.Sprintf("ticket_%s_%s_%s.html", eventType, date, stamp))
}
