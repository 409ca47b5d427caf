package issuer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ticketledger/entity"
)

// IDChecker reports whether a unique id is already in the ledger.
type IDChecker interface {
	Exists(ctx context.Context, uniqueID string) (bool, error)
}

type Identity struct {
	PublicToken string
	UniqueID    string
}

type Issued struct {
	Identity
	Ticket ValidTicket
}

type Issuer struct {
	eventTypes []string
	newID      func() string
}

func NewIssuer(eventTypes []string) Issuer {
	if len(eventTypes) == 0 {
		panic("missing eventTypes")
	}

	return Issuer{
		eventTypes: eventTypes,
		newID:      uuid.NewString,
	}
}

func (i Issuer) EventTypes() []string {
	return i.eventTypes
}

// Issue validates the request and allocates an identity that is not yet in
// the ledger. It does not append anything; the caller persists the record.
func (i Issuer) Issue(ctx context.Context, ids IDChecker, req TicketRequest) (Issued, error) {
	ticket, err := ValidateRequest(i.eventTypes, req)
	if err != nil {
		return Issued{}, err
	}

	for {
		uniqueID := i.newID()

		exists, err := ids.Exists(ctx, uniqueID)
		if err != nil {
			return Issued{}, fmt.Errorf("could not check unique id: %w", err)
		}
		if exists {
			continue
		}

		return Issued{
			Identity: Identity{
				PublicToken: entity.PublicToken(uniqueID),
				UniqueID:    uniqueID,
			},
			Ticket: ticket,
		}, nil
	}
}
