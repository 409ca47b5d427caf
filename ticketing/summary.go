package ticketing

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"ticketledger/entity"
)

type EventTotals struct {
	EventType string `json:"event_type"`
	Tickets   int    `json:"tickets"`
	Adults    int    `json:"adults"`
	Children  int    `json:"children"`
}

// Summary totals sold admissions per event type.
func (s Service) Summary(ctx context.Context) ([]EventTotals, error) {
	records, err := s.ledger.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	return Summarize(records), nil
}

func Summarize(records []entity.TicketRecord) []EventTotals {
	grouped := lo.GroupBy(records, func(r entity.TicketRecord) string {
		return r.EventType
	})

	totals := make([]EventTotals, 0, len(grouped))
	for eventType, group := range grouped {
		totals = append(totals, EventTotals{
			EventType: eventType,
			Tickets:   len(group),
			Adults:    lo.SumBy(group, func(r entity.TicketRecord) int { return r.Adults }),
			Children:  lo.SumBy(group, func(r entity.TicketRecord) int { return r.Children }),
		})
	}

	sort.Slice(totals, func(i, j int) bool {
		return totals[i].EventType < totals[j].EventType
	})

	return totals
}
