package event_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketledger/entity"
	"ticketledger/gateway"
	"ticketledger/pubsub/event"
)

type recordingBus struct {
	events []any
	err    error
}

func (b *recordingBus) Publish(ctx context.Context, event any) error {
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, event)
	return nil
}

func newIssued() *entity.TicketIssued {
	return &entity.TicketIssued{
		Header:       entity.NewEventHeader(),
		PublicToken:  entity.PublicToken("6f1c0d1e-0000-4000-8000-000000000001"),
		EventType:    "Independencia",
		EventDate:    "2024-09-16",
		Adults:       2,
		Children:     1,
		HolderName:   "Ana",
		ArtifactPath: "tickets/Independencia/ticket_Independencia_2024-09-16_stamp.html",
		IssuedAt:     time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestPrintTicketHandler(t *testing.T) {
	ctx := context.Background()
	bus := &recordingBus{}
	files := &gateway.FilesMock{}
	h := event.NewHandler(bus, &gateway.SpreadsheetsMock{}, files)

	issued := newIssued()
	require.NoError(t, h.PrintTicketHandler().Handle(ctx, issued))
	// redelivery must not create a second artifact
	require.NoError(t, h.PrintTicketHandler().Handle(ctx, issued))
	assert.Equal(t, []string{issued.ArtifactPath}, files.FileIDs())

	content, err := files.DownloadFile(ctx, issued.ArtifactPath)
	require.NoError(t, err)
	assert.Contains(t, content, issued.PublicToken)
	assert.Contains(t, content, "Independencia")
	assert.Contains(t, content, "Ana")

	require.Len(t, bus.events, 2)
	printed, ok := bus.events[0].(entity.TicketPrinted)
	require.True(t, ok)
	assert.Equal(t, issued.PublicToken, printed.PublicToken)
	assert.Equal(t, issued.ArtifactPath, printed.ArtifactPath)
}

func TestPrintTicketHandler_publish_error(t *testing.T) {
	bus := &recordingBus{err: errors.New("broker down")}
	h := event.NewHandler(bus, &gateway.SpreadsheetsMock{}, &gateway.FilesMock{})

	err := h.PrintTicketHandler().Handle(context.Background(), newIssued())
	assert.Error(t, err)
}

func TestRenderTicket_without_holder(t *testing.T) {
	issued := newIssued()
	issued.HolderName = ""

	html, err := event.RenderTicket(*issued)
	require.NoError(t, err)
	assert.NotContains(t, html, "<p></p>")
}

func TestAppendToTrackerHandler(t *testing.T) {
	sheets := &gateway.SpreadsheetsMock{}
	h := event.NewHandler(&recordingBus{}, sheets, &gateway.FilesMock{})

	issued := newIssued()
	require.NoError(t, h.AppendToTrackerHandler().Handle(context.Background(), issued))

	rows := sheets.Rows(event.IssuedSheet)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Independencia", "2024-09-16", "2", "1", "2024-09-01T10:00:00Z", "Ana"}, rows[0])
	assert.NotContains(t, rows[0], issued.PublicToken)
}

func TestTicketScannedToTrackerHandler(t *testing.T) {
	sheets := &gateway.SpreadsheetsMock{}
	h := event.NewHandler(&recordingBus{}, sheets, &gateway.FilesMock{})

	scannedAt := time.Date(2024, 9, 16, 18, 30, 0, 0, time.UTC)
	for _, found := range []bool{true, false} {
		err := h.TicketScannedToTrackerHandler().Handle(context.Background(), &entity.TicketScanned{
			Header:      entity.NewEventHeader(),
			ScanID:      "scan-1",
			PublicToken: "deadbeef",
			Found:       found,
			ScannedAt:   scannedAt,
		})
		require.NoError(t, err)
	}

	rows := sheets.Rows(event.ScannedSheet)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"scan-1", "2024-09-16T18:30:00Z", "accepted"}, rows[0])
	assert.Equal(t, "rejected", rows[1][2])
}

func TestNewHandler_panics_on_missing_deps(t *testing.T) {
	assert.Panics(t, func() {
		event.NewHandler(nil, &gateway.SpreadsheetsMock{}, &gateway.FilesMock{})
	})
}
