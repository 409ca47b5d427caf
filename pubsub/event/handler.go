package event

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
)

type EventBus interface {
	Publish(ctx context.Context, event any) error
}

type SpreadsheetsAPI interface {
	AppendRow(ctx context.Context, sheetName string, row []string) error
}

type FilesAPI interface {
	UploadFile(ctx context.Context, fileID string, fileContent string) error
}

type Handler struct {
	eventBus            EventBus
	spreadsheetsService SpreadsheetsAPI
	filesService        FilesAPI
	eventLog            EventLog
}

func NewHandler(
	eventBus EventBus,
	spreadsheetsService SpreadsheetsAPI,
	filesService FilesAPI,
) Handler {
	if eventBus == nil {
		panic("missing eventBus")
	}
	if spreadsheetsService == nil {
		panic("missing spreadsheetsService")
	}
	if filesService == nil {
		panic("missing filesService")
	}

	return Handler{
		eventBus:            eventBus,
		spreadsheetsService: spreadsheetsService,
		filesService:        filesService,
	}
}

// WithEventLog makes the handler keep a copy of every event.
func (h Handler) WithEventLog(eventLog EventLog) Handler {
	h.eventLog = eventLog
	return h
}

func (h Handler) Handlers() []cqrs.EventHandler {
	handlers := []cqrs.EventHandler{
		h.PrintTicketHandler(),
		h.AppendToTrackerHandler(),
		h.TicketScannedToTrackerHandler(),
	}
	if h.eventLog != nil {
		handlers = append(handlers, h.eventLogHandlers()...)
	}
	return handlers
}
