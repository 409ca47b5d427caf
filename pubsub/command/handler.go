package command

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"ticketledger/reconcile"
)

type LedgerSyncer interface {
	Pull(ctx context.Context) (reconcile.Result, error)
	Push(ctx context.Context) (reconcile.Result, error)
}

type Handler struct {
	syncer LedgerSyncer
}

func NewHandler(syncer LedgerSyncer) Handler {
	if syncer == nil {
		panic("missing syncer")
	}

	return Handler{
		syncer: syncer,
	}
}

func (h Handler) Handlers() []cqrs.CommandHandler {
	return []cqrs.CommandHandler{
		h.SyncLedgerHandler(),
	}
}
