package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"ticketledger/entity"
)

func (h Handler) SyncLedgerHandler() cqrs.CommandHandler {
	return cqrs.NewCommandHandler(
		"SyncLedgerHandler",
		func(ctx context.Context, command *entity.SyncLedger) error {
			log.FromContext(ctx).Infof("SyncLedgerHandler: %s", command.Direction)

			var err error
			switch command.Direction {
			case entity.SyncDirectionPull:
				_, err = h.syncer.Pull(ctx)
			case entity.SyncDirectionPush:
				_, err = h.syncer.Push(ctx)
			default:
				log.FromContext(ctx).Warnf("unknown sync direction %q, dropping command", command.Direction)
				return nil
			}

			if errors.Is(err, entity.ErrSyncInProgress) {
				// whoever holds the lock produces the same merged ledger
				log.FromContext(ctx).Info("Reconciliation already running, skipping")
				return nil
			}
			var schemaErr *entity.SchemaError
			if errors.As(err, &schemaErr) {
				// retrying cannot fix a broken ledger header
				log.FromContext(ctx).WithError(err).Error("Ledger cannot be reconciled")
				return nil
			}
			if err != nil {
				return fmt.Errorf("could not %s ledger: %w", command.Direction, err)
			}

			return nil
		},
	)
}
