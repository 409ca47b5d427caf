package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"ticketledger/clock"
	"ticketledger/config"
	"ticketledger/db"
	"ticketledger/entity"
	"ticketledger/gateway"
	"ticketledger/http"
	"ticketledger/issuer"
	"ticketledger/ledger"
	"ticketledger/pkg"
	"ticketledger/pubsub"
	"ticketledger/pubsub/command"
	"ticketledger/pubsub/event"
	"ticketledger/reconcile"
	"ticketledger/ticketing"
	"ticketledger/validator"
)

type Deps struct {
	Config config.Config
	// DB enables the scan audit trail and the outbox. Optional.
	DB                  *sqlx.DB
	RedisClient         *redis.Client
	SpreadsheetsService event.SpreadsheetsAPI
	FilesService        event.FilesAPI
	Clock               clock.Clock
	// TraceProvider is flushed on shutdown. Optional.
	TraceProvider *tracesdk.TracerProvider
}

type Service struct {
	db              *sqlx.DB
	watermillLogger watermill.LoggerAdapter
	watermillRouter *message.Router
	httpServer      *http.Server
	commandBus      *cqrs.CommandBus
	syncInterval    time.Duration
	traceProvider   *tracesdk.TracerProvider
}

func New(deps Deps) (Service, error) {
	cfg := deps.Config
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}

	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))

	redisPublisher, err := pubsub.NewRedisPublisher(deps.RedisClient, watermillLogger)
	if err != nil {
		return Service{}, fmt.Errorf("could not create redis publisher: %w", err)
	}

	eventBus, err := pkg.NewEventBus(redisPublisher)
	if err != nil {
		return Service{}, fmt.Errorf("could not create event bus: %w", err)
	}
	commandBus, err := pkg.NewCommandBus(redisPublisher)
	if err != nil {
		return Service{}, fmt.Errorf("could not create command bus: %w", err)
	}

	store := ledger.NewFileStore(cfg.LedgerPath)

	syncer := reconcile.NewSyncer(
		store,
		gateway.NewRedisBlobStore(deps.RedisClient),
		pkg.NewRedisLock(deps.RedisClient, "ticketledger:sync-lock:"+cfg.RemoteLedgerID, cfg.SyncLockTTL),
		reconcile.Config{
			RemoteID: cfg.RemoteLedgerID,
			Timeout:  cfg.RemoteTimeout,
		},
	)

	eventHandler := event.NewHandler(eventBus, deps.SpreadsheetsService, deps.FilesService)

	var scanRecorder validator.ScanRecorder
	var outboxSubscriber message.Subscriber
	if deps.DB != nil {
		scanRecorder = db.NewScansPostgresRepository(deps.DB, watermillLogger)
		eventHandler = eventHandler.WithEventLog(db.NewEventLogPostgresRepository(deps.DB))

		outboxSubscriber, err = pkg.NewPsqlSubscriber(deps.DB.DB, watermillLogger)
		if err != nil {
			return Service{}, fmt.Errorf("could not create outbox subscriber: %w", err)
		}
	}

	watermillRouter, err := pubsub.NewWatermillRouter(
		pubsub.RouterConfig{
			OutboxSubscriber: outboxSubscriber,
			Publisher:        redisPublisher,
			NewSubscriber:    pkg.RedisSubscriberConstructor(deps.RedisClient, watermillLogger),
		},
		eventHandler,
		command.NewHandler(syncer),
		watermillLogger,
	)
	if err != nil {
		return Service{}, fmt.Errorf("could not create watermill router: %w", err)
	}

	httpServer := http.NewServer(cfg.HTTPAddr, http.Deps{
		Tickets:    ticketing.NewService(issuer.NewIssuer(cfg.EventTypes), store, eventBus, deps.Clock),
		Validator:  validator.NewValidator(store, scanRecorder),
		Ledger:     store,
		Backup:     ledger.NewDirBackup(cfg.BackupDir, deps.Clock),
		Syncer:     syncer,
		CommandBus: commandBus,
		Admin: http.Credentials{
			User:         cfg.AdminUser,
			PasswordHash: cfg.AdminPasswordHash,
		},
	})

	return Service{
		db:              deps.DB,
		watermillLogger: watermillLogger,
		watermillRouter: watermillRouter,
		httpServer:      httpServer,
		commandBus:      commandBus,
		syncInterval:    cfg.SyncInterval,
		traceProvider:   deps.TraceProvider,
	}, nil
}

func (s Service) Run(ctx context.Context) error {
	if s.db != nil {
		if err := db.InitializeDatabaseSchema(s.db); err != nil {
			return fmt.Errorf("failed to initialize database schema: %w", err)
		}
		if err := pkg.InitializeOutbox(s.db.DB, s.watermillLogger); err != nil {
			return fmt.Errorf("failed to initialize outbox: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.watermillRouter.Run(ctx)
	})

	g.Go(func() error {
		// not healthy before the router is ready
		<-s.watermillRouter.Running()

		return s.httpServer.Run(ctx)
	})

	if s.syncInterval > 0 {
		g.Go(func() error {
			return s.scheduleSync(ctx)
		})
	}

	if s.traceProvider != nil {
		g.Go(func() error {
			<-ctx.Done()
			return s.traceProvider.Shutdown(context.WithoutCancel(ctx))
		})
	}

	return g.Wait()
}

// scheduleSync asks for a pull on every tick. Overlapping pulls from other
// replicas are dropped by the sync lock.
func (s Service) scheduleSync(ctx context.Context) error {
	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := s.commandBus.Send(ctx, entity.SyncLedger{
				Header:    entity.NewEventHeader(),
				Direction: entity.SyncDirectionPull,
			})
			if err != nil {
				log.FromContext(ctx).WithError(err).Error("Could not schedule ledger pull")
			}
		}
	}
}
