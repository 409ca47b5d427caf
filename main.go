package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/go-event-driven/common/clients"
	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"ticketledger/config"
	"ticketledger/gateway"
	"ticketledger/pkg"
	"ticketledger/service"
	"ticketledger/tracing"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	log.Init(cfg.Level())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	traceProvider, err := tracing.ConfigureTraceProvider(cfg.JaegerEndpoint, cfg.GatewayAddr)
	if err != nil {
		panic(err)
	}

	apiClients, err := clients.NewClients(cfg.GatewayAddr, func(ctx context.Context, req *http.Request) error {
		req.Header.Set("Correlation-ID", log.CorrelationIDFromContext(ctx))
		return nil
	})
	if err != nil {
		panic(err)
	}

	var dbconn *sqlx.DB
	if cfg.PostgresURL != "" {
		traceDB, err := otelsql.Open("postgres", cfg.PostgresURL,
			otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
			otelsql.WithDBName("ticketledger"))
		if err != nil {
			panic(err)
		}
		dbconn = sqlx.NewDb(traceDB, "postgres")
		defer dbconn.Close()
	}

	redisClient := pkg.NewRedisClient(cfg.RedisAddr)
	defer redisClient.Close()

	svc, err := service.New(service.Deps{
		Config:              cfg,
		DB:                  dbconn,
		RedisClient:         redisClient,
		SpreadsheetsService: gateway.NewSpreadsheetsClient(apiClients),
		FilesService:        gateway.NewFilesClient(apiClients),
		TraceProvider:       traceProvider,
	})
	if err != nil {
		panic(err)
	}

	if err := svc.Run(ctx); err != nil {
		panic(err)
	}
}
