package http

import (
	"context"
	"errors"
	"net/http"

	echoHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"ticketledger/entity"
	"ticketledger/issuer"
	"ticketledger/ledger"
	"ticketledger/reconcile"
	"ticketledger/ticketing"
	"ticketledger/tracing"
	"ticketledger/validator"
)

type TicketsService interface {
	IssueTicket(ctx context.Context, req issuer.TicketRequest) (entity.TicketRecord, error)
	Summary(ctx context.Context) ([]ticketing.EventTotals, error)
	EventTypes() []string
}

type TicketValidator interface {
	Validate(ctx context.Context, scannedToken string) (validator.ScanResult, error)
}

type Ledger interface {
	LoadAll(ctx context.Context) ([]entity.TicketRecord, error)
	Snapshot(ctx context.Context) (entity.Snapshot, error)
	ReplaceAll(ctx context.Context, snapshot entity.Snapshot, backup ledger.Backuper) (string, error)
}

type LedgerSyncer interface {
	Pull(ctx context.Context) (reconcile.Result, error)
	Push(ctx context.Context) (reconcile.Result, error)
}

type CommandBus interface {
	Send(ctx context.Context, command any) error
}

type Server struct {
	addr       string
	e          *echo.Echo
	tickets    TicketsService
	validator  TicketValidator
	ledger     Ledger
	backup     ledger.Backuper
	syncer     LedgerSyncer
	commandBus CommandBus
}

type Deps struct {
	Tickets    TicketsService
	Validator  TicketValidator
	Ledger     Ledger
	Backup     ledger.Backuper
	Syncer     LedgerSyncer
	CommandBus CommandBus
	Admin      Credentials
}

func NewServer(addr string, deps Deps) *Server {
	e := echoHTTP.NewEcho()
	e.Use(otelecho.Middleware(tracing.ServiceName))

	server := &Server{
		addr:       addr,
		e:          e,
		tickets:    deps.Tickets,
		validator:  deps.Validator,
		ledger:     deps.Ledger,
		backup:     deps.Backup,
		syncer:     deps.Syncer,
		commandBus: deps.CommandBus,
	}

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/scan/:token", server.GetScan)

	auth := BasicAuth(deps.Admin)
	e.POST("/tickets", server.PostTickets, auth)
	e.GET("/tickets/:token", server.GetTicket, auth)

	admin := e.Group("/admin", auth)
	admin.GET("/tickets", server.GetAdminTickets)
	admin.GET("/tickets/summary", server.GetSummary)
	admin.GET("/ledger", server.GetLedger)
	admin.PUT("/ledger", server.PutLedger)
	admin.GET("/ledger/verify", server.GetLedgerVerify)
	admin.POST("/ledger/push", server.PostLedgerPush)
	admin.POST("/ledger/pull", server.PostLedgerPull)

	return server
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		err := s.e.Shutdown(context.WithoutCancel(ctx))
		if err != nil {
			log.FromContext(ctx).WithError(err).Error("failed to shutdown HTTP server")
		}
	}()

	log.FromContext(ctx).WithField("addr", s.addr).Info("[HTTP] server listening")
	if err := s.e.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
