package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"ticketledger/entity"
	"ticketledger/ledger"
)

const csvContentType = "text/csv; charset=utf-8"

// adminTicket is the ledger listing without the token columns.
type adminTicket struct {
	HolderName   string    `json:"holder_name"`
	EventType    string    `json:"event_type"`
	EventDate    string    `json:"event_date"`
	Adults       int       `json:"adults"`
	Children     int       `json:"children"`
	CreatedAt    time.Time `json:"created_at"`
	ArtifactPath string    `json:"artifact_path"`
}

type verifyResponse struct {
	Rows       int                `json:"rows"`
	Violations []ledger.Violation `json:"violations"`
}

type replaceResponse struct {
	Rows       int    `json:"rows"`
	BackupPath string `json:"backup_path,omitempty"`
}

type syncAcceptedResponse struct {
	Direction string `json:"direction"`
}

func (s Server) GetAdminTickets(c echo.Context) error {
	records, err := s.ledger.LoadAll(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	eventType := c.QueryParam("event_type")
	records = lo.Filter(records, func(r entity.TicketRecord, _ int) bool {
		return eventType == "" || r.EventType == eventType
	})

	return c.JSON(http.StatusOK, lo.Map(records, func(r entity.TicketRecord, _ int) adminTicket {
		return adminTicket{
			HolderName:   r.HolderName,
			EventType:    r.EventType,
			EventDate:    r.EventDate,
			Adults:       r.Adults,
			Children:     r.Children,
			CreatedAt:    r.CreatedAt,
			ArtifactPath: r.ArtifactPath,
		}
	}))
}

func (s Server) GetSummary(c echo.Context) error {
	totals, err := s.tickets.Summary(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, totals)
}

func (s Server) GetLedger(c echo.Context) error {
	snapshot, err := s.ledger.Snapshot(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	data, err := ledger.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	return c.Blob(http.StatusOK, csvContentType, data)
}

// PutLedger overwrites the whole ledger with the uploaded table. The previous
// file is backed up first.
func (s Server) PutLedger(c echo.Context) error {
	snapshot, err := ledger.ReadSnapshot(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse ledger").SetInternal(err)
	}

	backupPath, err := s.ledger.ReplaceAll(c.Request().Context(), snapshot, s.backup)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, replaceResponse{
		Rows:       len(snapshot.Rows),
		BackupPath: backupPath,
	})
}

func (s Server) GetLedgerVerify(c echo.Context) error {
	snapshot, err := s.ledger.Snapshot(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	violations, err := ledger.Verify(snapshot)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, verifyResponse{
		Rows:       len(snapshot.Rows),
		Violations: lo.Ternary(violations == nil, []ledger.Violation{}, violations),
	})
}

func (s Server) PostLedgerPush(c echo.Context) error {
	return s.sync(c, entity.SyncDirectionPush)
}

func (s Server) PostLedgerPull(c echo.Context) error {
	return s.sync(c, entity.SyncDirectionPull)
}

// sync reconciles in the request, or hands it to the worker with ?async=true.
func (s Server) sync(c echo.Context, direction string) error {
	ctx := c.Request().Context()

	if c.QueryParam("async") == "true" {
		if s.commandBus == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "asynchronous sync is not configured")
		}
		err := s.commandBus.Send(ctx, entity.SyncLedger{
			Header:    entity.NewEventHeader(),
			Direction: direction,
		})
		if err != nil {
			return err
		}
		return c.JSON(http.StatusAccepted, syncAcceptedResponse{Direction: direction})
	}

	run := s.syncer.Pull
	if direction == entity.SyncDirectionPush {
		run = s.syncer.Push
	}

	result, err := run(ctx)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}
