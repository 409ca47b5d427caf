package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"

	"ticketledger/entity"
	"ticketledger/issuer"
)

type postTicketRequest struct {
	EventType string `json:"event_type" form:"event_type"`
	Date      string `json:"date" form:"date"`
	// counts come from both JSON numbers and form strings
	Adults     any    `json:"adults" form:"adults"`
	Children   any    `json:"children" form:"children"`
	HolderName string `json:"holder_name" form:"holder_name"`
}

type ticketResponse struct {
	PublicToken  string    `json:"public_token"`
	UniqueID     string    `json:"unique_id"`
	EventType    string    `json:"event_type"`
	EventDate    string    `json:"event_date"`
	Adults       int       `json:"adults"`
	Children     int       `json:"children"`
	CreatedAt    time.Time `json:"created_at"`
	ArtifactPath string    `json:"artifact_path"`
	HolderName   string    `json:"holder_name,omitempty"`
}

type scanResponse struct {
	Valid         bool                 `json:"valid"`
	Ticket        *entity.PublicTicket `json:"ticket,omitempty"`
	PreviousScans int                  `json:"previous_scans"`
}

func newTicketResponse(r entity.TicketRecord) ticketResponse {
	return ticketResponse{
		PublicToken:  r.PublicToken,
		UniqueID:     r.UniqueID,
		EventType:    r.EventType,
		EventDate:    r.EventDate,
		Adults:       r.Adults,
		Children:     r.Children,
		CreatedAt:    r.CreatedAt,
		ArtifactPath: r.ArtifactPath,
		HolderName:   r.HolderName,
	}
}

func (s Server) PostTickets(c echo.Context) error {
	var request postTicketRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	record, err := s.tickets.IssueTicket(c.Request().Context(), issuer.TicketRequest{
		EventType:  request.EventType,
		Date:       request.Date,
		Adults:     countString(request.Adults),
		Children:   countString(request.Children),
		HolderName: request.HolderName,
	})
	if err != nil && record.UniqueID == "" {
		return respondError(c, err)
	}
	if err != nil {
		// the ticket is already in the ledger, only printing is late
		log.FromContext(c.Request().Context()).WithError(err).Warn("Ticket issued but not announced")
	}

	return c.JSON(http.StatusCreated, newTicketResponse(record))
}

// GetScan is the anonymous gate check. It never reveals the unique id or the holder.
func (s Server) GetScan(c echo.Context) error {
	result, err := s.validator.Validate(c.Request().Context(), c.Param("token"))
	if err != nil {
		return respondError(c, err)
	}

	status := http.StatusOK
	if !result.Found {
		status = http.StatusNotFound
	}

	return c.JSON(status, scanResponse{
		Valid:         result.Found,
		Ticket:        result.Public(),
		PreviousScans: result.PreviousScans,
	})
}

func (s Server) GetTicket(c echo.Context) error {
	result, err := s.validator.Validate(c.Request().Context(), c.Param("token"))
	if err != nil {
		return respondError(c, err)
	}
	if !result.Found {
		return echo.NewHTTPError(http.StatusNotFound, "ticket not found")
	}

	return c.JSON(http.StatusOK, newTicketResponse(result.Record))
}

func countString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}
