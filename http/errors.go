package http

import (
	"errors"
	"net/http"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"

	"ticketledger/entity"
)

type validationErrorResponse struct {
	Errors []string `json:"errors"`
}

// respondError maps the ledger error taxonomy to HTTP statuses.
func respondError(c echo.Context, err error) error {
	var validationErr *entity.ValidationError
	if errors.As(err, &validationErr) {
		return c.JSON(http.StatusBadRequest, validationErrorResponse{Errors: validationErr.Problems})
	}

	var schemaErr *entity.SchemaError
	var transportErr *entity.TransportError
	var ioErr *entity.IOError

	switch {
	case errors.As(err, &schemaErr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, schemaErr.Error())
	case errors.Is(err, entity.ErrSyncInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, entity.ErrDuplicateTicket), errors.Is(err, entity.ErrTokenMismatch):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &transportErr):
		return echo.NewHTTPError(http.StatusBadGateway, "remote ledger unavailable").SetInternal(err)
	case errors.As(err, &ioErr):
		log.FromContext(c.Request().Context()).WithError(err).Error("ledger I/O failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "ledger storage failure").SetInternal(err)
	}

	return err
}
