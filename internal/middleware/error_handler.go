package middleware

import (
	"errors"
	"net/http"

	"github.com/Eursukkul/ticketgate/internal/dto"
	"github.com/Eursukkul/ticketgate/internal/service"
	"github.com/labstack/echo/v4"
)

// statusOf is the single place domain sentinels map onto HTTP statuses.
// Handlers return service errors as-is; only request validation produces
// echo.HTTPError directly.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrEventNotFound),
		errors.Is(err, service.ErrCategoryNotFound),
		errors.Is(err, service.ErrTicketNotFound),
		errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrScannerNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrCapacityExceeded),
		errors.Is(err, service.ErrTicketNotActive),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrPaymentNotApproved):
		return http.StatusConflict
	case errors.Is(err, service.ErrEventNotOnSale),
		errors.Is(err, service.ErrCategoryInactive):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidScannerCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrScannerInactive):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := statusOf(err)
	msg := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}

	_ = c.JSON(code, dto.ErrorResponse{Message: msg})
}
