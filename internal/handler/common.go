package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/payment"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

// getUserID extracts the user_id stored by the JWT middleware and
// converts it to uint64. Claims decoded from JSON arrive as float64 or
// string depending on how the token was issued, so all variants are
// accepted.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// getRole extracts the role claim stored by the JWT middleware.
func getRole(c echo.Context) string {
	if v, ok := c.Get("role").(string); ok {
		return v
	}
	return service.RoleCustomer
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id != 0
}

// respondError maps the error taxonomy onto HTTP responses. Seat
// conflicts carry the contested seat list so the client can re-offer
// the selection; inconsistencies are logged loudly and surfaced as 500
// without any attempt to repair them.
func respondError(c echo.Context, err error) error {
	var conflict *repository.SeatConflictError
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       "some seats are unavailable",
			"unavailable": conflict.Seats,
		})
	case errors.Is(err, repository.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrLimitExceeded):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrStaleHold):
		return c.JSON(http.StatusConflict, echo.Map{"error": "hold expired"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrDepartureNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "departure not found"})
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, payment.ErrProviderUnavailable):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unavailable"})
	case errors.Is(err, repository.ErrInconsistent):
		log.Printf("handler: INCONSISTENT state reported: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal inconsistency; operators have been notified"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
