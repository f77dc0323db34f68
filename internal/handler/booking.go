package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

// Canceller is the slice of the reconciler used for explicit
// cancellation; tests substitute a fake.
type Canceller interface {
	Cancel(ctx context.Context, bookingID, actorID uint64, actorRole string) (*model.Booking, error)
}

// BookingHandler serves booking reads and cancellation. Reads go to
// the ledger directly; cancellation goes through the reconciler so the
// seat transition and the ledger write stay paired.
type BookingHandler struct {
	Bookings *repository.BookingRepo
	Payments Canceller
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(bookings *repository.BookingRepo, payments Canceller) *BookingHandler {
	if bookings == nil || payments == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings, Payments: payments}
}

// GetBooking handles GET /v1/bookings/:id. Only the booking's payer
// and operators may read it.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx := c.Request().Context()
	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if b.PayerUserID != userID && getRole(c) != service.RoleOperator {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	passengers, err := h.Bookings.Passengers(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": bookingView(b, passengers)})
}

// CancelBooking handles DELETE /v1/bookings/:id. The reconciler
// enforces that only the payer or an operator may cancel; cancelling
// an already-cancelled booking returns the current state unchanged.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Payments.Cancel(c.Request().Context(), id, userID, getRole(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking_id":     b.ID,
		"payment_status": b.Status,
		"is_cancelled":   b.IsCancelled,
	})
}

// bookingView shapes a booking and its passengers for JSON responses.
func bookingView(b *model.Booking, passengers []model.BookingPassenger) echo.Map {
	seats := make([]echo.Map, 0, len(passengers))
	for _, p := range passengers {
		seats = append(seats, echo.Map{
			"seat_number": p.SeatNumber,
			"full_name":   p.FullName,
		})
	}
	out := echo.Map{
		"id":                 b.ID,
		"departure_id":       b.DepartureID,
		"total_amount_cents": b.TotalAmountCents,
		"payment_method":     b.Method,
		"payment_status":     b.Status,
		"is_cancelled":       b.IsCancelled,
		"passengers":         seats,
		"created_at":         b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.HoldExpiresAt != nil && b.Status == model.PaymentPending {
		out["expires_at"] = b.HoldExpiresAt.UTC().Format(time.RFC3339)
	}
	return out
}
