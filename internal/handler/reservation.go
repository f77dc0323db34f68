package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

// Reserver is the slice of the reservation engine the handler needs;
// tests substitute a fake.
type Reserver interface {
	Reserve(ctx context.Context, in service.ReserveInput) (*service.ReserveResult, error)
}

// ReservationHandler turns the create-reservation HTTP request into a
// Reserve call. JWT authentication has already run; the payer identity
// comes from the token, never from the body, and any amount a client
// sends is simply not part of the accepted input.
type ReservationHandler struct {
	Reservations Reserver
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(reservations Reserver) *ReservationHandler {
	if reservations == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Reservations: reservations}
}

// Reserve handles POST /v1/departures/:id/reservations. The body
// carries the passenger list (one entry per requested seat), the payer
// contact and the payment method. On success it returns 201 with the
// booking id, the server-computed amount and the hold expiry. A seat
// conflict returns 409 with the exact list of unavailable seats.
func (h *ReservationHandler) Reserve(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	departureID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid departure id"})
	}
	var body struct {
		Passengers    []service.PassengerInput `json:"passengers"`
		PayerEmail    string                   `json:"payer_email"`
		PaymentMethod string                   `json:"payment_method"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	method := model.PaymentMethod(body.PaymentMethod)
	if body.PaymentMethod == "" {
		method = model.MethodGateway
	}

	res, err := h.Reservations.Reserve(c.Request().Context(), service.ReserveInput{
		DepartureID: departureID,
		Passengers:  body.Passengers,
		PayerUserID: userID,
		PayerEmail:  body.PayerEmail,
		Method:      method,
	})
	if err != nil {
		return respondError(c, err)
	}

	b := res.Booking
	out := echo.Map{
		"booking_id":         b.ID,
		"total_amount_cents": b.TotalAmountCents,
		"payment_status":     b.Status,
		"payment_method":     b.Method,
	}
	if b.Status == model.PaymentPending && b.HoldExpiresAt != nil {
		out["expires_at"] = b.HoldExpiresAt.UTC().Format(time.RFC3339)
	}
	return c.JSON(http.StatusCreated, out)
}
