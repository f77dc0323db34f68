package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/payment"
)

// PaymentAPI is the slice of the reconciler the payment endpoints
// need; tests substitute a fake.
type PaymentAPI interface {
	Initiate(ctx context.Context, bookingID, actorID uint64, actorRole string) (*payment.InitiateResponse, error)
	Finalize(ctx context.Context, bookingID uint64, outcome payment.Outcome) (*model.Booking, error)
	VerifyPending(ctx context.Context, bookingID, actorID uint64, actorRole string) (*model.Booking, error)
}

// CallbackVerifier checks the provider's callback signature before any
// payload field is trusted. Implemented by payment.Client.
type CallbackVerifier interface {
	VerifySignature(payload []byte, signature string) bool
}

// signatureHeader carries the provider's HMAC over the raw callback body.
const signatureHeader = "X-Payment-Signature"

// maxCallbackBytes bounds the callback body read into memory.
const maxCallbackBytes = int64(64 << 10)

// PaymentHandler serves payment initiation, the provider callback and
// the poll fallback.
type PaymentHandler struct {
	Payments PaymentAPI
	Verifier CallbackVerifier
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(payments PaymentAPI, verifier CallbackVerifier) *PaymentHandler {
	if payments == nil || verifier == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{Payments: payments, Verifier: verifier}
}

// Pay handles POST /v1/bookings/:id/pay. It initiates the provider
// payment for a pending gateway booking and returns the redirect URL
// the customer continues on.
func (h *PaymentHandler) Pay(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	resp, err := h.Payments.Initiate(c.Request().Context(), id, userID, getRole(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"provider_ref": resp.ProviderRef,
		"redirect_url": resp.RedirectURL,
	})
}

// Callback handles POST /v1/payments/callback: the provider's
// asynchronous outcome push. The HMAC signature over the raw body is
// verified before the payload is even parsed; an unsigned or forged
// callback never reaches the reconciler. The endpoint is idempotent
// because Finalize is.
func (h *PaymentHandler) Callback(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCallbackBytes))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	sig := c.Request().Header.Get(signatureHeader)
	if sig == "" || !h.Verifier.VerifySignature(body, sig) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
	}

	var payload payment.CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	bookingID, err := strconv.ParseUint(payload.Reference, 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reference"})
	}

	b, err := h.Payments.Finalize(c.Request().Context(), bookingID, payload.Outcome)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking_id":     b.ID,
		"payment_status": b.Status,
	})
}

// Verify handles POST /v1/bookings/:id/verify: the synchronous poll
// used when no callback arrived. It returns the booking's state after
// asking the provider, finalized if the provider has a verdict.
func (h *PaymentHandler) Verify(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Payments.VerifyPending(c.Request().Context(), id, userID, getRole(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking_id":     b.ID,
		"payment_status": b.Status,
	})
}
