package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

type fakeReserver struct {
	got    service.ReserveInput
	result *service.ReserveResult
	err    error
}

func (f *fakeReserver) Reserve(_ context.Context, in service.ReserveInput) (*service.ReserveResult, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func reserveRequest(t *testing.T, body string, userID interface{}) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/departures/5/reservations", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("5")
	if userID != nil {
		c.Set("user_id", userID)
	}
	return c, rec
}

func TestReserveReturnsCreatedBooking(t *testing.T) {
	expires := time.Now().UTC().Add(10 * time.Minute)
	fake := &fakeReserver{result: &service.ReserveResult{Booking: &model.Booking{
		ID:               7,
		DepartureID:      5,
		TotalAmountCents: 2400,
		Method:           model.MethodGateway,
		Status:           model.PaymentPending,
		HoldExpiresAt:    &expires,
	}}}
	h := NewReservationHandler(fake)

	c, rec := reserveRequest(t, `{
		"passengers": [
			{"seat_number": "A1", "full_name": "Ada Lovelace"},
			{"seat_number": "A2", "full_name": "Alan Turing"}
		],
		"payer_email": "payer@example.com",
		"payment_method": "GATEWAY"
	}`, uint64(42))

	require.NoError(t, h.Reserve(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.EqualValues(t, 7, out["booking_id"])
	assert.EqualValues(t, 2400, out["total_amount_cents"])
	assert.Equal(t, "PENDING", out["payment_status"])
	assert.NotEmpty(t, out["expires_at"])

	// Payer identity must come from the token, not the body.
	assert.Equal(t, uint64(42), fake.got.PayerUserID)
	assert.Len(t, fake.got.Passengers, 2)
}

func TestReserveDefaultsToGatewayMethod(t *testing.T) {
	fake := &fakeReserver{result: &service.ReserveResult{Booking: &model.Booking{Status: model.PaymentPending}}}
	h := NewReservationHandler(fake)

	c, rec := reserveRequest(t, `{
		"passengers": [{"seat_number": "A1", "full_name": "Ada Lovelace"}],
		"payer_email": "payer@example.com"
	}`, uint64(42))

	require.NoError(t, h.Reserve(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.MethodGateway, fake.got.Method)
}

func TestReserveSeatConflictListsUnavailableSeats(t *testing.T) {
	fake := &fakeReserver{err: &repository.SeatConflictError{Seats: []string{"A1", "A2"}}}
	h := NewReservationHandler(fake)

	c, rec := reserveRequest(t, `{
		"passengers": [{"seat_number": "A1", "full_name": "Ada Lovelace"}],
		"payer_email": "payer@example.com",
		"payment_method": "GATEWAY"
	}`, uint64(42))

	require.NoError(t, h.Reserve(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var out struct {
		Error       string   `json:"error"`
		Unavailable []string `json:"unavailable"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []string{"A1", "A2"}, out.Unavailable)
}

func TestReserveLimitExceededMapsTo422(t *testing.T) {
	fake := &fakeReserver{err: repository.ErrLimitExceeded}
	h := NewReservationHandler(fake)

	c, rec := reserveRequest(t, `{"passengers": [{"seat_number": "A1", "full_name": "A"}], "payer_email": "a@b.c"}`, uint64(42))

	require.NoError(t, h.Reserve(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestReserveWithoutIdentityIsUnauthorized(t *testing.T) {
	h := NewReservationHandler(&fakeReserver{})
	c, rec := reserveRequest(t, `{}`, nil)

	require.NoError(t, h.Reserve(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReserveInvalidDepartureID(t *testing.T) {
	h := NewReservationHandler(&fakeReserver{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/departures/abc/reservations", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("abc")
	c.Set("user_id", uint64(42))

	require.NoError(t, h.Reserve(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
