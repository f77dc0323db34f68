package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
)

type fakeCanceller struct {
	booking *model.Booking
	err     error
	calls   int
}

func (f *fakeCanceller) Cancel(context.Context, uint64, uint64, string) (*model.Booking, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.booking, nil
}

func bookingContext(t *testing.T, method, target, id string, userID uint64, role string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	c.Set("user_id", userID)
	if role != "" {
		c.Set("role", role)
	}
	return c, rec
}

func bookingSelectRows(payerID uint64) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "departure_id", "payer_user_id", "payer_email", "total_amount_cents",
		"payment_method", "payment_status", "is_cancelled", "provider_ref", "idempotency_key",
		"hold_expires_at", "created_at", "updated_at",
	}).AddRow(uint64(7), uint64(5), payerID, "payer@example.com", uint32(1200),
		"GATEWAY", "COMPLETED", false, nil, nil, nil, now, now)
}

func TestGetBookingHidesForeignBookings(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ?`)).
		WithArgs(uint64(7)).
		WillReturnRows(bookingSelectRows(42))

	h := NewBookingHandler(repository.NewBookingRepo(db), &fakeCanceller{})
	c, rec := bookingContext(t, http.MethodGet, "/v1/bookings/7", "7", 1000, "CUSTOMER")

	require.NoError(t, h.GetBooking(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBookingOperatorSeesAnyBooking(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ?`)).
		WithArgs(uint64(7)).
		WillReturnRows(bookingSelectRows(42))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM booking_passengers WHERE booking_id = ?`)).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "seat_number", "full_name"}).
			AddRow(1, 7, "A1", "Ada Lovelace"))

	h := NewBookingHandler(repository.NewBookingRepo(db), &fakeCanceller{})
	c, rec := bookingContext(t, http.MethodGet, "/v1/bookings/7", "7", 1000, "OPERATOR")

	require.NoError(t, h.GetBooking(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBookingReturnsFinalState(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	canceller := &fakeCanceller{booking: &model.Booking{
		ID:          7,
		Status:      model.PaymentCancelled,
		IsCancelled: true,
	}}
	h := NewBookingHandler(repository.NewBookingRepo(db), canceller)
	c, rec := bookingContext(t, http.MethodDelete, "/v1/bookings/7", "7", 42, "CUSTOMER")

	require.NoError(t, h.CancelBooking(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, canceller.calls)
	assert.Contains(t, rec.Body.String(), `"is_cancelled":true`)
}

func TestCancelBookingForbidden(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	canceller := &fakeCanceller{err: repository.ErrForbidden}
	h := NewBookingHandler(repository.NewBookingRepo(db), canceller)
	c, rec := bookingContext(t, http.MethodDelete, "/v1/bookings/7", "7", 1000, "CUSTOMER")

	require.NoError(t, h.CancelBooking(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
