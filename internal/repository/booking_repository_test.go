package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

var bookingCols = []string{
	"id", "departure_id", "payer_user_id", "payer_email", "total_amount_cents",
	"payment_method", "payment_status", "is_cancelled", "provider_ref", "idempotency_key",
	"hold_expires_at", "created_at", "updated_at",
}

// bookingRow builds a full scan row for the shared booking column list.
func bookingRow(id uint64, status model.PaymentStatus, cancelled bool, expires *time.Time) *sqlmock.Rows {
	now := time.Now().UTC()
	var exp interface{}
	if expires != nil {
		exp = expires.UTC()
	}
	return sqlmock.NewRows(bookingCols).AddRow(
		id, uint64(5), uint64(42), "payer@example.com", uint32(2400),
		string(model.MethodGateway), string(status), cancelled, nil, nil,
		exp, now, now)
}

func newBookingMock(t *testing.T) (sqlmock.Sqlmock, *BookingRepo, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return mock, NewBookingRepo(db), func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
}

func TestCreateTxInsertsBookingAndPassengers(t *testing.T) {
	mock, repo, done := newBookingMock(t)
	defer done()

	expires := time.Now().UTC().Add(10 * time.Minute)
	b := &model.Booking{
		DepartureID:      5,
		PayerUserID:      42,
		PayerEmail:       "payer@example.com",
		TotalAmountCents: 2400,
		Method:           model.MethodGateway,
		Status:           model.PaymentPending,
		HoldExpiresAt:    &expires,
	}
	passengers := []model.BookingPassenger{
		{SeatNumber: "A1", FullName: "Ada Lovelace"},
		{SeatNumber: "A2", FullName: "Alan Turing"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO bookings`)).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO booking_passengers (booking_id, seat_number, full_name) VALUES (?, ?, ?),(?, ?, ?)`)).
		WithArgs(uint64(7), "A1", "Ada Lovelace", uint64(7), "A2", "Alan Turing").
		WillReturnResult(sqlmock.NewResult(1, 2))

	tx, err := repo.db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.CreateTx(context.Background(), tx, b, passengers))
	assert.Equal(t, uint64(7), b.ID)
}

func TestCreateTxRejectsEmptyPassengerList(t *testing.T) {
	mock, repo, done := newBookingMock(t)
	defer done()

	mock.ExpectBegin()
	tx, err := repo.db.Begin()
	require.NoError(t, err)
	err = repo.CreateTx(context.Background(), tx, &model.Booking{}, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestGetByIDNotFound(t *testing.T) {
	mock, repo, done := newBookingMock(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ?`)).
		WithArgs(uint64(404)).
		WillReturnRows(sqlmock.NewRows(bookingCols))

	_, err := repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestUpdateStatusTxMissingBooking(t *testing.T) {
	mock, repo, done := newBookingMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET payment_status = ?`)).
		WithArgs(string(model.PaymentFailed), uint64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := repo.db.Begin()
	require.NoError(t, err)
	err = repo.UpdateStatusTx(context.Background(), tx, 404, model.PaymentFailed)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}
