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

func newStoreMock(t *testing.T) (sqlmock.Sqlmock, *Store, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return mock, NewStore(db), func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
}

func TestCompletePendingCommitsSeatsAndLedger(t *testing.T) {
	mock, store, done := newStoreMock(t)
	defer done()

	expires := time.Now().UTC().Add(5 * time.Minute)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ? FOR UPDATE`)).
		WithArgs(uint64(7)).
		WillReturnRows(bookingRow(7, model.PaymentPending, false, &expires))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM booking_passengers WHERE booking_id = ?`)).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "seat_number", "full_name"}).
			AddRow(1, 7, "A1", "Ada Lovelace").
			AddRow(2, 7, "A2", "Alan Turing"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE seats SET status = ?, updated_at = UTC_TIMESTAMP() WHERE booking_id = ? AND status = ?`)).
		WithArgs(string(model.SeatBooked), uint64(7), string(model.SeatHeld)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET payment_status = ?`)).
		WithArgs(string(model.PaymentCompleted), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, changed, err := store.CompletePending(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.PaymentCompleted, b.Status)
}

func TestCompletePendingIsNoOpWhenAlreadyFinal(t *testing.T) {
	mock, store, done := newStoreMock(t)
	defer done()

	// A duplicate callback after completion must not touch the seats.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ? FOR UPDATE`)).
		WithArgs(uint64(7)).
		WillReturnRows(bookingRow(7, model.PaymentCompleted, false, nil))
	mock.ExpectCommit()

	b, changed, err := store.CompletePending(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, model.PaymentCompleted, b.Status)
}

func TestCompletePendingStaleHold(t *testing.T) {
	mock, store, done := newStoreMock(t)
	defer done()

	// The reaper released the seats before the callback arrived: the
	// commit touches zero rows and the expired TTL explains why.
	expired := time.Now().UTC().Add(-time.Minute)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ? FOR UPDATE`)).
		WithArgs(uint64(7)).
		WillReturnRows(bookingRow(7, model.PaymentPending, false, &expired))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM booking_passengers WHERE booking_id = ?`)).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "seat_number", "full_name"}).
			AddRow(1, 7, "A1", "Ada Lovelace"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE seats SET status = ?, updated_at = UTC_TIMESTAMP() WHERE booking_id = ? AND status = ?`)).
		WithArgs(string(model.SeatBooked), uint64(7), string(model.SeatHeld)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, _, err := store.CompletePending(context.Background(), 7)
	assert.ErrorIs(t, err, ErrStaleHold)
}

func TestCompletePendingSeatCountMismatchIsInconsistent(t *testing.T) {
	mock, store, done := newStoreMock(t)
	defer done()

	// Seats vanished while the hold TTL had not elapsed: divergence,
	// surfaced and rolled back, never repaired.
	expires := time.Now().UTC().Add(5 * time.Minute)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ? FOR UPDATE`)).
		WithArgs(uint64(7)).
		WillReturnRows(bookingRow(7, model.PaymentPending, false, &expires))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM booking_passengers WHERE booking_id = ?`)).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "seat_number", "full_name"}).
			AddRow(1, 7, "A1", "Ada Lovelace").
			AddRow(2, 7, "A2", "Alan Turing"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE seats SET status = ?, updated_at = UTC_TIMESTAMP() WHERE booking_id = ? AND status = ?`)).
		WithArgs(string(model.SeatBooked), uint64(7), string(model.SeatHeld)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	_, _, err := store.CompletePending(context.Background(), 7)
	assert.ErrorIs(t, err, ErrInconsistent)
}

func TestFailPendingReleasesSeats(t *testing.T) {
	mock, store, done := newStoreMock(t)
	defer done()

	expires := time.Now().UTC().Add(5 * time.Minute)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ? FOR UPDATE`)).
		WithArgs(uint64(7)).
		WillReturnRows(bookingRow(7, model.PaymentPending, false, &expires))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE seats SET status = ?, booking_id = NULL`)).
		WithArgs(string(model.SeatFree), uint64(7), string(model.SeatHeld)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET payment_status = ?`)).
		WithArgs(string(model.PaymentFailed), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, changed, err := store.FailPending(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.PaymentFailed, b.Status)
}

func TestCancelBookingFreesBookedSeats(t *testing.T) {
	mock, store, done := newStoreMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ? FOR UPDATE`)).
		WithArgs(uint64(7)).
		WillReturnRows(bookingRow(7, model.PaymentCompleted, false, nil))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE seats SET status = ?, booking_id = NULL`)).
		WithArgs(string(model.SeatFree), uint64(7), string(model.SeatBooked)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET payment_status = ?, is_cancelled = 1`)).
		WithArgs(string(model.PaymentCancelled), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, changed, err := store.CancelBooking(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, b.IsCancelled)
	assert.Equal(t, model.PaymentCancelled, b.Status)
}

func TestCancelBookingAlreadyCancelledIsNoOp(t *testing.T) {
	mock, store, done := newStoreMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ? FOR UPDATE`)).
		WithArgs(uint64(7)).
		WillReturnRows(bookingRow(7, model.PaymentCancelled, true, nil))
	mock.ExpectCommit()

	_, changed, err := store.CancelBooking(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestExpireHeldBeforeFailsEveryExpiredHold(t *testing.T) {
	mock, store, done := newStoreMock(t)
	defer done()

	deadline := time.Now().UTC()
	expired := deadline.Add(-time.Minute)
	rows := bookingRow(7, model.PaymentPending, false, &expired)
	rows.AddRow(uint64(8), uint64(5), uint64(42), "payer@example.com", uint32(1200),
		string(model.MethodGateway), string(model.PaymentPending), false, nil, nil,
		expired, deadline, deadline)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`hold_expires_at <= ? FOR UPDATE`)).
		WillReturnRows(rows)
	for _, id := range []uint64{7, 8} {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE seats SET status = ?, booking_id = NULL`)).
			WithArgs(string(model.SeatFree), id, string(model.SeatHeld)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET payment_status = ?`)).
			WithArgs(string(model.PaymentFailed), id).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	out, err := store.ExpireHeldBefore(context.Background(), deadline)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, model.PaymentFailed, out[0].Status)
	assert.Equal(t, model.PaymentFailed, out[1].Status)
}
