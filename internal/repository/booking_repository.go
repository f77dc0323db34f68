package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// bookingColumns is the scan list shared by every booking query so the
// column order cannot drift between them.
const bookingColumns = `id, departure_id, payer_user_id, payer_email, total_amount_cents,
	payment_method, payment_status, is_cancelled, provider_ref, idempotency_key,
	hold_expires_at, created_at, updated_at`

// BookingRepo provides data access to the bookings and
// booking_passengers tables: the booking ledger. Status writes are
// Tx methods because they are only valid in the same transaction as
// the seat map transition they record.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle for transaction orchestration.
func (r *BookingRepo) DB() *sql.DB { return r.db }

func scanBooking(row interface{ Scan(...interface{}) error }) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.DepartureID, &b.PayerUserID, &b.PayerEmail, &b.TotalAmountCents,
		&b.Method, &b.Status, &b.IsCancelled, &b.ProviderRef, &b.IdempotencyKey,
		&b.HoldExpiresAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateTx inserts a booking row and its passenger rows inside the
// provided transaction. The caller pairs this with a seat hold in the
// same transaction so the ledger can never show a booking whose seats
// were not claimed. The booking's ID is populated on return.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking, passengers []model.BookingPassenger) error {
	if len(passengers) == 0 {
		return ErrInvalidRequest
	}
	var expires interface{}
	if b.HoldExpiresAt != nil {
		t := b.HoldExpiresAt.UTC()
		expires = t
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (departure_id, payer_user_id, payer_email, total_amount_cents,
			payment_method, payment_status, is_cancelled, hold_expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.DepartureID, b.PayerUserID, b.PayerEmail, b.TotalAmountCents,
		b.Method, b.Status, b.IsCancelled, expires)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)

	query := `INSERT INTO booking_passengers (booking_id, seat_number, full_name) VALUES `
	args := make([]interface{}, 0, len(passengers)*3)
	for i, p := range passengers {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, b.ID, p.SeatNumber, p.FullName)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// GetByID loads a booking outside any transaction. Returns
// ErrBookingNotFound when no row exists.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// GetForUpdateTx loads a booking with a row lock. Every finalization
// path goes through this lock, which is what makes duplicate provider
// callbacks and the reaper serialize instead of racing each other.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// Passengers returns the passenger rows of a booking in seat order.
func (r *BookingRepo) Passengers(ctx context.Context, bookingID uint64) ([]model.BookingPassenger, error) {
	return r.passengers(ctx, r.db.QueryContext, bookingID)
}

// PassengersTx is Passengers inside a caller-owned transaction; used
// when the seat count matters for a commit decision.
func (r *BookingRepo) PassengersTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.BookingPassenger, error) {
	return r.passengers(ctx, tx.QueryContext, bookingID)
}

type queryFunc func(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)

func (r *BookingRepo) passengers(ctx context.Context, query queryFunc, bookingID uint64) ([]model.BookingPassenger, error) {
	rows, err := query(ctx,
		`SELECT id, booking_id, seat_number, full_name FROM booking_passengers WHERE booking_id = ? ORDER BY seat_number`,
		bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.BookingPassenger, 0)
	for rows.Next() {
		var p model.BookingPassenger
		if err := rows.Scan(&p.ID, &p.BookingID, &p.SeatNumber, &p.FullName); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateStatusTx sets the payment status. Callers invoke it only after
// the matching seat map transition succeeded in the same transaction.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.PaymentStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET payment_status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// MarkCancelledTx sets is_cancelled together with the payment status
// resulting from the cancellation.
func (r *BookingRepo) MarkCancelledTx(ctx context.Context, tx *sql.Tx, id uint64, status model.PaymentStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET payment_status = ?, is_cancelled = 1, updated_at = UTC_TIMESTAMP() WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// SetProviderInfo stores the provider's transaction handle and the
// idempotency key sent with the initiate call. Runs outside the seat
// transaction on purpose: the outbound provider call must never happen
// while a departure lock is held.
func (r *BookingRepo) SetProviderInfo(ctx context.Context, id uint64, providerRef, idempotencyKey string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET provider_ref = ?, idempotency_key = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
		providerRef, idempotencyKey, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// ExpiredPendingTx returns, with row locks, every PENDING booking
// whose hold TTL elapsed before deadline. The reaper releases their
// seats and fails them in the same transaction.
func (r *BookingRepo) ExpiredPendingTx(ctx context.Context, tx *sql.Tx, deadline time.Time) ([]model.Booking, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE payment_status = ? AND hold_expires_at IS NOT NULL AND hold_expires_at <= ? FOR UPDATE`,
		model.PaymentPending, deadline.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
