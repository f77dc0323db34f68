package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// SeatMapRepo is the authoritative per-departure seat state. Every
// mutation runs inside a caller-owned transaction and starts by
// locking the departure row, so seat transitions for one departure are
// totally ordered no matter how many request workers race. All methods
// compare timestamps in UTC.
type SeatMapRepo struct {
	db *sql.DB
}

// NewSeatMapRepo returns a SeatMapRepo bound to the provided database.
func NewSeatMapRepo(db *sql.DB) *SeatMapRepo { return &SeatMapRepo{db: db} }

// lockDepartureTx serializes all seat mutations for one departure by
// taking a row lock on the departures row. Returns ErrDepartureNotFound
// when the departure does not exist.
func (r *SeatMapRepo) lockDepartureTx(ctx context.Context, tx *sql.Tx, departureID uint64) error {
	var id uint64
	err := tx.QueryRowContext(ctx, `SELECT id FROM departures WHERE id = ? FOR UPDATE`, departureID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDepartureNotFound
	}
	return err
}

// placeholders builds a "?, ?, ?" list for an IN clause.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// TryHoldTx transitions every requested seat from FREE to HELD with a
// back-reference to bookingID. It is all-or-nothing: when any
// requested seat is missing or not FREE the whole operation fails with
// a *SeatConflictError naming the contested seats and no seat is
// mutated. The departure row lock taken first makes the check and the
// update a single serialized step, closing the check-then-act race a
// bare availability counter would have.
func (r *SeatMapRepo) TryHoldTx(ctx context.Context, tx *sql.Tx, departureID uint64, seatNumbers []string, bookingID uint64) error {
	if len(seatNumbers) == 0 {
		return ErrInvalidRequest
	}
	if err := r.lockDepartureTx(ctx, tx, departureID); err != nil {
		return err
	}

	query := fmt.Sprintf(
		`SELECT seat_number, status FROM seats WHERE departure_id = ? AND seat_number IN (%s) FOR UPDATE`,
		placeholders(len(seatNumbers)))
	args := make([]interface{}, 0, len(seatNumbers)+1)
	args = append(args, departureID)
	for _, n := range seatNumbers {
		args = append(args, n)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	found := make(map[string]model.SeatState, len(seatNumbers))
	for rows.Next() {
		var number string
		var status model.SeatState
		if scanErr := rows.Scan(&number, &status); scanErr != nil {
			rows.Close()
			return scanErr
		}
		found[number] = status
	}
	if err := rows.Close(); err != nil {
		return err
	}

	// Unknown seats are reported together with occupied ones so the
	// caller sees the full contested set in one response.
	conflicts := make([]string, 0)
	for _, n := range seatNumbers {
		if st, ok := found[n]; !ok || st != model.SeatFree {
			conflicts = append(conflicts, n)
		}
	}
	if len(conflicts) > 0 {
		return &SeatConflictError{Seats: conflicts}
	}

	update := fmt.Sprintf(
		`UPDATE seats SET status = ?, booking_id = ?, updated_at = UTC_TIMESTAMP()
		 WHERE departure_id = ? AND status = ? AND seat_number IN (%s)`,
		placeholders(len(seatNumbers)))
	uargs := make([]interface{}, 0, len(seatNumbers)+4)
	uargs = append(uargs, model.SeatHeld, bookingID, departureID, model.SeatFree)
	for _, n := range seatNumbers {
		uargs = append(uargs, n)
	}
	res, err := tx.ExecContext(ctx, update, uargs...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// Cannot happen while the departure lock is held; if it does, the
	// transaction rolls back and the divergence is surfaced, never patched.
	if n != int64(len(seatNumbers)) {
		return ErrInconsistent
	}
	return nil
}

// CommitTx transitions all seats held by bookingID to BOOKED and
// returns how many rows changed. The caller compares the count against
// the booking's seat count to detect a stale hold.
func (r *SeatMapRepo) CommitTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE seats SET status = ?, updated_at = UTC_TIMESTAMP() WHERE booking_id = ? AND status = ?`,
		model.SeatBooked, bookingID, model.SeatHeld)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReleaseTx transitions all seats held (not booked) by bookingID back
// to FREE and clears the back-reference. Idempotent: releasing an
// already-released hold affects zero rows and is not an error.
func (r *SeatMapRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE seats SET status = ?, booking_id = NULL, updated_at = UTC_TIMESTAMP() WHERE booking_id = ? AND status = ?`,
		model.SeatFree, bookingID, model.SeatHeld)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CancelTx transitions all seats booked by bookingID back to FREE.
// This is the post-payment cancellation path; like ReleaseTx it is
// idempotent.
func (r *SeatMapRepo) CancelTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE seats SET status = ?, booking_id = NULL, updated_at = UTC_TIMESTAMP() WHERE booking_id = ? AND status = ?`,
		model.SeatFree, bookingID, model.SeatBooked)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Snapshot returns a read-only seat_number → state view of a
// departure's seat map for the UI. It never mutates state, takes no
// locks, and must not be used as the basis for a hold decision; only
// TryHoldTx re-validates under the departure lock.
func (r *SeatMapRepo) Snapshot(ctx context.Context, departureID uint64) (map[string]model.SeatState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seat_number, status FROM seats WHERE departure_id = ? ORDER BY seat_number`, departureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	snap := make(map[string]model.SeatState)
	for rows.Next() {
		var number string
		var status model.SeatState
		if err := rows.Scan(&number, &status); err != nil {
			return nil, err
		}
		if !status.Valid() {
			return nil, fmt.Errorf("%w: seat %s has state %q", ErrInconsistent, number, status)
		}
		snap[number] = status
	}
	return snap, rows.Err()
}

// UnknownSeats returns the requested seat numbers that do not exist on
// the departure. Seat maps are immutable after creation, so this check
// is race-free without a lock and lets the reservation engine reject
// bad input before opening a transaction.
func (r *SeatMapRepo) UnknownSeats(ctx context.Context, departureID uint64, seatNumbers []string) ([]string, error) {
	if len(seatNumbers) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT seat_number FROM seats WHERE departure_id = ? AND seat_number IN (%s)`,
		placeholders(len(seatNumbers)))
	args := make([]interface{}, 0, len(seatNumbers)+1)
	args = append(args, departureID)
	for _, n := range seatNumbers {
		args = append(args, n)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	known := make(map[string]struct{}, len(seatNumbers))
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		known[n] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	unknown := make([]string, 0)
	for _, n := range seatNumbers {
		if _, ok := known[n]; !ok {
			unknown = append(unknown, n)
		}
	}
	return unknown, nil
}
