package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// Store bundles the three repositories and exposes each multi-table
// state transition as one atomic operation. Every method owns its
// transaction, locks the rows it is about to transition, and writes
// the ledger only after the seat map transition in the same
// transaction succeeded. Services never compose transactions
// themselves; they call exactly one Store method per transition.
type Store struct {
	db         *sql.DB
	Departures *DepartureRepo
	Seats      *SeatMapRepo
	Bookings   *BookingRepo
}

// NewStore returns a Store and its repositories bound to db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:         db,
		Departures: NewDepartureRepo(db),
		Seats:      NewSeatMapRepo(db),
		Bookings:   NewBookingRepo(db),
	}
}

// GetDeparture delegates to the departure repository.
func (s *Store) GetDeparture(ctx context.Context, id uint64) (*model.Departure, error) {
	return s.Departures.GetByID(ctx, id)
}

// GetBooking delegates to the booking repository.
func (s *Store) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return s.Bookings.GetByID(ctx, id)
}

// BookingPassengers delegates to the booking repository.
func (s *Store) BookingPassengers(ctx context.Context, bookingID uint64) ([]model.BookingPassenger, error) {
	return s.Bookings.Passengers(ctx, bookingID)
}

// UnknownSeats delegates to the seat map repository.
func (s *Store) UnknownSeats(ctx context.Context, departureID uint64, seatNumbers []string) ([]string, error) {
	return s.Seats.UnknownSeats(ctx, departureID, seatNumbers)
}

// SetProviderInfo delegates to the booking repository.
func (s *Store) SetProviderInfo(ctx context.Context, bookingID uint64, providerRef, idempotencyKey string) error {
	return s.Bookings.SetProviderInfo(ctx, bookingID, providerRef, idempotencyKey)
}

// CreateHeldBooking writes the PENDING booking row, its passengers and
// the seat hold in one transaction: the spec's "hold and ledger row in
// the same logical transaction". On a seat conflict the transaction
// rolls back, so no partial booking or partial hold is ever visible.
// The booking row is inserted first only because the seats carry a
// foreign key to it; atomicity makes the order unobservable.
func (s *Store) CreateHeldBooking(ctx context.Context, b *model.Booking, passengers []model.BookingPassenger, seatNumbers []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.Bookings.CreateTx(ctx, tx, b, passengers); err != nil {
		return err
	}
	if err := s.Seats.TryHoldTx(ctx, tx, b.DepartureID, seatNumbers, b.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// CompletePending drives PENDING → COMPLETED together with the
// HELD → BOOKED seat commit. The booking row lock serializes this
// against duplicate callbacks and the reaper; a booking that is
// already final is returned unchanged with changed=false, never
// re-committed. A short seat count after the hold TTL elapsed is a
// stale hold; before the TTL it is a ledger divergence and surfaces
// as ErrInconsistent.
func (s *Store) CompletePending(ctx context.Context, bookingID uint64) (*model.Booking, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := s.Bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return nil, false, err
	}
	if b.Status != model.PaymentPending || b.IsCancelled {
		if err := tx.Commit(); err != nil {
			return nil, false, err
		}
		committed = true
		return b, false, nil
	}

	passengers, err := s.Bookings.PassengersTx(ctx, tx, bookingID)
	if err != nil {
		return nil, false, err
	}
	n, err := s.Seats.CommitTx(ctx, tx, bookingID)
	if err != nil {
		return nil, false, err
	}
	if n != int64(len(passengers)) {
		if b.HoldExpiresAt != nil && b.HoldExpiresAt.Before(time.Now().UTC()) {
			return nil, false, ErrStaleHold
		}
		return nil, false, ErrInconsistent
	}
	if err := s.Bookings.UpdateStatusTx(ctx, tx, bookingID, model.PaymentCompleted); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true
	b.Status = model.PaymentCompleted
	return b, true, nil
}

// FailPending drives PENDING → FAILED and releases the held seats.
// Already-final bookings are returned unchanged with changed=false, so
// a provider failure callback arriving after the reaper is a no-op.
func (s *Store) FailPending(ctx context.Context, bookingID uint64) (*model.Booking, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := s.Bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return nil, false, err
	}
	if b.Status != model.PaymentPending || b.IsCancelled {
		if err := tx.Commit(); err != nil {
			return nil, false, err
		}
		committed = true
		return b, false, nil
	}

	if _, err := s.Seats.ReleaseTx(ctx, tx, bookingID); err != nil {
		return nil, false, err
	}
	if err := s.Bookings.UpdateStatusTx(ctx, tx, bookingID, model.PaymentFailed); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true
	b.Status = model.PaymentFailed
	return b, true, nil
}

// CancelBooking performs an explicit cancellation. PENDING bookings
// release their hold, COMPLETED bookings free their booked seats;
// either way is_cancelled is set. Cancelling an already-cancelled
// booking is a no-op with changed=false. Authorization is the
// caller's responsibility.
func (s *Store) CancelBooking(ctx context.Context, bookingID uint64) (*model.Booking, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := s.Bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return nil, false, err
	}
	if b.IsCancelled {
		if err := tx.Commit(); err != nil {
			return nil, false, err
		}
		committed = true
		return b, false, nil
	}

	status := b.Status
	switch b.Status {
	case model.PaymentPending:
		if _, err := s.Seats.ReleaseTx(ctx, tx, bookingID); err != nil {
			return nil, false, err
		}
		status = model.PaymentCancelled
	case model.PaymentCompleted:
		if _, err := s.Seats.CancelTx(ctx, tx, bookingID); err != nil {
			return nil, false, err
		}
		status = model.PaymentCancelled
	}
	if err := s.Bookings.MarkCancelledTx(ctx, tx, bookingID, status); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true
	b.Status = status
	b.IsCancelled = true
	return b, true, nil
}

// ExpireHeldBefore fails every PENDING booking whose hold TTL elapsed
// before deadline and releases its seats, all in one transaction. This
// is the reaper's only entry point and it reuses the same release path
// as explicit cancellation, so no other transition can race it.
func (s *Store) ExpireHeldBefore(ctx context.Context, deadline time.Time) ([]model.Booking, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	expired, err := s.Bookings.ExpiredPendingTx(ctx, tx, deadline)
	if err != nil {
		return nil, err
	}
	for i := range expired {
		if _, err := s.Seats.ReleaseTx(ctx, tx, expired[i].ID); err != nil {
			return nil, err
		}
		if err := s.Bookings.UpdateStatusTx(ctx, tx, expired[i].ID, model.PaymentFailed); err != nil {
			return nil, err
		}
		expired[i].Status = model.PaymentFailed
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return expired, nil
}
