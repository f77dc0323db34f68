// Package service holds the reservation engine and the payment
// reconciler: the two components that drive every seat state
// transition. Handlers stay thin and call into this package; the
// package in turn calls exactly one atomic store operation per
// transition.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
)

// Roles carried in the JWT "role" claim. OPERATOR is the
// administrative actor allowed to manage departures and cancel any
// booking; CUSTOMER may only act on their own bookings.
const (
	RoleCustomer = "CUSTOMER"
	RoleOperator = "OPERATOR"
)

// ReservationStore is the slice of the store the reservation engine
// needs. Defined here so tests can substitute an in-memory fake.
type ReservationStore interface {
	GetDeparture(ctx context.Context, id uint64) (*model.Departure, error)
	UnknownSeats(ctx context.Context, departureID uint64, seatNumbers []string) ([]string, error)
	CreateHeldBooking(ctx context.Context, b *model.Booking, passengers []model.BookingPassenger, seatNumbers []string) error
	CompletePending(ctx context.Context, bookingID uint64) (*model.Booking, bool, error)
}

// PassengerInput names the traveller for one requested seat.
type PassengerInput struct {
	SeatNumber string `json:"seat_number"`
	FullName   string `json:"full_name"`
}

// ReserveInput is a client's seat-selection intent. The requested seat
// set is the seat numbers of the passengers; any client-supplied
// amount is ignored by design.
type ReserveInput struct {
	DepartureID uint64
	Passengers  []PassengerInput
	PayerUserID uint64
	PayerEmail  string
	Method      model.PaymentMethod
}

// ReserveResult is returned to the client after a successful hold.
type ReserveResult struct {
	Booking *model.Booking
}

// ReservationService is the reservation engine: it validates a
// seat-selection request, recomputes the amount server-side and turns
// the request into a held PENDING booking through one atomic store
// call. Business validation lives here; concurrency mechanics live in
// the lock table and the store.
type ReservationService struct {
	store    ReservationStore
	locks    *LockTable
	holdTTL  time.Duration
	maxSeats int
}

// NewReservationService constructs the engine. maxSeats is the
// per-booking seat cap; holdTTL is how long a hold survives without a
// payment outcome.
func NewReservationService(store ReservationStore, locks *LockTable, holdTTL time.Duration, maxSeats int) *ReservationService {
	if store == nil || locks == nil {
		panic("nil dependency passed to NewReservationService")
	}
	return &ReservationService{store: store, locks: locks, holdTTL: holdTTL, maxSeats: maxSeats}
}

// Reserve validates the request, holds the seats and writes the
// PENDING booking. On a seat conflict it returns the store's
// *repository.SeatConflictError naming the contested seats; that is a
// normal outcome the client retries with a different selection, not a
// fault. For the ONBOARD method the seats are committed immediately:
// pay-on-board is an explicit policy, not a silent default.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (*ReserveResult, error) {
	seatNumbers, passengers, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	dep, err := s.store.GetDeparture(ctx, in.DepartureID)
	if err != nil {
		return nil, err
	}
	unknown, err := s.store.UnknownSeats(ctx, dep.ID, seatNumbers)
	if err != nil {
		return nil, err
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: seats not on this departure: [%s]",
			repository.ErrInvalidRequest, strings.Join(unknown, ", "))
	}

	// Total is always price × seat count; a client-supplied amount never
	// reaches this point.
	total := dep.PriceCents * uint32(len(seatNumbers))
	expires := time.Now().UTC().Add(s.holdTTL)
	booking := &model.Booking{
		DepartureID:      dep.ID,
		PayerUserID:      in.PayerUserID,
		PayerEmail:       in.PayerEmail,
		TotalAmountCents: total,
		Method:           in.Method,
		Status:           model.PaymentPending,
		HoldExpiresAt:    &expires,
	}

	mu := s.locks.ForDeparture(dep.ID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.store.CreateHeldBooking(ctx, booking, passengers, seatNumbers); err != nil {
		return nil, err
	}
	if in.Method == model.MethodOnboard {
		done, _, err := s.store.CompletePending(ctx, booking.ID)
		if err != nil {
			return nil, err
		}
		booking = done
	}
	return &ReserveResult{Booking: booking}, nil
}

// validate applies the business constraints that are independent of
// concurrency: non-empty unique seat set, named passengers, payer
// contact, a known payment method and the per-booking cap.
func (s *ReservationService) validate(in ReserveInput) ([]string, []model.BookingPassenger, error) {
	if in.DepartureID == 0 {
		return nil, nil, fmt.Errorf("%w: departure id is required", repository.ErrInvalidRequest)
	}
	if len(in.Passengers) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one passenger is required", repository.ErrInvalidRequest)
	}
	if in.PayerUserID == 0 || strings.TrimSpace(in.PayerEmail) == "" {
		return nil, nil, fmt.Errorf("%w: payer identity and contact are required", repository.ErrInvalidRequest)
	}
	if !in.Method.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown payment method %q", repository.ErrInvalidRequest, in.Method)
	}
	if s.maxSeats > 0 && len(in.Passengers) > s.maxSeats {
		return nil, nil, fmt.Errorf("%w: at most %d seats per booking", repository.ErrLimitExceeded, s.maxSeats)
	}

	seatNumbers := make([]string, 0, len(in.Passengers))
	passengers := make([]model.BookingPassenger, 0, len(in.Passengers))
	seen := make(map[string]struct{}, len(in.Passengers))
	for _, p := range in.Passengers {
		seat := strings.TrimSpace(p.SeatNumber)
		name := strings.TrimSpace(p.FullName)
		if seat == "" || name == "" {
			return nil, nil, fmt.Errorf("%w: every passenger needs a seat number and a name", repository.ErrInvalidRequest)
		}
		if _, dup := seen[seat]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate seat %s in request", repository.ErrInvalidRequest, seat)
		}
		seen[seat] = struct{}{}
		seatNumbers = append(seatNumbers, seat)
		passengers = append(passengers, model.BookingPassenger{SeatNumber: seat, FullName: name})
	}
	return seatNumbers, passengers, nil
}
