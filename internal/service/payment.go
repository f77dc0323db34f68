package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/payment"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
)

// LedgerStore is the slice of the store the reconciler needs.
type LedgerStore interface {
	GetDeparture(ctx context.Context, id uint64) (*model.Departure, error)
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	BookingPassengers(ctx context.Context, bookingID uint64) ([]model.BookingPassenger, error)
	SetProviderInfo(ctx context.Context, bookingID uint64, providerRef, idempotencyKey string) error
	CompletePending(ctx context.Context, bookingID uint64) (*model.Booking, bool, error)
	FailPending(ctx context.Context, bookingID uint64) (*model.Booking, bool, error)
	CancelBooking(ctx context.Context, bookingID uint64) (*model.Booking, bool, error)
	ExpireHeldBefore(ctx context.Context, deadline time.Time) ([]model.Booking, error)
}

// Provider is the outbound payment collaborator. The concrete
// implementation is payment.Client; tests substitute a fake.
type Provider interface {
	Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResponse, error)
	Verify(ctx context.Context, providerRef string) (payment.Outcome, error)
}

// TicketNotifier publishes the fire-and-forget "ticket issued" event
// after a booking completes. A publish failure never rolls back the
// booking; it is logged and the consumer catches up later.
type TicketNotifier func(ctx context.Context, ev queue.TicketIssuedEvent) error

// PaymentService is the payment reconciler. It bridges asynchronous
// provider outcomes back into the seat map / ledger state machine,
// owns the hold-expiry reap, and enforces cancellation authorization.
type PaymentService struct {
	store     LedgerStore
	provider  Provider
	locks     *LockTable
	notify    TicketNotifier
	returnURL string
	currency  string
}

// NewPaymentService constructs the reconciler. notify may be nil when
// no broker is configured; completion then simply skips the event.
func NewPaymentService(store LedgerStore, provider Provider, locks *LockTable, notify TicketNotifier, returnURL string) *PaymentService {
	if store == nil || locks == nil {
		panic("nil dependency passed to NewPaymentService")
	}
	return &PaymentService{
		store:     store,
		provider:  provider,
		locks:     locks,
		notify:    notify,
		returnURL: returnURL,
		currency:  "USD",
	}
}

// Initiate calls the provider with the server-computed amount and the
// booking id as reference, then stores the provider's transaction
// handle. The outbound call runs outside any departure lock or
// transaction: the hold is already durable when the provider is
// contacted. When the provider stays unavailable past the client's
// retry budget the booking is failed and its seats released, so a dead
// provider cannot strand held seats.
func (s *PaymentService) Initiate(ctx context.Context, bookingID, actorID uint64, actorRole string) (*payment.InitiateResponse, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorize(b, actorID, actorRole); err != nil {
		return nil, err
	}
	if b.Method != model.MethodGateway {
		return nil, fmt.Errorf("%w: booking is not paid through the gateway", repository.ErrInvalidRequest)
	}
	if b.Status != model.PaymentPending || b.IsCancelled {
		return nil, fmt.Errorf("%w: booking is not awaiting payment", repository.ErrInvalidRequest)
	}
	if s.provider == nil {
		return nil, payment.ErrProviderUnavailable
	}

	key := uuid.NewString()
	resp, err := s.provider.Initiate(ctx, payment.InitiateRequest{
		Reference:      fmt.Sprintf("%d", b.ID),
		AmountCents:    b.TotalAmountCents,
		Currency:       s.currency,
		ReturnURL:      s.returnURL,
		IdempotencyKey: key,
	})
	if err != nil {
		if errors.Is(err, payment.ErrProviderUnavailable) {
			if _, _, failErr := s.failWithLock(ctx, b); failErr != nil {
				log.Printf("reconciler: failed to release booking %d after provider outage: %v", b.ID, failErr)
			}
		}
		return nil, err
	}
	if err := s.store.SetProviderInfo(ctx, b.ID, resp.ProviderRef, key); err != nil {
		return nil, err
	}
	return resp, nil
}

// Finalize drives a PENDING booking to its final state from a provider
// outcome. Idempotent: finalizing an already-final booking returns the
// existing state without touching any seat, so duplicate callbacks,
// callback-plus-poll races and stale outcomes can never double-commit,
// double-release or regress a final state.
func (s *PaymentService) Finalize(ctx context.Context, bookingID uint64, outcome payment.Outcome) (*model.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case payment.OutcomeSucceeded:
		return s.completeWithLock(ctx, b)
	case payment.OutcomeFailed:
		done, _, err := s.failWithLock(ctx, b)
		return done, err
	case payment.OutcomePending:
		// No verdict yet; nothing to reconcile.
		return b, nil
	}
	return nil, fmt.Errorf("%w: unknown payment outcome %q", repository.ErrInvalidRequest, outcome)
}

func (s *PaymentService) completeWithLock(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	mu := s.locks.ForDeparture(b.DepartureID)
	mu.Lock()
	done, changed, err := s.store.CompletePending(ctx, b.ID)
	mu.Unlock()
	if err != nil {
		if errors.Is(err, repository.ErrInconsistent) {
			log.Printf("reconciler: INCONSISTENT booking %d: %v; manual reconciliation required", b.ID, err)
		}
		return nil, err
	}
	if changed {
		s.publishTicket(ctx, done)
	}
	return done, nil
}

func (s *PaymentService) failWithLock(ctx context.Context, b *model.Booking) (*model.Booking, bool, error) {
	mu := s.locks.ForDeparture(b.DepartureID)
	mu.Lock()
	defer mu.Unlock()
	return s.store.FailPending(ctx, b.ID)
}

// VerifyPending polls the provider for a booking that never received a
// callback and feeds the result through the same Finalize path. A
// booking that is already final is returned as-is without contacting
// the provider.
func (s *PaymentService) VerifyPending(ctx context.Context, bookingID, actorID uint64, actorRole string) (*model.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorize(b, actorID, actorRole); err != nil {
		return nil, err
	}
	if b.Status.Final() {
		return b, nil
	}
	if b.ProviderRef == nil {
		return nil, fmt.Errorf("%w: payment was never initiated", repository.ErrInvalidRequest)
	}
	if s.provider == nil {
		return nil, payment.ErrProviderUnavailable
	}
	outcome, err := s.provider.Verify(ctx, *b.ProviderRef)
	if err != nil {
		return nil, err
	}
	return s.Finalize(ctx, b.ID, outcome)
}

// Cancel performs an explicit cancellation on behalf of the booking's
// payer or an operator; anyone else gets ErrForbidden. Cancelling an
// already-cancelled booking is a no-op returning the current state.
func (s *PaymentService) Cancel(ctx context.Context, bookingID, actorID uint64, actorRole string) (*model.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorize(b, actorID, actorRole); err != nil {
		return nil, err
	}
	mu := s.locks.ForDeparture(b.DepartureID)
	mu.Lock()
	done, _, err := s.store.CancelBooking(ctx, b.ID)
	mu.Unlock()
	return done, err
}

// ReapHeld releases every hold whose TTL elapsed with no payment
// outcome and fails the owning bookings. It is the only actor allowed
// to expire a hold, and it reuses the store's release path, so the
// sweep can never race another transition into a double release.
// Returns the number of bookings reaped.
func (s *PaymentService) ReapHeld(ctx context.Context) (int, error) {
	expired, err := s.store.ExpireHeldBefore(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	for _, b := range expired {
		log.Printf("reconciler: reaped booking %d (departure %d), hold expired at %s",
			b.ID, b.DepartureID, b.HoldExpiresAt.UTC().Format(time.RFC3339))
	}
	return len(expired), nil
}

// RunReaper drives ReapHeld on a fixed interval until ctx is
// cancelled. Started from main as a background goroutine.
func (s *PaymentService) RunReaper(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.ReapHeld(ctx); err != nil {
				log.Printf("reconciler: reap sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("reconciler: reap sweep released %d expired holds", n)
			}
		}
	}
}

// publishTicket emits the ticket event for a completed booking.
// Fire-and-forget: a notifier failure is logged, never propagated, and
// never rolls back the completed booking.
func (s *PaymentService) publishTicket(ctx context.Context, b *model.Booking) {
	if s.notify == nil {
		return
	}
	ev := queue.TicketIssuedEvent{
		BookingID:        b.ID,
		DepartureID:      b.DepartureID,
		PayerEmail:       b.PayerEmail,
		TotalAmountCents: b.TotalAmountCents,
		IssuedAt:         time.Now().UTC().Format(time.RFC3339),
	}
	if dep, err := s.store.GetDeparture(ctx, b.DepartureID); err == nil {
		ev.Origin = dep.Origin
		ev.Destination = dep.Destination
		ev.DepartsAt = dep.DepartsAt.UTC().Format(time.RFC3339)
	}
	if passengers, err := s.store.BookingPassengers(ctx, b.ID); err == nil {
		for _, p := range passengers {
			ev.Seats = append(ev.Seats, p.SeatNumber)
		}
	}
	if err := s.notify(ctx, ev); err != nil {
		log.Printf("reconciler: ticket event for booking %d not published: %v", b.ID, err)
	}
}

// authorize allows the booking's payer and operators; everyone else is
// rejected with ErrForbidden.
func authorize(b *model.Booking, actorID uint64, actorRole string) error {
	if actorRole == RoleOperator {
		return nil
	}
	if b.PayerUserID == actorID {
		return nil
	}
	return repository.ErrForbidden
}
