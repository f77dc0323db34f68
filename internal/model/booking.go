package model

import "time"

// PaymentStatus enumerates the payment lifecycle of a booking.  The
// machine is strictly:
//
//	PENDING → COMPLETED   (provider confirmed payment)
//	PENDING → FAILED      (provider declined, or the hold TTL elapsed)
//	PENDING → CANCELLED   (customer abandoned checkout explicitly)
//	COMPLETED → CANCELLED (post-payment cancellation)
//
// A final status never moves back to PENDING, and duplicate or
// out-of-order provider callbacks must not regress it.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// Final reports whether the status is terminal for the payment flow.
// Finalizing an already-final booking is a no-op, not an error.
func (s PaymentStatus) Final() bool {
	return s == PaymentCompleted || s == PaymentFailed || s == PaymentCancelled
}

// PaymentMethod selects how a booking is paid.  GATEWAY bookings stay
// PENDING until the external provider confirms the payment.  ONBOARD
// is the explicit pay-on-board policy: seats are booked immediately
// and no provider interaction takes place.
type PaymentMethod string

const (
	MethodGateway PaymentMethod = "GATEWAY"
	MethodOnboard PaymentMethod = "ONBOARD"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == MethodGateway || m == MethodOnboard
}

// Booking is the durable ledger record of a seat purchase.  It
// aggregates a non-empty set of seats from a single departure (via
// BookingPassenger rows), the payer identity and the server-computed
// total amount.  The seat set is immutable after creation; amending a
// booking means cancelling and rebooking.
//
// While Status is PENDING the booking doubles as the hold on its
// seats: HoldExpiresAt carries the TTL after which the reaper releases
// the seats and fails the booking.  IsCancelled is independent of the
// payment status so that a completed, paid booking can still be
// cancelled later.
//
// Fields:
//  ID               – primary key identifier.
//  DepartureID      – departure whose seats are claimed.
//  PayerUserID      – authenticated user who pays for the booking.
//  PayerEmail       – contact address used by the notifier.
//  TotalAmountCents – price_cents × seat count, recomputed server-side.
//  Method           – GATEWAY or ONBOARD.
//  Status           – payment status (see PaymentStatus).
//  IsCancelled      – set by explicit cancellation, any status.
//  ProviderRef      – transaction handle returned by the provider.
//  IdempotencyKey   – key sent with the initiate-payment call.
//  HoldExpiresAt    – hold TTL deadline while the booking is PENDING.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Booking struct {
	ID               uint64        // bookings.id
	DepartureID      uint64        // bookings.departure_id
	PayerUserID      uint64        // bookings.payer_user_id
	PayerEmail       string        // bookings.payer_email
	TotalAmountCents uint32        // bookings.total_amount_cents
	Method           PaymentMethod // bookings.payment_method
	Status           PaymentStatus // bookings.payment_status
	IsCancelled      bool          // bookings.is_cancelled
	ProviderRef      *string       // bookings.provider_ref (nullable)
	IdempotencyKey   *string       // bookings.idempotency_key (nullable)
	HoldExpiresAt    *time.Time    // bookings.hold_expires_at (nullable)
	CreatedAt        time.Time     // bookings.created_at
	UpdatedAt        time.Time     // bookings.updated_at
}
