// Package repository defines the error taxonomy shared by the data
// access layer and the services built on top of it. Sentinel values
// let handlers translate failures into HTTP responses with errors.Is,
// while SeatConflictError carries the exact set of contested seats so
// a client can retry with a different selection.
package repository

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest is returned when a request is malformed before any
// mutation is attempted: empty or duplicate seat sets, seat numbers
// that do not belong to the departure, missing passenger names.
// Handlers translate this into HTTP 400.
var ErrInvalidRequest = errors.New("invalid request")

// ErrLimitExceeded is returned when a reservation asks for more seats
// than the configured per-booking cap allows. Handlers translate this
// into HTTP 422.
var ErrLimitExceeded = errors.New("seat limit exceeded")

// ErrStaleHold is returned when a hold expired mid-flight: the commit
// found fewer held seats than the booking owns because the reaper got
// there first. Handlers translate this into HTTP 409.
var ErrStaleHold = errors.New("hold expired")

// ErrForbidden is returned when the caller attempts an operation on a
// booking they do not own and they are not an operator. Handlers
// translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrInconsistent is returned when the seat map and the booking ledger
// disagree, for example a PENDING booking whose held seats vanished
// without the hold expiring. It is never retried and never repaired by
// guessing; it must be logged and surfaced for manual reconciliation.
var ErrInconsistent = errors.New("seat map and booking ledger disagree")

// ErrDepartureNotFound is returned when the referenced departure does
// not exist. Handlers translate this into HTTP 404.
var ErrDepartureNotFound = errors.New("departure not found")

// ErrBookingNotFound is returned when the referenced booking does not
// exist. Handlers translate this into HTTP 404.
var ErrBookingNotFound = errors.New("booking not found")

// SeatConflictError reports a failed hold attempt. Seats lists every
// requested seat that was not FREE at the time of the attempt, in
// request order. The hold is all-or-nothing, so none of the requested
// seats were mutated. This is an expected business outcome, not a
// system fault.
type SeatConflictError struct {
	Seats []string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats unavailable: [%s]", strings.Join(e.Seats, ", "))
}
