package model

import "time"

// SeatState enumerates the occupancy states of a seat.  A seat moves
// FREE → HELD when a reservation takes a time-boxed hold, HELD → BOOKED
// when the payment completes, and back to FREE when a hold is released
// or a booked seat is cancelled.  There are no other transitions.
type SeatState string

const (
	SeatFree   SeatState = "FREE"
	SeatHeld   SeatState = "HELD"
	SeatBooked SeatState = "BOOKED"
)

// Valid reports whether s is one of the known seat states.  Used when
// scanning rows so that an unexpected value in the database surfaces
// as an error instead of propagating silently.
func (s SeatState) Valid() bool {
	switch s {
	case SeatFree, SeatHeld, SeatBooked:
		return true
	}
	return false
}

// Seat is one physical seat on one departure.  The seat map for a
// departure is the full set of its Seat rows; they are created together
// with the departure and never added or removed afterwards.  BookingID
// is a back-reference only: ownership of the seat set lives in the
// booking ledger, and a seat is claimed by at most one booking at a
// time.
//
// Fields:
//  ID          – primary key identifier.
//  DepartureID – departure this seat belongs to.
//  SeatNumber  – stable label such as "A3"; unique per departure.
//  Status      – occupancy state (FREE, HELD, BOOKED).
//  BookingID   – booking currently claiming the seat (nil when FREE).
//  UpdatedAt   – timestamp of the last state transition.
type Seat struct {
	ID          uint64    // seats.id
	DepartureID uint64    // seats.departure_id
	SeatNumber  string    // seats.seat_number
	Status      SeatState // seats.status
	BookingID   *uint64   // seats.booking_id (nullable)
	UpdatedAt   time.Time // seats.updated_at
}
