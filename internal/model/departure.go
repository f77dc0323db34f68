package model

import "time"

// Departure represents a single scheduled bus trip.  It identifies a
// route (origin and destination), the departure time, the per-seat
// price and the size of the seat map.  Departures are created by the
// operator surface and are read-only to the booking core: the core
// never mutates a departure, only the seats that belong to it.
//
// Fields:
//  ID         – primary key identifier.
//  Origin     – departure city or terminal name.
//  Destination – arrival city or terminal name.
//  DepartsAt  – scheduled departure time in UTC.
//  PriceCents – price per seat in cents; the booking total is always
//               recomputed from this value, never taken from a client.
//  TotalSeats – number of seats in the departure's seat map.
//  CreatedAt  – timestamp when the record was created.
//  UpdatedAt  – timestamp when the record was last updated.
type Departure struct {
	ID          uint64    // departures.id
	Origin      string    // departures.origin
	Destination string    // departures.destination
	DepartsAt   time.Time // departures.departs_at
	PriceCents  uint32    // departures.price_cents
	TotalSeats  int       // departures.total_seats
	CreatedAt   time.Time // departures.created_at
	UpdatedAt   time.Time // departures.updated_at
}
