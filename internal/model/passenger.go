package model

// BookingPassenger links a booking to one seat and the passenger
// travelling on it.  Together the rows of a booking form its immutable
// seat set.
//
// Fields:
//  ID         – primary key identifier.
//  BookingID  – booking this passenger belongs to.
//  SeatNumber – seat label within the booking's departure.
//  FullName   – passenger name printed on the ticket.
type BookingPassenger struct {
	ID         uint64 // booking_passengers.id
	BookingID  uint64 // booking_passengers.booking_id
	SeatNumber string // booking_passengers.seat_number
	FullName   string // booking_passengers.full_name
}
