// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketIssuedEvent is published when a booking's payment completes
// and its seats are committed. It carries everything the notifier
// needs to issue the ticket without querying the primary database.
type TicketIssuedEvent struct {
	BookingID        uint64   `json:"booking_id"`
	DepartureID      uint64   `json:"departure_id"`
	Origin           string   `json:"origin"`
	Destination      string   `json:"destination"`
	DepartsAt        string   `json:"departs_at"`
	PayerEmail       string   `json:"payer_email"`
	Seats            []string `json:"seats"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	IssuedAt         string   `json:"issued_at"`
}
