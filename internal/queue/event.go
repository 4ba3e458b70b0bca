// Package queue defines message payloads exchanged over the message broker,
// the publisher that emits them and the background consumer that turns them
// into audit log lines.
package queue

// Queue names. The routing key equals the queue name; everything goes
// through the default exchange.
const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueBookingCancelled = "booking.cancelled"
)

// BookingConfirmedEvent is published after a booking commits. It carries
// enough for downstream consumers to log, notify or feed analytics
// without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID        uint64 `json:"booking_id"`
	Reference        string `json:"reference"`
	UserID           uint64 `json:"user_id"`
	EventID          uint64 `json:"event_id"`
	EventTitle       string `json:"event_title"`
	SeatCount        uint32 `json:"seat_count"`
	TotalAmountCents uint64 `json:"total_amount_cents"`
	ConfirmedAt      string `json:"confirmed_at"`
}

// BookingCancelledEvent is published after a cancellation commits and the
// seats have returned to the event's availability.
type BookingCancelledEvent struct {
	BookingID        uint64 `json:"booking_id"`
	Reference        string `json:"reference"`
	UserID           uint64 `json:"user_id"`
	EventID          uint64 `json:"event_id"`
	EventTitle       string `json:"event_title"`
	SeatCount        uint32 `json:"seat_count"`
	TotalAmountCents uint64 `json:"total_amount_cents"`
	CancelledAt      string `json:"cancelled_at"`
}
