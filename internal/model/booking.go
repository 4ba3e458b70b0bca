package model

import "time"

// Booking lifecycle states. A booking is created CONFIRMED together
// with the seat decrement and can only move to CANCELLED. PENDING is
// part of the status domain for future payment flows; nothing in the
// current flow produces it.
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
)

// Per-booking seat limits and the note length cap. Requests outside
// these bounds are rejected before any database work.
const (
	MinSeatsPerBooking = 1
	MaxSeatsPerBooking = 10
	MaxNoteLength      = 500
)

// Booking records one user's reservation against one event. Rows are
// never deleted; cancellation only flips Status and stamps CancelledAt.
//
// Fields:
//  ID               – primary key identifier.
//  Reference        – external UUID surfaced in messages and audit logs.
//  UserID           – user who booked.
//  EventID          – event being booked.
//  SeatCount        – number of seats, 1..10.
//  TotalAmountCents – price per seat times SeatCount, frozen at creation.
//  Status           – PENDING, CONFIRMED or CANCELLED.
//  Note             – optional free text from the customer (nullable).
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
//  CancelledAt      – when the booking was cancelled (nullable).
type Booking struct {
	ID               uint64
	Reference        string
	UserID           uint64
	EventID          uint64
	SeatCount        uint32
	TotalAmountCents uint64
	Status           string
	Note             *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CancelledAt      *time.Time
}

// Active reports whether the booking still holds seats against its
// event's inventory.
func (b *Booking) Active() bool {
	return b.Status != BookingCancelled
}

// Cancellable reports whether the booking may be cancelled at the given
// instant, where startsAt is the owning event's start time. Checked in
// order: not already cancelled, then event not yet started.
func (b *Booking) Cancellable(now, startsAt time.Time) error {
	if b.Status == BookingCancelled {
		return ErrAlreadyCancelled
	}
	if !startsAt.After(now) {
		return ErrEventStarted
	}
	return nil
}

// ValidSeatCount reports whether n is within the per-booking limits.
func ValidSeatCount(n uint32) bool {
	return n >= MinSeatsPerBooking && n <= MaxSeatsPerBooking
}

// BookingDetail couples a booking with summary fields of its event for
// list and detail responses. Handlers shape the JSON; this struct only
// carries the joined columns out of the query layer.
type BookingDetail struct {
	Booking
	EventTitle      string
	EventVenue      string
	EventStartsAt   time.Time
	EventPriceCents uint32
}
