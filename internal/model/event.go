package model

import (
	"fmt"
	"time"
)

// Event represents a bookable event as stored in the `events` table.
// AvailableSeats is the contended field: every change to it happens
// inside a database transaction that also writes the matching booking
// row, with the event row locked for the duration.
//
// Fields:
//  ID             – primary key identifier.
//  Title          – display name of the event.
//  Venue          – where the event takes place.
//  Description    – optional longer text for the detail page.
//  TotalSeats     – seat capacity; fixed once bookings exist.
//  AvailableSeats – seats still open, 0 <= AvailableSeats <= TotalSeats.
//  PriceCents     – price per seat in cents.
//  IsActive       – whether the event is open for sale.
//  StartsAt       – when the event begins (UTC); bookable strictly before.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Event struct {
	ID             uint64
	Title          string
	Venue          string
	Description    *string
	TotalSeats     uint32
	AvailableSeats uint32
	PriceCents     uint32
	IsActive       bool
	StartsAt       time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OpenForSale reports whether new bookings may be taken at the given
// instant. The event must be active and must not have started yet.
func (e *Event) OpenForSale(now time.Time) error {
	if !e.IsActive || !e.StartsAt.After(now) {
		return ErrEventUnavailable
	}
	return nil
}

// TakeSeats validates a seat request against the available count and
// returns what remains after taking n. The caller must have read the
// event under a row lock; the returned value is written back as-is,
// never recomputed from a fresh read.
func (e *Event) TakeSeats(n uint32) (uint32, error) {
	if n > e.AvailableSeats {
		return 0, &InsufficientSeatsError{Available: e.AvailableSeats}
	}
	return e.AvailableSeats - n, nil
}

// ReturnSeats computes the available count after handing n seats back.
// It refuses to exceed TotalSeats so a corrupted row cannot silently
// inflate capacity.
func (e *Event) ReturnSeats(n uint32) (uint32, error) {
	if e.AvailableSeats+n > e.TotalSeats {
		return 0, fmt.Errorf("seat accounting broken for event %d: %d available + %d returned exceeds %d total",
			e.ID, e.AvailableSeats, n, e.TotalSeats)
	}
	return e.AvailableSeats + n, nil
}

// PriceFor returns the total amount in cents for n seats at the
// event's current price. The result is frozen onto the booking at
// creation; later price edits never touch existing bookings.
func (e *Event) PriceFor(n uint32) uint64 {
	return uint64(e.PriceCents) * uint64(n)
}
