package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the booking domain. The repositories and the
// booking service return these so handlers can translate outcomes into
// HTTP codes with errors.Is instead of inspecting driver errors.
var (
	// ErrEventNotFound is returned when an event id does not exist.
	ErrEventNotFound = errors.New("event not found")
	// ErrBookingNotFound is returned when a booking does not exist or is
	// not visible to the caller.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrEventUnavailable is returned when an event exists but cannot be
	// booked: it is inactive or has already started.
	ErrEventUnavailable = errors.New("event is not open for booking")
	// ErrDuplicateBooking is returned when the user already holds a
	// non-cancelled booking for the event.
	ErrDuplicateBooking = errors.New("duplicate booking for this event")
	// ErrAlreadyCancelled is returned when cancelling a booking twice.
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	// ErrEventStarted rejects a cancellation once the event has started.
	ErrEventStarted = errors.New("cannot cancel a booking for a past event")
	// ErrInvalidSeatCount rejects seat counts outside the per-booking
	// limits before any database work happens.
	ErrInvalidSeatCount = fmt.Errorf("seat count must be between %d and %d", MinSeatsPerBooking, MaxSeatsPerBooking)
	// ErrNoteTooLong rejects notes longer than the stored column.
	ErrNoteTooLong = fmt.Errorf("note must be at most %d characters", MaxNoteLength)
	// ErrEventHasBookings blocks deleting an event that has bookings,
	// cancelled ones included, because booking rows are never removed.
	ErrEventHasBookings = errors.New("event has bookings")
	// ErrTxConflict marks a transaction the database aborted because of
	// conflicting concurrent writes (deadlock, lock wait timeout). The
	// whole operation may be retried from a fresh read.
	ErrTxConflict = errors.New("transaction aborted by concurrent writes")
)

// InsufficientSeatsError is returned by reserve when the request exceeds
// the seats left. Available carries the count observed under the row
// lock, so the caller always sees an accurate figure.
type InsufficientSeatsError struct {
	Available uint32
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("insufficient seats: only %d seats available", e.Available)
}
