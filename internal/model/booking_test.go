package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBookingCancellable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	starts := now.Add(2 * time.Hour)
	b := Booking{Status: BookingConfirmed}

	assert.NoError(t, b.Cancellable(now, starts))

	cancelled := b
	cancelled.Status = BookingCancelled
	assert.ErrorIs(t, cancelled.Cancellable(now, starts), ErrAlreadyCancelled)

	// already-cancelled wins over the started check
	assert.ErrorIs(t, cancelled.Cancellable(now, now.Add(-time.Hour)), ErrAlreadyCancelled)

	assert.ErrorIs(t, b.Cancellable(now, now), ErrEventStarted)
	assert.ErrorIs(t, b.Cancellable(now, now.Add(-time.Minute)), ErrEventStarted)
}

func TestBookingActive(t *testing.T) {
	assert.True(t, (&Booking{Status: BookingConfirmed}).Active())
	assert.True(t, (&Booking{Status: BookingPending}).Active())
	assert.False(t, (&Booking{Status: BookingCancelled}).Active())
}

func TestValidSeatCount(t *testing.T) {
	assert.False(t, ValidSeatCount(0))
	assert.True(t, ValidSeatCount(1))
	assert.True(t, ValidSeatCount(10))
	assert.False(t, ValidSeatCount(11))
}
