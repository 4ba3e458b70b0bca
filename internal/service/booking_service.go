// Package service contains the booking workflows. The service owns the
// transaction lifecycle around the seat ledger: repositories supply
// locked reads and writes, the service composes them, retries aborted
// transactions and scopes reads to the requesting principal.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// BookingStore is the storage surface the booking service drives. Every
// method with ForUpdate in its name must be called inside WithTx; the
// lock it takes lives until that transaction ends.
type BookingStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	EventForUpdate(ctx context.Context, eventID uint64) (*model.Event, error)
	BookingForUpdate(ctx context.Context, bookingID uint64) (*model.Booking, error)
	HasActiveBooking(ctx context.Context, userID, eventID uint64) (bool, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	MarkBookingCancelled(ctx context.Context, bookingID uint64, cancelledAt time.Time) error
	SetAvailableSeats(ctx context.Context, eventID uint64, seats uint32) error
	GetBookingDetail(ctx context.Context, bookingID uint64) (*model.BookingDetail, error)
	ListBookingDetails(ctx context.Context, userID, eventID uint64, limit, offset int) ([]model.BookingDetail, error)
}

// BookingNotifier receives booking lifecycle notifications after the
// transaction has committed. Implementations log their own failures; a
// notification must never fail the request that produced it.
type BookingNotifier interface {
	BookingConfirmed(d model.BookingDetail)
	BookingCancelled(d model.BookingDetail)
}

// BookingService runs reservations and cancellations. Each operation is
// one database transaction; the event row lock taken inside serializes
// every seat mutation for that event.
type BookingService struct {
	store  BookingStore
	notify BookingNotifier
	now    func() time.Time
}

// NewBookingService wires the service. notify may be nil when no
// message broker is configured.
func NewBookingService(store BookingStore, notify BookingNotifier) *BookingService {
	return &BookingService{store: store, notify: notify, now: time.Now}
}

// Transactions the database aborts under contention (deadlock, lock
// wait timeout) are replayed from a fresh read a bounded number of
// times. Business rejections are never replayed.
const (
	txAttempts   = 3
	txRetryPause = 25 * time.Millisecond
)

func (s *BookingService) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = s.store.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, model.ErrTxConflict) || attempt == txAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(txRetryPause):
		}
	}
}

// Reserve books seats on an event for the user and returns the booking
// joined with the event summary. The checks and the seat write run in
// one transaction holding the event row lock, so two requests racing
// for the last seats serialize and the loser is told exactly how many
// seats the winner left behind.
func (s *BookingService) Reserve(ctx context.Context, userID, eventID uint64, seats uint32, note *string) (*model.BookingDetail, error) {
	if !model.ValidSeatCount(seats) {
		return nil, model.ErrInvalidSeatCount
	}
	if note != nil && len(*note) > model.MaxNoteLength {
		return nil, model.ErrNoteTooLong
	}

	now := s.now()
	var result *model.BookingDetail
	err := s.runTx(ctx, func(txCtx context.Context) error {
		ev, err := s.store.EventForUpdate(txCtx, eventID)
		if err != nil {
			return err
		}
		if err := ev.OpenForSale(now); err != nil {
			return err
		}
		booked, err := s.store.HasActiveBooking(txCtx, userID, eventID)
		if err != nil {
			return err
		}
		if booked {
			return model.ErrDuplicateBooking
		}
		remaining, err := ev.TakeSeats(seats)
		if err != nil {
			return err
		}
		b := &model.Booking{
			Reference:        uuid.NewString(),
			UserID:           userID,
			EventID:          eventID,
			SeatCount:        seats,
			TotalAmountCents: ev.PriceFor(seats),
			Status:           model.BookingConfirmed,
			Note:             note,
		}
		if err := s.store.InsertBooking(txCtx, b); err != nil {
			return err
		}
		// Absolute value derived from the locked read, never a fresh one.
		if err := s.store.SetAvailableSeats(txCtx, eventID, remaining); err != nil {
			return err
		}
		result = detailFor(b, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.notify != nil {
		s.notify.BookingConfirmed(*result)
	}
	return result, nil
}

// Cancel cancels a booking and returns its seats to the event in the
// same transaction. The booking row is locked before the event row, so
// a second cancel of the same booking waits and then observes
// CANCELLED; reserve locks only the event row, so the two lock orders
// cannot deadlock each other. Non-owners get ErrBookingNotFound rather
// than a forbidden error; admins may cancel any booking.
func (s *BookingService) Cancel(ctx context.Context, principalID uint64, admin bool, bookingID uint64) (*model.BookingDetail, error) {
	now := s.now()
	var result *model.BookingDetail
	err := s.runTx(ctx, func(txCtx context.Context) error {
		b, err := s.store.BookingForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}
		if !admin && b.UserID != principalID {
			return model.ErrBookingNotFound
		}
		ev, err := s.store.EventForUpdate(txCtx, b.EventID)
		if err != nil {
			return err
		}
		if err := b.Cancellable(now, ev.StartsAt); err != nil {
			return err
		}
		restored, err := ev.ReturnSeats(b.SeatCount)
		if err != nil {
			return err
		}
		if err := s.store.MarkBookingCancelled(txCtx, b.ID, now); err != nil {
			return err
		}
		if err := s.store.SetAvailableSeats(txCtx, b.EventID, restored); err != nil {
			return err
		}
		b.Status = model.BookingCancelled
		cancelledAt := now
		b.CancelledAt = &cancelledAt
		result = detailFor(b, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.notify != nil {
		s.notify.BookingCancelled(*result)
	}
	return result, nil
}

// Get returns one booking with its event summary. Non-admin callers see
// only their own bookings; anything else reads as not found.
func (s *BookingService) Get(ctx context.Context, principalID uint64, admin bool, bookingID uint64) (*model.BookingDetail, error) {
	d, err := s.store.GetBookingDetail(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !admin && d.UserID != principalID {
		return nil, model.ErrBookingNotFound
	}
	return d, nil
}

// ListQuery narrows and pages a booking listing. Zero values disable
// the corresponding filter; a non-positive Limit disables paging.
type ListQuery struct {
	UserID  uint64
	EventID uint64
	Limit   int
	Offset  int
}

// List returns bookings newest first. Non-admin principals are pinned
// to their own bookings regardless of the query's UserID.
func (s *BookingService) List(ctx context.Context, principalID uint64, admin bool, q ListQuery) ([]model.BookingDetail, error) {
	if !admin {
		q.UserID = principalID
	}
	return s.store.ListBookingDetails(ctx, q.UserID, q.EventID, q.Limit, q.Offset)
}

func detailFor(b *model.Booking, ev *model.Event) *model.BookingDetail {
	return &model.BookingDetail{
		Booking:         *b,
		EventTitle:      ev.Title,
		EventVenue:      ev.Venue,
		EventStartsAt:   ev.StartsAt,
		EventPriceCents: ev.PriceCents,
	}
}
