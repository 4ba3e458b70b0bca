package service

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

func futureEvent(id uint64, total, available, priceCents uint32) model.Event {
	return model.Event{
		ID:             id,
		Title:          "Go Conference",
		Venue:          "Main Hall",
		TotalSeats:     total,
		AvailableSeats: available,
		PriceCents:     priceCents,
		IsActive:       true,
		StartsAt:       time.Now().Add(24 * time.Hour),
	}
}

func TestBookingServiceReserve(t *testing.T) {
	t.Run("books seats and freezes the amount", func(t *testing.T) {
		store := newFakeStore(futureEvent(1, 10, 10, 5000))
		svc := NewBookingService(store, nil)

		note := "aisle if possible"
		d, err := svc.Reserve(context.Background(), 7, 1, 4, &note)
		require.NoError(t, err)

		assert.Equal(t, model.BookingConfirmed, d.Status)
		assert.Equal(t, uint32(4), d.SeatCount)
		assert.Equal(t, uint64(20000), d.TotalAmountCents)
		assert.NoError(t, uuid.Validate(d.Reference))
		assert.Equal(t, "Go Conference", d.EventTitle)
		require.NotNil(t, d.Note)
		assert.Equal(t, note, *d.Note)
		assert.Equal(t, uint32(6), store.events[1].AvailableSeats)
	})

	t.Run("rejects a second active booking for the same event", func(t *testing.T) {
		store := newFakeStore(futureEvent(1, 10, 10, 5000))
		svc := NewBookingService(store, nil)

		_, err := svc.Reserve(context.Background(), 7, 1, 2, nil)
		require.NoError(t, err)

		_, err = svc.Reserve(context.Background(), 7, 1, 1, nil)
		assert.ErrorIs(t, err, model.ErrDuplicateBooking)
		assert.Equal(t, uint32(8), store.events[1].AvailableSeats)
		assert.Len(t, store.bookings, 1)
	})

	t.Run("reports current availability when seats run short", func(t *testing.T) {
		store := newFakeStore(futureEvent(1, 10, 6, 5000))
		svc := NewBookingService(store, nil)

		_, err := svc.Reserve(context.Background(), 8, 1, 7, nil)
		var insufficient *model.InsufficientSeatsError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, uint32(6), insufficient.Available)
		assert.Contains(t, err.Error(), "6 seats available")
		assert.Equal(t, uint32(6), store.events[1].AvailableSeats)
		assert.Empty(t, store.bookings)
	})

	t.Run("exact fit drives availability to zero", func(t *testing.T) {
		store := newFakeStore(futureEvent(1, 10, 6, 5000))
		svc := NewBookingService(store, nil)

		_, err := svc.Reserve(context.Background(), 8, 1, 6, nil)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), store.events[1].AvailableSeats)

		_, err = svc.Reserve(context.Background(), 9, 1, 1, nil)
		var insufficient *model.InsufficientSeatsError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, uint32(0), insufficient.Available)
		assert.Equal(t, uint32(0), store.events[1].AvailableSeats)
	})

	t.Run("unknown event", func(t *testing.T) {
		svc := NewBookingService(newFakeStore(), nil)
		_, err := svc.Reserve(context.Background(), 7, 99, 1, nil)
		assert.ErrorIs(t, err, model.ErrEventNotFound)
	})

	t.Run("inactive event is not for sale", func(t *testing.T) {
		ev := futureEvent(1, 10, 10, 5000)
		ev.IsActive = false
		svc := NewBookingService(newFakeStore(ev), nil)

		_, err := svc.Reserve(context.Background(), 7, 1, 1, nil)
		assert.ErrorIs(t, err, model.ErrEventUnavailable)
	})

	t.Run("started event is not for sale", func(t *testing.T) {
		ev := futureEvent(1, 10, 10, 5000)
		ev.StartsAt = time.Now().Add(-time.Minute)
		svc := NewBookingService(newFakeStore(ev), nil)

		_, err := svc.Reserve(context.Background(), 7, 1, 1, nil)
		assert.ErrorIs(t, err, model.ErrEventUnavailable)
	})

	t.Run("seat count outside the limits never reaches the store", func(t *testing.T) {
		store := newFakeStore(futureEvent(1, 100, 100, 5000))
		svc := NewBookingService(store, nil)

		_, err := svc.Reserve(context.Background(), 7, 1, 0, nil)
		assert.ErrorIs(t, err, model.ErrInvalidSeatCount)

		_, err = svc.Reserve(context.Background(), 7, 1, 11, nil)
		assert.ErrorIs(t, err, model.ErrInvalidSeatCount)
		assert.Equal(t, 0, store.attempts)
	})

	t.Run("overlong note never reaches the store", func(t *testing.T) {
		store := newFakeStore(futureEvent(1, 10, 10, 5000))
		svc := NewBookingService(store, nil)

		note := strings.Repeat("x", model.MaxNoteLength+1)
		_, err := svc.Reserve(context.Background(), 7, 1, 1, &note)
		assert.ErrorIs(t, err, model.ErrNoteTooLong)
		assert.Equal(t, 0, store.attempts)
	})
}

// Walks one event through the reserve, reject and cancel sequence,
// checking the seat count and frozen amount at every step.
func TestBookingServiceScenario(t *testing.T) {
	store := newFakeStore(futureEvent(1, 10, 10, 5000))
	svc := NewBookingService(store, nil)
	ctx := context.Background()

	booked, err := svc.Reserve(ctx, 1, 1, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(20000), booked.TotalAmountCents)
	assert.Equal(t, uint32(6), store.events[1].AvailableSeats)

	_, err = svc.Reserve(ctx, 2, 1, 7, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "6 seats available")
	assert.Equal(t, uint32(6), store.events[1].AvailableSeats)

	cancelled, err := svc.Cancel(ctx, 1, false, booked.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)
	assert.Equal(t, uint64(20000), cancelled.TotalAmountCents)
	assert.Equal(t, uint32(10), store.events[1].AvailableSeats)

	retried, err := svc.Reserve(ctx, 2, 1, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(35000), retried.TotalAmountCents)
	assert.Equal(t, uint32(3), store.events[1].AvailableSeats)
}

// Ten users race for five seats; the store serializes transactions the
// way the event row lock does. Exactly five may win and the books must
// balance afterwards.
func TestBookingServiceConcurrentReserves(t *testing.T) {
	store := newFakeStore(futureEvent(1, 5, 5, 1000))
	svc := NewBookingService(store, nil)

	const users = 10
	errs := make([]error, users)
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(context.Background(), uint64(i+1), 1, 1, nil)
		}(i)
	}
	wg.Wait()

	won, lost := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		default:
			var insufficient *model.InsufficientSeatsError
			require.ErrorAs(t, err, &insufficient)
			assert.Equal(t, uint32(0), insufficient.Available)
			lost++
		}
	}
	assert.Equal(t, 5, won)
	assert.Equal(t, 5, lost)
	assert.Equal(t, uint32(0), store.events[1].AvailableSeats)

	var activeSeats uint32
	for _, b := range store.bookings {
		if b.Active() {
			activeSeats += b.SeatCount
		}
	}
	ev := store.events[1]
	assert.Equal(t, ev.TotalSeats-ev.AvailableSeats, activeSeats)
}

func TestBookingServiceCancel(t *testing.T) {
	reserve := func(t *testing.T, svc *BookingService, userID uint64, seats uint32) *model.BookingDetail {
		t.Helper()
		d, err := svc.Reserve(context.Background(), userID, 1, seats, nil)
		require.NoError(t, err)
		return d
	}

	t.Run("returns seats and stamps the booking", func(t *testing.T) {
		store := newFakeStore(futureEvent(1, 10, 10, 5000))
		svc := NewBookingService(store, nil)
		booked := reserve(t, svc, 7, 3)
		require.Equal(t, uint32(7), store.events[1].AvailableSeats)

		d, err := svc.Cancel(context.Background(), 7, false, booked.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCancelled, d.Status)
		assert.NotNil(t, d.CancelledAt)
		assert.Equal(t, uint32(10), store.events[1].AvailableSeats)
		assert.Equal(t, model.BookingCancelled, store.bookings[booked.ID].Status)
	})

	t.Run("second cancel is rejected and changes nothing", func(t *testing.T) {
		store := newFakeStore(futureEvent(1, 10, 10, 5000))
		svc := NewBookingService(store, nil)
		booked := reserve(t, svc, 7, 3)

		_, err := svc.Cancel(context.Background(), 7, false, booked.ID)
		require.NoError(t, err)

		_, err = svc.Cancel(context.Background(), 7, false, booked.ID)
		assert.ErrorIs(t, err, model.ErrAlreadyCancelled)
		assert.Equal(t, uint32(10), store.events[1].AvailableSeats)
	})

	t.Run("another user's booking reads as missing", func(t *testing.T) {
		store := newFakeStore(futureEvent(1, 10, 10, 5000))
		svc := NewBookingService(store, nil)
		booked := reserve(t, svc, 7, 3)

		_, err := svc.Cancel(context.Background(), 8, false, booked.ID)
		assert.ErrorIs(t, err, model.ErrBookingNotFound)
		assert.Equal(t, model.BookingConfirmed, store.bookings[booked.ID].Status)
		assert.Equal(t, uint32(7), store.events[1].AvailableSeats)
	})

	t.Run("admin may cancel any booking", func(t *testing.T) {
		store := newFakeStore(futureEvent(1, 10, 10, 5000))
		svc := NewBookingService(store, nil)
		booked := reserve(t, svc, 7, 3)

		_, err := svc.Cancel(context.Background(), 1, true, booked.ID)
		require.NoError(t, err)
		assert.Equal(t, uint32(10), store.events[1].AvailableSeats)
	})

	t.Run("started event blocks cancellation", func(t *testing.T) {
		store := newFakeStore(futureEvent(1, 10, 10, 5000))
		svc := NewBookingService(store, nil)
		booked := reserve(t, svc, 7, 3)

		svc.now = func() time.Time { return store.events[1].StartsAt.Add(time.Minute) }
		_, err := svc.Cancel(context.Background(), 7, false, booked.ID)
		assert.ErrorIs(t, err, model.ErrEventStarted)
		assert.Equal(t, uint32(7), store.events[1].AvailableSeats)
	})

	t.Run("deactivated event is still cancellable", func(t *testing.T) {
		store := newFakeStore(futureEvent(1, 10, 10, 5000))
		svc := NewBookingService(store, nil)
		booked := reserve(t, svc, 7, 3)

		ev := store.events[1]
		ev.IsActive = false
		store.events[1] = ev

		_, err := svc.Cancel(context.Background(), 7, false, booked.ID)
		require.NoError(t, err)
		assert.Equal(t, uint32(10), store.events[1].AvailableSeats)
	})

	t.Run("missing booking", func(t *testing.T) {
		svc := NewBookingService(newFakeStore(futureEvent(1, 10, 10, 5000)), nil)
		_, err := svc.Cancel(context.Background(), 7, false, 99)
		assert.ErrorIs(t, err, model.ErrBookingNotFound)
	})
}

func TestBookingServiceRetry(t *testing.T) {
	conflict := fmt.Errorf("deadlock detected: %w", model.ErrTxConflict)

	t.Run("replays transactions the database aborted", func(t *testing.T) {
		store := newFakeStore(futureEvent(1, 10, 10, 5000))
		store.txErrs = []error{conflict, conflict}
		svc := NewBookingService(store, nil)

		d, err := svc.Reserve(context.Background(), 7, 1, 2, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, store.attempts)
		assert.Equal(t, uint32(8), store.events[1].AvailableSeats)
		assert.Equal(t, uint64(10000), d.TotalAmountCents)
	})

	t.Run("gives up after the bounded attempts", func(t *testing.T) {
		store := newFakeStore(futureEvent(1, 10, 10, 5000))
		store.txErrs = []error{conflict, conflict, conflict, conflict, conflict}
		svc := NewBookingService(store, nil)

		_, err := svc.Reserve(context.Background(), 7, 1, 2, nil)
		assert.ErrorIs(t, err, model.ErrTxConflict)
		assert.Equal(t, 3, store.attempts)
		assert.Equal(t, uint32(10), store.events[1].AvailableSeats)
		assert.Empty(t, store.bookings)
	})

	t.Run("business rejections are not replayed", func(t *testing.T) {
		ev := futureEvent(1, 10, 10, 5000)
		ev.IsActive = false
		store := newFakeStore(ev)
		svc := NewBookingService(store, nil)

		_, err := svc.Reserve(context.Background(), 7, 1, 2, nil)
		assert.ErrorIs(t, err, model.ErrEventUnavailable)
		assert.Equal(t, 1, store.attempts)
	})

	t.Run("stops retrying once the context ends", func(t *testing.T) {
		store := newFakeStore(futureEvent(1, 10, 10, 5000))
		store.txErrs = []error{conflict, conflict, conflict}
		svc := NewBookingService(store, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.Reserve(ctx, 7, 1, 2, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, store.attempts)
	})
}

func TestBookingServiceGetAndList(t *testing.T) {
	store := newFakeStore(futureEvent(1, 10, 10, 5000), futureEvent(2, 20, 20, 2500))
	svc := NewBookingService(store, nil)
	ctx := context.Background()

	mine, err := svc.Reserve(ctx, 1, 1, 2, nil)
	require.NoError(t, err)
	theirs, err := svc.Reserve(ctx, 2, 1, 3, nil)
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, 2, 2, 1, nil)
	require.NoError(t, err)

	t.Run("owner reads own booking", func(t *testing.T) {
		d, err := svc.Get(ctx, 1, false, mine.ID)
		require.NoError(t, err)
		assert.Equal(t, mine.Reference, d.Reference)
		assert.Equal(t, "Go Conference", d.EventTitle)
	})

	t.Run("someone else's booking reads as missing", func(t *testing.T) {
		_, err := svc.Get(ctx, 1, false, theirs.ID)
		assert.ErrorIs(t, err, model.ErrBookingNotFound)
	})

	t.Run("admin reads any booking", func(t *testing.T) {
		d, err := svc.Get(ctx, 99, true, theirs.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), d.UserID)
	})

	t.Run("customer listing is pinned to the principal", func(t *testing.T) {
		out, err := svc.List(ctx, 2, false, ListQuery{UserID: 1})
		require.NoError(t, err)
		require.Len(t, out, 2)
		for _, d := range out {
			assert.Equal(t, uint64(2), d.UserID)
		}
	})

	t.Run("admin listing sees everything and may filter", func(t *testing.T) {
		out, err := svc.List(ctx, 99, true, ListQuery{})
		require.NoError(t, err)
		assert.Len(t, out, 3)

		out, err = svc.List(ctx, 99, true, ListQuery{EventID: 1})
		require.NoError(t, err)
		assert.Len(t, out, 2)

		out, err = svc.List(ctx, 99, true, ListQuery{UserID: 1})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, mine.Reference, out[0].Reference)
	})
}

func TestBookingServiceNotifications(t *testing.T) {
	store := newFakeStore(futureEvent(1, 10, 10, 5000))
	notify := &fakeNotifier{}
	svc := NewBookingService(store, notify)
	ctx := context.Background()

	booked, err := svc.Reserve(ctx, 7, 1, 2, nil)
	require.NoError(t, err)
	require.Len(t, notify.confirmed, 1)
	assert.Equal(t, booked.Reference, notify.confirmed[0].Reference)

	_, err = svc.Reserve(ctx, 7, 1, 1, nil)
	require.Error(t, err)
	assert.Len(t, notify.confirmed, 1)

	_, err = svc.Cancel(ctx, 7, false, booked.ID)
	require.NoError(t, err)
	require.Len(t, notify.cancelled, 1)
	assert.Equal(t, booked.Reference, notify.cancelled[0].Reference)
}

// fakeStore emulates what InnoDB gives the real repository: WithTx
// serializes writers the way the event row lock does, and an error
// rolls the state back to the snapshot taken at begin. Methods named
// ForUpdate plus the writers run under WithTx and rely on its lock;
// the plain reads lock for themselves.
type fakeStore struct {
	mu       sync.Mutex
	events   map[uint64]model.Event
	bookings map[uint64]model.Booking
	nextID   uint64

	txErrs   []error
	attempts int
}

func newFakeStore(events ...model.Event) *fakeStore {
	f := &fakeStore{
		events:   make(map[uint64]model.Event),
		bookings: make(map[uint64]model.Booking),
		nextID:   1,
	}
	for _, ev := range events {
		f.events[ev.ID] = ev
	}
	return f
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if len(f.txErrs) > 0 {
		err := f.txErrs[0]
		f.txErrs = f.txErrs[1:]
		return err
	}
	events := maps.Clone(f.events)
	bookings := maps.Clone(f.bookings)
	nextID := f.nextID
	if err := fn(ctx); err != nil {
		f.events = events
		f.bookings = bookings
		f.nextID = nextID
		return err
	}
	return nil
}

func (f *fakeStore) EventForUpdate(_ context.Context, eventID uint64) (*model.Event, error) {
	ev, ok := f.events[eventID]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	cp := ev
	return &cp, nil
}

func (f *fakeStore) BookingForUpdate(_ context.Context, bookingID uint64) (*model.Booking, error) {
	b, ok := f.bookings[bookingID]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	cp := b
	return &cp, nil
}

func (f *fakeStore) HasActiveBooking(_ context.Context, userID, eventID uint64) (bool, error) {
	for _, b := range f.bookings {
		if b.UserID == userID && b.EventID == eventID && b.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertBooking(_ context.Context, b *model.Booking) error {
	b.ID = f.nextID
	f.nextID++
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	f.bookings[b.ID] = *b
	return nil
}

func (f *fakeStore) MarkBookingCancelled(_ context.Context, bookingID uint64, cancelledAt time.Time) error {
	b, ok := f.bookings[bookingID]
	if !ok {
		return model.ErrBookingNotFound
	}
	b.Status = model.BookingCancelled
	at := cancelledAt
	b.CancelledAt = &at
	f.bookings[bookingID] = b
	return nil
}

func (f *fakeStore) SetAvailableSeats(_ context.Context, eventID uint64, seats uint32) error {
	ev, ok := f.events[eventID]
	if !ok {
		return model.ErrEventNotFound
	}
	ev.AvailableSeats = seats
	f.events[eventID] = ev
	return nil
}

func (f *fakeStore) GetBookingDetail(_ context.Context, bookingID uint64) (*model.BookingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	return f.detail(b), nil
}

func (f *fakeStore) ListBookingDetails(_ context.Context, userID, eventID uint64, limit, offset int) ([]model.BookingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uint64, 0, len(f.bookings))
	for id := range f.bookings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	out := make([]model.BookingDetail, 0, len(ids))
	for _, id := range ids {
		b := f.bookings[id]
		if userID != 0 && b.UserID != userID {
			continue
		}
		if eventID != 0 && b.EventID != eventID {
			continue
		}
		out = append(out, *f.detail(b))
	}
	if limit > 0 {
		if offset >= len(out) {
			return []model.BookingDetail{}, nil
		}
		out = out[offset:]
		if len(out) > limit {
			out = out[:limit]
		}
	}
	return out, nil
}

func (f *fakeStore) detail(b model.Booking) *model.BookingDetail {
	ev := f.events[b.EventID]
	return &model.BookingDetail{
		Booking:         b,
		EventTitle:      ev.Title,
		EventVenue:      ev.Venue,
		EventStartsAt:   ev.StartsAt,
		EventPriceCents: ev.PriceCents,
	}
}

type fakeNotifier struct {
	mu        sync.Mutex
	confirmed []model.BookingDetail
	cancelled []model.BookingDetail
}

func (f *fakeNotifier) BookingConfirmed(d model.BookingDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, d)
}

func (f *fakeNotifier) BookingCancelled(d model.BookingDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, d)
}
