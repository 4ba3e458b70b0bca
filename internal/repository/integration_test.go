package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-booking/internal/database"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/service"
)

// These tests need a real MySQL instance because the reservation flow
// leans on InnoDB row locks. Set TEST_DATABASE_DSN to run them; without
// a reachable server they skip.

const defaultTestDSN = "root@tcp(localhost:3306)/event_ticket_test?charset=utf8mb4&parseTime=true&loc=UTC"

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = defaultTestDSN
	}

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Skipf("skipping MySQL integration tests: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	defer cancelMigrate()
	require.NoError(t, database.Migrate(migrateCtx, db))

	truncateAll(t, db)
	return db
}

func truncateAll(t *testing.T, db *sql.DB) {
	t.Helper()
	mustExec(t, db, "SET FOREIGN_KEY_CHECKS=0")
	for _, table := range []string{"bookings", "events", "refresh_tokens", "users"} {
		mustExec(t, db, "TRUNCATE TABLE "+table)
	}
	mustExec(t, db, "SET FOREIGN_KEY_CHECKS=1")
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...interface{}) {
	t.Helper()
	_, err := db.Exec(query, args...)
	require.NoError(t, err, query)
}

func seedUser(t *testing.T, db *sql.DB, email string) uint64 {
	t.Helper()
	res, err := db.Exec(
		"INSERT INTO users (email, password_hash, full_name, role) VALUES (?,?,?,?)",
		email, "x", "Test User", model.RoleCustomer)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}

func seedEvent(t *testing.T, db *sql.DB, totalSeats, priceCents uint32, startsAt time.Time) uint64 {
	t.Helper()
	res, err := db.Exec(
		"INSERT INTO events (title, venue, total_seats, available_seats, price_cents, is_active, starts_at) VALUES (?,?,?,?,?,?,?)",
		"Go Conference", "Main Hall", totalSeats, totalSeats, priceCents, true, startsAt.UTC())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}

func seatSum(t *testing.T, db *sql.DB, eventID uint64) uint32 {
	t.Helper()
	var sum sql.NullInt64
	require.NoError(t, db.QueryRow(
		"SELECT SUM(seat_count) FROM bookings WHERE event_id = ? AND status <> ?",
		eventID, model.BookingCancelled).Scan(&sum))
	return uint32(sum.Int64)
}

func TestBookingRepoReserveAndCancel(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepo(db)
	ctx := context.Background()

	userID := seedUser(t, db, "alice@example.com")
	eventID := seedEvent(t, db, 10, 5000, time.Now().Add(24*time.Hour))

	note := "aisle please"
	var booked model.Booking
	err := repo.WithTx(ctx, func(ctx context.Context) error {
		ev, err := repo.EventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		remaining, err := ev.TakeSeats(4)
		if err != nil {
			return err
		}
		booked = model.Booking{
			Reference:        uuid.NewString(),
			UserID:           userID,
			EventID:          eventID,
			SeatCount:        4,
			TotalAmountCents: ev.PriceFor(4),
			Status:           model.BookingConfirmed,
			Note:             &note,
		}
		if err := repo.InsertBooking(ctx, &booked); err != nil {
			return err
		}
		return repo.SetAvailableSeats(ctx, eventID, remaining)
	})
	require.NoError(t, err)
	require.NotZero(t, booked.ID)
	assert.Equal(t, uint64(20000), booked.TotalAmountCents)

	active, err := repo.HasActiveBooking(ctx, userID, eventID)
	require.NoError(t, err)
	assert.True(t, active)

	d, err := repo.GetBookingDetail(ctx, booked.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go Conference", d.EventTitle)
	assert.Equal(t, "Main Hall", d.EventVenue)
	assert.Equal(t, uint32(5000), d.EventPriceCents)
	require.NotNil(t, d.Note)
	assert.Equal(t, note, *d.Note)

	// A second active booking for the same pair trips the unique index.
	err = repo.WithTx(ctx, func(ctx context.Context) error {
		dup := model.Booking{
			Reference: uuid.NewString(),
			UserID:    userID,
			EventID:   eventID,
			SeatCount: 1, TotalAmountCents: 5000,
			Status: model.BookingConfirmed,
		}
		return repo.InsertBooking(ctx, &dup)
	})
	require.ErrorIs(t, err, model.ErrDuplicateBooking)

	err = repo.WithTx(ctx, func(ctx context.Context) error {
		b, err := repo.BookingForUpdate(ctx, booked.ID)
		if err != nil {
			return err
		}
		ev, err := repo.EventForUpdate(ctx, b.EventID)
		if err != nil {
			return err
		}
		restored, err := ev.ReturnSeats(b.SeatCount)
		if err != nil {
			return err
		}
		if err := repo.MarkBookingCancelled(ctx, b.ID, time.Now()); err != nil {
			return err
		}
		return repo.SetAvailableSeats(ctx, b.EventID, restored)
	})
	require.NoError(t, err)

	active, err = repo.HasActiveBooking(ctx, userID, eventID)
	require.NoError(t, err)
	assert.False(t, active, "cancelled bookings no longer block rebooking")

	events := NewEventRepo(db)
	ev, err := events.GetByID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), ev.AvailableSeats)

	items, err := repo.ListBookingDetails(ctx, userID, 0, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.BookingCancelled, items[0].Status)
	assert.NotNil(t, items[0].CancelledAt)
}

// TestBookingServiceConcurrentReservesOnMySQL races real transactions
// for the last seats. The row lock serializes them: no oversell, and
// everyone who loses sees the availability that was actually left.
func TestBookingServiceConcurrentReservesOnMySQL(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepo(db)
	svc := service.NewBookingService(repo, nil)
	ctx := context.Background()

	const seats, contenders = 5, 10
	eventID := seedEvent(t, db, seats, 5000, time.Now().Add(24*time.Hour))
	userIDs := make([]uint64, contenders)
	for i := range userIDs {
		userIDs[i] = seedUser(t, db, fmt.Sprintf("user%d@example.com", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Reserve(ctx, userIDs[i], eventID, 1, nil)
		}(i)
	}
	close(start)
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			var insufficient *model.InsufficientSeatsError
			require.ErrorAs(t, err, &insufficient)
			losses++
		}
	}
	assert.Equal(t, seats, wins)
	assert.Equal(t, contenders-seats, losses)

	events := NewEventRepo(db)
	ev, err := events.GetByID(ctx, eventID)
	require.NoError(t, err)
	assert.Zero(t, ev.AvailableSeats)
	assert.Equal(t, ev.TotalSeats-ev.AvailableSeats, seatSum(t, db, eventID),
		"sold seats must equal the sum over non-cancelled bookings")
}

func TestEventRepoCapacityGuardsOnMySQL(t *testing.T) {
	db := testDB(t)
	events := NewEventRepo(db)
	bookings := NewBookingRepo(db)
	svc := service.NewBookingService(bookings, nil)
	ctx := context.Background()

	userID := seedUser(t, db, "carol@example.com")
	eventID := seedEvent(t, db, 10, 5000, time.Now().Add(24*time.Hour))

	require.NoError(t, events.UpdateCapacity(ctx, eventID, 20),
		"capacity is editable while the event has no bookings")
	ev, err := events.GetByID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, uint32(20), ev.TotalSeats)
	assert.Equal(t, uint32(20), ev.AvailableSeats)

	booked, err := svc.Reserve(ctx, userID, eventID, 2, nil)
	require.NoError(t, err)

	require.ErrorIs(t, events.UpdateCapacity(ctx, eventID, 30), model.ErrEventHasBookings)
	require.ErrorIs(t, events.Delete(ctx, eventID), model.ErrEventHasBookings)

	_, err = svc.Cancel(ctx, userID, false, booked.ID)
	require.NoError(t, err)

	// Cancelled rows keep their history, so the guards still hold.
	require.ErrorIs(t, events.UpdateCapacity(ctx, eventID, 30), model.ErrEventHasBookings)
	require.ErrorIs(t, events.Delete(ctx, eventID), model.ErrEventHasBookings)

	require.ErrorIs(t, events.Delete(ctx, 99999), model.ErrEventNotFound)
}

func TestUserAndTokenReposOnMySQL(t *testing.T) {
	db := testDB(t)
	users := NewUserRepo(db)
	tokens := NewTokenRepo(db)
	ctx := context.Background()

	id, err := users.Create(ctx, "dave@example.com", "hash", "Dave", model.RoleCustomer)
	require.NoError(t, err)
	_, err = users.Create(ctx, "dave@example.com", "hash", "Dave Again", model.RoleCustomer)
	require.ErrorIs(t, err, ErrEmailExists)

	u, err := users.GetByEmail(ctx, "dave@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.True(t, u.IsActive)

	require.NoError(t, users.EnsureAdmin(ctx, "admin@example.com", "adminhash"))
	require.NoError(t, users.EnsureAdmin(ctx, "admin@example.com", "otherhash"),
		"seeding twice is a no-op")
	admin, err := users.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role)
	assert.Equal(t, "adminhash", admin.PasswordHash, "existing admin is left untouched")

	hash := "a1b2c3"
	require.NoError(t, tokens.StoreRefresh(ctx, id, hash, time.Now().Add(time.Hour)))
	owner, err := tokens.ValidateRefresh(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, id, owner)

	require.NoError(t, tokens.RevokeByHash(ctx, hash))
	_, err = tokens.ValidateRefresh(ctx, hash)
	require.ErrorIs(t, err, sql.ErrNoRows)

	expired := "expiredhash"
	require.NoError(t, tokens.StoreRefresh(ctx, id, expired, time.Now().Add(-time.Hour)))
	_, err = tokens.ValidateRefresh(ctx, expired)
	require.ErrorIs(t, err, sql.ErrNoRows)
}
