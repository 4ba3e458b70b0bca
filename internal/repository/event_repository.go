package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// EventRepo provides catalogue access to the `events` table for admin
// CRUD and public browsing. It stays away from seat accounting: once
// an event has bookings, available_seats is only ever written by
// BookingRepo inside a transaction that also writes the booking row.
type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = "id, title, venue, description, total_seats, available_seats, price_cents, is_active, starts_at, created_at, updated_at"

// scanEvent reads one event row from either *sql.Row or *sql.Rows.
func scanEvent(s interface{ Scan(dest ...any) error }) (*model.Event, error) {
	var ev model.Event
	var desc sql.NullString
	if err := s.Scan(&ev.ID, &ev.Title, &ev.Venue, &desc, &ev.TotalSeats, &ev.AvailableSeats,
		&ev.PriceCents, &ev.IsActive, &ev.StartsAt, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
		return nil, err
	}
	if desc.Valid {
		d := desc.String
		ev.Description = &d
	}
	return &ev, nil
}

// Create inserts an event with available_seats equal to total_seats and
// reads the stored row back so defaults and timestamps are populated.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO events (title, venue, description, total_seats, available_seats, price_cents, is_active, starts_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		ev.Title, ev.Venue, ev.Description, ev.TotalSeats, ev.TotalSeats, ev.PriceCents, ev.IsActive, ev.StartsAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*ev = *stored
	return nil
}

// GetByID returns one event or model.ErrEventNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	ev, err := scanEvent(r.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id=?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrEventNotFound
	}
	return ev, err
}

// ListUpcoming returns active events that start after now, soonest
// first, paged by limit and offset.
func (r *EventRepo) ListUpcoming(ctx context.Context, now time.Time, limit, offset int) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE is_active=1 AND starts_at > ? ORDER BY starts_at, id LIMIT ? OFFSET ?",
		now.UTC(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListAll returns every event regardless of state, newest schedule
// first. Used by the admin catalogue.
func (r *EventRepo) ListAll(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events ORDER BY starts_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]model.Event, error) {
	out := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

// Update rewrites title, venue, description, price, start time and the
// active flag. Seat counters are not touched here; capacity changes go
// through UpdateCapacity.
func (r *EventRepo) Update(ctx context.Context, ev *model.Event) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE events SET title=?, venue=?, description=?, price_cents=?, is_active=?, starts_at=? WHERE id=?",
		ev.Title, ev.Venue, ev.Description, ev.PriceCents, ev.IsActive, ev.StartsAt.UTC(), ev.ID)
	return err
}

// UpdateCapacity changes total_seats on an event without bookings,
// resetting available_seats to the new capacity. The row lock keeps a
// concurrent reserve from slipping a booking between the check and the
// write.
func (r *EventRepo) UpdateCapacity(ctx context.Context, id uint64, totalSeats uint32) error {
	return withTx(ctx, r.db, func(ctx context.Context) error {
		q := run(ctx, r.db)
		var probe uint64
		err := q.QueryRowContext(ctx, "SELECT id FROM events WHERE id=? FOR UPDATE", id).Scan(&probe)
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrEventNotFound
		}
		if err != nil {
			return err
		}
		var n int
		if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings WHERE event_id=?", id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return model.ErrEventHasBookings
		}
		_, err = q.ExecContext(ctx,
			"UPDATE events SET total_seats=?, available_seats=? WHERE id=?", totalSeats, totalSeats, id)
		return err
	})
}

// SetActive flips the sale flag. Deactivating stops new bookings while
// existing ones stay cancellable.
func (r *EventRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	_, err := r.db.ExecContext(ctx, "UPDATE events SET is_active=? WHERE id=?", active, id)
	return err
}

// Delete removes an event that has no bookings at all. Bookings are
// never deleted, so an event that ever sold a seat can only be
// deactivated; attempting to delete it returns
// model.ErrEventHasBookings.
func (r *EventRepo) Delete(ctx context.Context, id uint64) error {
	return withTx(ctx, r.db, func(ctx context.Context) error {
		q := run(ctx, r.db)
		var probe uint64
		err := q.QueryRowContext(ctx, "SELECT id FROM events WHERE id=? FOR UPDATE", id).Scan(&probe)
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrEventNotFound
		}
		if err != nil {
			return err
		}
		var n int
		if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings WHERE event_id=?", id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return model.ErrEventHasBookings
		}
		_, err = q.ExecContext(ctx, "DELETE FROM events WHERE id=?", id)
		return err
	})
}
