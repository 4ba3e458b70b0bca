package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// BookingRepo owns the `bookings` table and the seat accounting on
// `events`. The locked reads and the seat write are meant to run
// inside WithTx; the plain reads serve listings and details from
// committed state.
type BookingRepo struct{ db *sql.DB }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = "id, reference, user_id, event_id, seat_count, total_amount_cents, status, note, created_at, updated_at, cancelled_at"

// WithTx runs fn inside one database transaction; see withTx.
func (r *BookingRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}

// EventForUpdate reads an event row under a FOR UPDATE lock. The lock
// serializes seat mutations for that event until the surrounding
// transaction ends; it is what makes check-then-write on
// available_seats safe.
func (r *BookingRepo) EventForUpdate(ctx context.Context, eventID uint64) (*model.Event, error) {
	ev, err := scanEvent(run(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id=? FOR UPDATE", eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrEventNotFound
	}
	return ev, err
}

// BookingForUpdate reads a booking row under a FOR UPDATE lock so two
// cancellations of the same booking serialize instead of both seeing
// CONFIRMED.
func (r *BookingRepo) BookingForUpdate(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	b, err := scanBooking(run(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id=? FOR UPDATE", bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrBookingNotFound
	}
	return b, err
}

// HasActiveBooking reports whether the user already holds a
// non-cancelled booking for the event.
func (r *BookingRepo) HasActiveBooking(ctx context.Context, userID, eventID uint64) (bool, error) {
	var one int
	err := run(ctx, r.db).QueryRowContext(ctx,
		"SELECT 1 FROM bookings WHERE user_id=? AND event_id=? AND status <> ? LIMIT 1",
		userID, eventID, model.BookingCancelled).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertBooking writes a new booking and reads the stored row back so
// timestamps and defaults are populated. The duplicate guard runs
// before this under the event lock; the unique index on the active
// (user, event) pair is the last line of defense and also maps to
// model.ErrDuplicateBooking.
func (r *BookingRepo) InsertBooking(ctx context.Context, b *model.Booking) error {
	res, err := run(ctx, r.db).ExecContext(ctx,
		`INSERT INTO bookings (reference, user_id, event_id, seat_count, total_amount_cents, status, note)
		 VALUES (?,?,?,?,?,?,?)`,
		b.Reference, b.UserID, b.EventID, b.SeatCount, b.TotalAmountCents, b.Status, b.Note)
	if err != nil {
		if isDuplicateKey(err) {
			return model.ErrDuplicateBooking
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.getByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*b = *stored
	return nil
}

// MarkBookingCancelled flips the row to CANCELLED. The caller holds
// the booking row lock and has already verified the current status.
func (r *BookingRepo) MarkBookingCancelled(ctx context.Context, bookingID uint64, cancelledAt time.Time) error {
	_, err := run(ctx, r.db).ExecContext(ctx,
		"UPDATE bookings SET status=?, cancelled_at=? WHERE id=?",
		model.BookingCancelled, cancelledAt.UTC(), bookingID)
	return err
}

// SetAvailableSeats writes an absolute seat count computed from the
// locked read. A blind relative decrement could mask a lost update;
// writing the derived value keeps the arithmetic in one place and lets
// the CHECK constraint on the table catch anything out of range.
func (r *BookingRepo) SetAvailableSeats(ctx context.Context, eventID uint64, seats uint32) error {
	_, err := run(ctx, r.db).ExecContext(ctx,
		"UPDATE events SET available_seats=? WHERE id=?", seats, eventID)
	return err
}

func (r *BookingRepo) getByID(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(run(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id=?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrBookingNotFound
	}
	return b, err
}

func scanBooking(s interface{ Scan(dest ...any) error }) (*model.Booking, error) {
	var b model.Booking
	var note sql.NullString
	var cancelledAt sql.NullTime
	if err := s.Scan(&b.ID, &b.Reference, &b.UserID, &b.EventID, &b.SeatCount, &b.TotalAmountCents,
		&b.Status, &note, &b.CreatedAt, &b.UpdatedAt, &cancelledAt); err != nil {
		return nil, err
	}
	if note.Valid {
		n := note.String
		b.Note = &n
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		b.CancelledAt = &t
	}
	return &b, nil
}

const detailColumns = `b.id, b.reference, b.user_id, b.event_id, b.seat_count, b.total_amount_cents,
       b.status, b.note, b.created_at, b.updated_at, b.cancelled_at,
       e.title, e.venue, e.starts_at, e.price_cents`

func scanBookingDetail(s interface{ Scan(dest ...any) error }) (*model.BookingDetail, error) {
	var d model.BookingDetail
	var note sql.NullString
	var cancelledAt sql.NullTime
	if err := s.Scan(&d.ID, &d.Reference, &d.UserID, &d.EventID, &d.SeatCount, &d.TotalAmountCents,
		&d.Status, &note, &d.CreatedAt, &d.UpdatedAt, &cancelledAt,
		&d.EventTitle, &d.EventVenue, &d.EventStartsAt, &d.EventPriceCents); err != nil {
		return nil, err
	}
	if note.Valid {
		n := note.String
		d.Note = &n
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		d.CancelledAt = &t
	}
	return &d, nil
}

// GetBookingDetail returns one booking joined with its event summary,
// or model.ErrBookingNotFound. Visibility is the caller's problem; the
// service hides rows that do not belong to the principal.
func (r *BookingRepo) GetBookingDetail(ctx context.Context, bookingID uint64) (*model.BookingDetail, error) {
	d, err := scanBookingDetail(r.db.QueryRowContext(ctx,
		"SELECT "+detailColumns+" FROM bookings b JOIN events e ON e.id = b.event_id WHERE b.id=?",
		bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrBookingNotFound
	}
	return d, err
}

// ListBookingDetails returns bookings joined with event summaries,
// newest first. A zero userID or eventID disables that filter; a
// non-positive limit disables paging.
func (r *BookingRepo) ListBookingDetails(ctx context.Context, userID, eventID uint64, limit, offset int) ([]model.BookingDetail, error) {
	query := "SELECT " + detailColumns + " FROM bookings b JOIN events e ON e.id = b.event_id"
	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if userID != 0 {
		where = append(where, "b.user_id = ?")
		args = append(args, userID)
	}
	if eventID != 0 {
		where = append(where, "b.event_id = ?")
		args = append(args, eventID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY b.created_at DESC, b.id DESC"
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.BookingDetail, 0)
	for rows.Next() {
		d, err := scanBookingDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
