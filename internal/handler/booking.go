package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/service"
)

// Bookings is the service surface the booking endpoints need.
type Bookings interface {
	Reserve(ctx context.Context, userID, eventID uint64, seats uint32, note *string) (*model.BookingDetail, error)
	Cancel(ctx context.Context, principalID uint64, admin bool, bookingID uint64) (*model.BookingDetail, error)
	Get(ctx context.Context, principalID uint64, admin bool, bookingID uint64) (*model.BookingDetail, error)
	List(ctx context.Context, principalID uint64, admin bool, q service.ListQuery) ([]model.BookingDetail, error)
}

// BookingHandler exposes reserve, cancel, detail and listing endpoints.
type BookingHandler struct {
	Svc Bookings
}

func NewBookingHandler(svc Bookings) *BookingHandler {
	return &BookingHandler{Svc: svc}
}

type reserveReq struct {
	EventID   uint64  `json:"event_id"`
	SeatCount uint32  `json:"seat_count"`
	Note      *string `json:"note"`
}

type eventSummary struct {
	ID         uint64    `json:"id"`
	Title      string    `json:"title"`
	Venue      string    `json:"venue"`
	StartsAt   time.Time `json:"starts_at"`
	PriceCents uint32    `json:"price_cents"`
}

type bookingResp struct {
	ID               uint64       `json:"id"`
	Reference        string       `json:"reference"`
	UserID           uint64       `json:"user_id"`
	SeatCount        uint32       `json:"seat_count"`
	TotalAmountCents uint64       `json:"total_amount_cents"`
	Status           string       `json:"status"`
	Note             *string      `json:"note,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	CancelledAt      *time.Time   `json:"cancelled_at,omitempty"`
	Event            eventSummary `json:"event"`
}

func toBookingResp(d *model.BookingDetail) bookingResp {
	return bookingResp{
		ID:               d.ID,
		Reference:        d.Reference,
		UserID:           d.UserID,
		SeatCount:        d.SeatCount,
		TotalAmountCents: d.TotalAmountCents,
		Status:           d.Status,
		Note:             d.Note,
		CreatedAt:        d.CreatedAt,
		CancelledAt:      d.CancelledAt,
		Event: eventSummary{
			ID:         d.EventID,
			Title:      d.EventTitle,
			Venue:      d.EventVenue,
			StartsAt:   d.EventStartsAt,
			PriceCents: d.EventPriceCents,
		},
	}
}

// bookingError maps domain failures onto HTTP responses. Messages come
// from the sentinels themselves so the client sees the same wording the
// service decided on, availability figure included.
func bookingError(c echo.Context, err error) error {
	var insufficient *model.InsufficientSeatsError
	switch {
	case errors.Is(err, model.ErrEventNotFound), errors.Is(err, model.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrEventUnavailable), errors.Is(err, model.ErrDuplicateBooking):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.As(err, &insufficient),
		errors.Is(err, model.ErrInvalidSeatCount),
		errors.Is(err, model.ErrNoteTooLong),
		errors.Is(err, model.ErrAlreadyCancelled),
		errors.Is(err, model.ErrEventStarted):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrTxConflict):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "could not complete the booking, please retry"})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// Reserve books seats on an event for the caller.
func (h *BookingHandler) Reserve(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.EventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id required"})
	}
	if !model.ValidSeatCount(req.SeatCount) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": model.ErrInvalidSeatCount.Error()})
	}
	if req.Note != nil {
		trimmed := strings.TrimSpace(*req.Note)
		if trimmed == "" {
			req.Note = nil
		} else if len(trimmed) > model.MaxNoteLength {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": model.ErrNoteTooLong.Error()})
		} else {
			req.Note = &trimmed
		}
	}

	d, err := h.Svc.Reserve(c.Request().Context(), uid, req.EventID, req.SeatCount, req.Note)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingResp(d))
}

// Cancel cancels a booking and returns it with seats restored to the
// event.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	d, err := h.Svc.Cancel(c.Request().Context(), uid, isAdmin(c), id)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingResp(d))
}

// Get returns one booking visible to the caller.
func (h *BookingHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	d, err := h.Svc.Get(c.Request().Context(), uid, isAdmin(c), id)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingResp(d))
}

// List returns the caller's bookings, newest first. Admins see all
// bookings and may filter with ?user_id= and ?event_id=.
func (h *BookingHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit, offset := pageFromQuery(c)
	q := service.ListQuery{
		UserID:  queryUint(c, "user_id"),
		EventID: queryUint(c, "event_id"),
		Limit:   limit,
		Offset:  offset,
	}

	items, err := h.Svc.List(c.Request().Context(), uid, isAdmin(c), q)
	if err != nil {
		return bookingError(c, err)
	}
	out := make([]bookingResp, 0, len(items))
	for i := range items {
		out = append(out, toBookingResp(&items[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
