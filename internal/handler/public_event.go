package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

// PublicEventHandler serves the unauthenticated event catalogue. Only
// active upcoming events are exposed and capacity totals stay hidden;
// customers see what is left, not how much there ever was.
type PublicEventHandler struct {
	Events *repository.EventRepo
}

func NewPublicEventHandler(events *repository.EventRepo) *PublicEventHandler {
	return &PublicEventHandler{Events: events}
}

type publicEventResp struct {
	ID             uint64    `json:"id"`
	Title          string    `json:"title"`
	Venue          string    `json:"venue"`
	Description    *string   `json:"description,omitempty"`
	PriceCents     uint32    `json:"price_cents"`
	AvailableSeats uint32    `json:"available_seats"`
	StartsAt       time.Time `json:"starts_at"`
}

func toPublicEventResp(ev *model.Event) publicEventResp {
	return publicEventResp{
		ID:             ev.ID,
		Title:          ev.Title,
		Venue:          ev.Venue,
		Description:    ev.Description,
		PriceCents:     ev.PriceCents,
		AvailableSeats: ev.AvailableSeats,
		StartsAt:       ev.StartsAt,
	}
}

// ListEvents handles GET /v1/events: active events that have not
// started yet, soonest first.
func (h *PublicEventHandler) ListEvents(c echo.Context) error {
	limit, offset := pageFromQuery(c)
	events, err := h.Events.ListUpcoming(c.Request().Context(), time.Now(), limit, offset)
	if err != nil {
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	out := make([]publicEventResp, 0, len(events))
	for i := range events {
		out = append(out, toPublicEventResp(&events[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetEvent handles GET /v1/events/:id. Deactivated events are hidden
// from the public listing, so a direct fetch hides them too. Started
// events stay visible; their page may still be linked from a ticket.
func (h *PublicEventHandler) GetEvent(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ev, err := h.Events.GetByID(c.Request().Context(), id)
	if err != nil {
		return eventError(c, err)
	}
	if !ev.IsActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": model.ErrEventNotFound.Error()})
	}
	return c.JSON(http.StatusOK, toPublicEventResp(ev))
}
