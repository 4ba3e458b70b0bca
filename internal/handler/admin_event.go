package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

// AdminEventHandler owns the event catalogue endpoints behind the admin
// role: create, list, partial update, deactivate and delete.
type AdminEventHandler struct {
	Events *repository.EventRepo
}

func NewAdminEventHandler(events *repository.EventRepo) *AdminEventHandler {
	return &AdminEventHandler{Events: events}
}

type adminEventResp struct {
	ID             uint64    `json:"id"`
	Title          string    `json:"title"`
	Venue          string    `json:"venue"`
	Description    *string   `json:"description,omitempty"`
	TotalSeats     uint32    `json:"total_seats"`
	AvailableSeats uint32    `json:"available_seats"`
	PriceCents     uint32    `json:"price_cents"`
	IsActive       bool      `json:"is_active"`
	StartsAt       time.Time `json:"starts_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toAdminEventResp(ev *model.Event) adminEventResp {
	return adminEventResp{
		ID:             ev.ID,
		Title:          ev.Title,
		Venue:          ev.Venue,
		Description:    ev.Description,
		TotalSeats:     ev.TotalSeats,
		AvailableSeats: ev.AvailableSeats,
		PriceCents:     ev.PriceCents,
		IsActive:       ev.IsActive,
		StartsAt:       ev.StartsAt,
		CreatedAt:      ev.CreatedAt,
		UpdatedAt:      ev.UpdatedAt,
	}
}

func eventError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrEventNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrEventHasBookings):
		return c.JSON(http.StatusConflict, echo.Map{"error": "event has bookings; deactivate it instead"})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// CreateEvent handles POST /v1/admin/events. Availability starts equal
// to capacity.
func (h *AdminEventHandler) CreateEvent(c echo.Context) error {
	var body struct {
		Title       string  `json:"title"`
		Venue       string  `json:"venue"`
		Description *string `json:"description"`
		TotalSeats  uint32  `json:"total_seats"`
		PriceCents  uint32  `json:"price_cents"`
		StartsAt    string  `json:"starts_at"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.Title = strings.TrimSpace(body.Title)
	body.Venue = strings.TrimSpace(body.Venue)
	if body.Title == "" || body.Venue == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and venue are required"})
	}
	if body.TotalSeats < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_seats must be at least 1"})
	}
	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(body.StartsAt))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid starts_at format, want RFC3339"})
	}
	if !startsAt.After(time.Now()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be in the future"})
	}
	active := true
	if body.IsActive != nil {
		active = *body.IsActive
	}

	ev := &model.Event{
		Title:       body.Title,
		Venue:       body.Venue,
		Description: body.Description,
		TotalSeats:  body.TotalSeats,
		PriceCents:  body.PriceCents,
		IsActive:    active,
		StartsAt:    startsAt.UTC(),
	}
	if err := h.Events.Create(c.Request().Context(), ev); err != nil {
		return eventError(c, err)
	}
	return c.JSON(http.StatusCreated, toAdminEventResp(ev))
}

// ListEvents handles GET /v1/admin/events: every event regardless of
// state or schedule.
func (h *AdminEventHandler) ListEvents(c echo.Context) error {
	events, err := h.Events.ListAll(c.Request().Context())
	if err != nil {
		return eventError(c, err)
	}
	out := make([]adminEventResp, 0, len(events))
	for i := range events {
		out = append(out, toAdminEventResp(&events[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// UpdateEvent handles PATCH /v1/admin/events/:id. Catalogue fields are
// freely editable; total_seats only while the event has no bookings,
// and changing it resets availability to the new capacity.
func (h *AdminEventHandler) UpdateEvent(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var body struct {
		Title       *string `json:"title"`
		Venue       *string `json:"venue"`
		Description *string `json:"description"`
		TotalSeats  *uint32 `json:"total_seats"`
		PriceCents  *uint32 `json:"price_cents"`
		StartsAt    *string `json:"starts_at"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return eventError(c, err)
	}

	catalogueChange := false
	if body.Title != nil {
		t := strings.TrimSpace(*body.Title)
		if t == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "title cannot be empty"})
		}
		ev.Title = t
		catalogueChange = true
	}
	if body.Venue != nil {
		v := strings.TrimSpace(*body.Venue)
		if v == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "venue cannot be empty"})
		}
		ev.Venue = v
		catalogueChange = true
	}
	if body.Description != nil {
		d := strings.TrimSpace(*body.Description)
		if d == "" {
			ev.Description = nil
		} else {
			ev.Description = &d
		}
		catalogueChange = true
	}
	if body.PriceCents != nil {
		ev.PriceCents = *body.PriceCents
		catalogueChange = true
	}
	if body.StartsAt != nil {
		startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(*body.StartsAt))
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid starts_at format, want RFC3339"})
		}
		if !startsAt.After(time.Now()) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be in the future"})
		}
		ev.StartsAt = startsAt.UTC()
		catalogueChange = true
	}
	if body.IsActive != nil {
		ev.IsActive = *body.IsActive
		catalogueChange = true
	}

	if body.TotalSeats == nil && !catalogueChange {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no fields to update"})
	}

	if body.TotalSeats != nil {
		if *body.TotalSeats < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_seats must be at least 1"})
		}
		if err := h.Events.UpdateCapacity(ctx, id, *body.TotalSeats); err != nil {
			return eventError(c, err)
		}
	}
	if catalogueChange {
		if err := h.Events.Update(ctx, ev); err != nil {
			return eventError(c, err)
		}
	}

	fresh, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return eventError(c, err)
	}
	return c.JSON(http.StatusOK, toAdminEventResp(fresh))
}

// DeactivateEvent handles POST /v1/admin/events/:id/deactivate. Sales
// stop; existing bookings stay cancellable.
func (h *AdminEventHandler) DeactivateEvent(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Events.GetByID(ctx, id); err != nil {
		return eventError(c, err)
	}
	if err := h.Events.SetActive(ctx, id, false); err != nil {
		return eventError(c, err)
	}
	fresh, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return eventError(c, err)
	}
	return c.JSON(http.StatusOK, toAdminEventResp(fresh))
}

// DeleteEvent handles DELETE /v1/admin/events/:id. Works only for
// events that never sold a seat; anything else conflicts because
// booking rows are never removed.
func (h *AdminEventHandler) DeleteEvent(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Events.Delete(c.Request().Context(), id); err != nil {
		return eventError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
