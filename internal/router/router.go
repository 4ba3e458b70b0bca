// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-booking/internal/handler"
	"github.com/iliyamo/event-ticket-booking/internal/middleware"
	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// RegisterHealth exposes the liveness probe.
func RegisterHealth(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth mounts the session endpoints under /v1/auth. Register,
// login and the two refresh flows are open; me, logout and logout-all
// need a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	open := e.Group("/v1/auth")
	open.POST("/register", a.Register)
	open.POST("/login", a.Login)
	open.POST("/refresh", a.Refresh)
	open.POST("/refresh-access", a.RefreshAccess)

	authed := e.Group("/v1/auth", middleware.JWTAuth(jwtSecret))
	authed.GET("/me", a.Me)
	authed.POST("/logout", a.Logout)
	authed.POST("/logout-all", a.LogoutAll)
}

// RegisterPublic mounts the unauthenticated catalogue. Extra middleware
// (rate limiting, response cache) applies to these routes only; the
// rest of the API stays uncached.
func RegisterPublic(e *echo.Echo, p *handler.PublicEventHandler, mws ...echo.MiddlewareFunc) {
	g := e.Group("/v1/events", mws...)
	g.GET("", p.ListEvents)
	g.GET("/:id", p.GetEvent)
}

// RegisterBookings mounts the booking endpoints for authenticated
// customers and admins.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1/bookings",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleCustomer),
	)
	g.POST("", b.Reserve)
	g.GET("", b.List)
	g.GET("/:id", b.Get)
	g.POST("/:id/cancel", b.Cancel)
}

// RegisterAdmin mounts event management, admin role only.
func RegisterAdmin(e *echo.Echo, h *handler.AdminEventHandler, jwtSecret string) {
	g := e.Group("/v1/admin/events",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("", h.CreateEvent)
	g.GET("", h.ListEvents)
	g.PATCH("/:id", h.UpdateEvent)
	g.POST("/:id/deactivate", h.DeactivateEvent)
	g.DELETE("/:id", h.DeleteEvent)
}
