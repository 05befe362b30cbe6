package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/courtcaller/court-booking-engine/internal/handler"
)

// RegisterRoutes registers the operational endpoints on the provided
// Echo instance.  /healthz is used by load balancers and monitoring
// systems to verify that the service and its database are up.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterBookings registers the reservation lifecycle under /v1.
// Identity is asserted by the upstream gateway; no auth middleware
// runs here.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler) {
	g := e.Group("/v1/bookings")
	// Claim a set of slots atomically; 409 when any slot is taken.
	g.POST("", b.Reserve)
	g.GET("", b.List)
	g.GET("/:id", b.Get)
	// Releasing is idempotent; repeating a cancel is a no-op success.
	g.DELETE("/:id", b.Cancel)
	// Payment protocol: start hands back the hosted checkout URL,
	// confirm is the gateway's server-to-server result callback.
	g.POST("/:id/payment", b.StartPayment)
	g.POST("/:id/confirm", b.ConfirmPayment)
}

// RegisterAvailability registers the public calendar endpoints.  These
// are unauthenticated so guests can browse a branch's week before
// committing to a booking.
func RegisterAvailability(e *echo.Echo, a *handler.AvailabilityHandler) {
	e.GET("/v1/branches/:id/availability", a.Week)
}
