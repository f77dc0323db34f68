package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/bus-seat-reservation/internal/config"
	"github.com/iliyamo/bus-seat-reservation/internal/handler"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

// Handlers bundles the constructed handlers the routes dispatch to.
type Handlers struct {
	Departures   *handler.DepartureHandler
	Reservations *handler.ReservationHandler
	Bookings     *handler.BookingHandler
	Payments     *handler.PaymentHandler
}

// RegisterRoutes wires the whole HTTP surface onto the Echo instance.
//
// Public browse endpoints sit behind the Redis response cache so the
// seat-map snapshot can be served hot; everything that mutates state
// requires a JWT and is rate limited. The provider callback is
// unauthenticated on purpose: it carries its own HMAC signature and is
// verified inside the handler.
func RegisterRoutes(e *echo.Echo, h Handlers, cfg config.Config, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	// Public browse surface.
	pub := e.Group("/v1", cache)
	pub.GET("/departures", h.Departures.ListDepartures)
	pub.GET("/departures/:id/seats", h.Departures.GetSeatMap)

	// Customer surface: any authenticated role.
	auth := e.Group("/v1", limiter, middleware.JWTAuth(cfg.JWTSecret))
	auth.Use(middleware.RequireRole(service.RoleCustomer, service.RoleOperator))
	auth.POST("/departures/:id/reservations", h.Reservations.Reserve)
	auth.GET("/bookings/:id", h.Bookings.GetBooking)
	auth.DELETE("/bookings/:id", h.Bookings.CancelBooking)
	auth.POST("/bookings/:id/pay", h.Payments.Pay)
	auth.POST("/bookings/:id/verify", h.Payments.Verify)

	// Operator surface.
	op := e.Group("/v1", limiter, middleware.JWTAuth(cfg.JWTSecret))
	op.Use(middleware.RequireRole(service.RoleOperator))
	op.POST("/departures", h.Departures.CreateDeparture)

	// Provider callback: signature-authenticated, not JWT.
	e.POST("/v1/payments/callback", h.Payments.Callback, limiter)
}
