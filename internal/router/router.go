package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/tixforge/tixforge/internal/config"
	"github.com/tixforge/tixforge/internal/handler"
	"github.com/tixforge/tixforge/internal/middleware"
)

// Handlers bundles everything the route table needs.
type Handlers struct {
	Cart         *handler.CartHandler
	Order        *handler.OrderHandler
	Availability *handler.AvailabilityHandler
	Organizer    *handler.OrganizerHandler
}

// Register wires the complete route table onto the Echo instance.
//
// Three surfaces share the server: unauthenticated public reads, the
// session-scoped shop surface (everything that claims or spends
// capacity requires a cart token and runs behind the rate limiter),
// and the organizer catalog writes.
func Register(e *echo.Echo, h Handlers, jwtSecret string, rdb *redis.Client) {
	e.Use(middleware.RequestMetrics())

	e.GET("/healthz", handler.Health)
	e.GET("/metrics", middleware.MetricsHandler())

	// Public surface: advisory availability and order lookup by code.
	e.GET("/v1/quotas/:id/availability", h.Availability.Get)
	e.GET("/v1/orders/:code", h.Order.Get)

	// Opening a cart is the one shop call that cannot carry a session
	// token yet.
	e.POST("/v1/carts", h.Cart.CreateCart)

	// Everything that claims, extends or spends capacity needs the cart
	// session and is rate limited per shopper.
	shop := e.Group("/v1")
	shop.Use(middleware.CartSession(jwtSecret))
	shop.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	shop.GET("/carts/positions", h.Cart.ListPositions)
	shop.POST("/carts/positions", h.Cart.AddPosition)
	shop.DELETE("/carts/positions/:id", h.Cart.RemovePosition)
	shop.POST("/carts/extend", h.Cart.Extend)

	shop.POST("/orders", h.Order.Checkout)
	shop.POST("/orders/:code/pay", h.Order.Pay)
	shop.POST("/orders/:code/cancel", h.Order.Cancel)

	// Organizer catalog writes.
	org := e.Group("/v1/organizer")
	org.POST("/events", h.Organizer.CreateEvent)
	org.POST("/items", h.Organizer.CreateItem)
	org.POST("/quotas", h.Organizer.CreateQuota)
	org.POST("/vouchers", h.Organizer.CreateVoucher)
}
