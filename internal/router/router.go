// Package router registers the storefront's HTTP routes and the edge
// middleware (CORS, request logging, rate limiting, response cache).
package router

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vinylverse/storefront/internal/config"
	"github.com/vinylverse/storefront/internal/handler"
	"github.com/vinylverse/storefront/internal/middleware"
)

// Deps carries everything the routes need.
type Deps struct {
	Log         *zap.Logger
	DB          *sql.DB
	Redis       *redis.Client
	JWTSecret   string
	CORSOrigins []string
	Cache       config.CacheConfig
	RateLimit   config.RateLimitConfig

	Auth     *handler.AuthHandler
	Listings *handler.ListingHandler
	Admin    *handler.AdminHandler
	Carts    *handler.CartHandler
	Checkout *handler.CheckoutHandler
	Contact  *handler.ContactHandler
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: corsOrigins(d.CORSOrigins),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
	}))

	RegisterRoutes(e, d)
	RegisterAuth(e, d)
	RegisterCatalog(e, d)
	RegisterAdmin(e, d)
	RegisterShop(e, d)
	return e
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// RegisterRoutes registers the probes.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/health", handler.Health)
	if d.DB != nil {
		e.GET("/ready", handler.Ready(d.DB))
	}
}
