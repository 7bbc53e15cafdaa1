package router

import (
	"github.com/labstack/echo/v4"

	"github.com/vinylverse/storefront/internal/middleware"
)

// RegisterCatalog registers the public listing routes behind the Redis
// response cache. The Discogs lookup is admin only and never cached.
func RegisterCatalog(e *echo.Echo, d Deps) {
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)
	cache := middleware.NewRedisCache(d.Cache, d.Redis)

	e.GET("/listings/discogs", d.Listings.Discogs,
		middleware.JWTAuth(d.JWTSecret), middleware.RequireAdmin(), limit)

	g := e.Group("/listings", limit, cache)
	g.GET("", d.Listings.Search)
	g.GET("/genres", d.Listings.Genres)
	g.GET("/:id", d.Listings.Get)
}
