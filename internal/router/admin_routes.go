package router

import (
	"github.com/labstack/echo/v4"

	"github.com/vinylverse/storefront/internal/middleware"
)

// RegisterAdmin registers /admin. Every route requires an admin token;
// successful catalog writes purge the listing cache.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/admin",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireAdmin(),
	)
	purge := middleware.PurgeOnWrite(d.Cache, d.Redis, d.Log)

	g.POST("/listings", d.Admin.CreateListing, purge)
	g.PUT("/listings/:id", d.Admin.UpdateListing, purge)
	g.DELETE("/listings/:id", d.Admin.DeleteListing, purge)
	g.GET("/orders/:id", d.Admin.GetOrder)
	g.GET("/users/lookup", d.Admin.LookupUser)
}
