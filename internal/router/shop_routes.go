package router

import (
	"github.com/labstack/echo/v4"

	"github.com/vinylverse/storefront/internal/middleware"
)

// RegisterShop registers carts, checkout, orders and the contact form.
// The payment webhook is registered on its own, without auth, rate limit
// or any middleware that reads the body, so the signature is checked over
// the exact bytes received. The guest cart accepts a token when present so
// signed-in callers are logged and rate limited as themselves.
func RegisterShop(e *echo.Echo, d Deps) {
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)
	strict := middleware.NewTokenBucket(d.RateLimit.Strict(), d.Redis, d.Log)
	auth := middleware.JWTAuth(d.JWTSecret)

	e.POST("/checkout/webhook", d.Checkout.Webhook)
	e.POST("/carts/guest", d.Carts.Guest, middleware.OptionalJWT(d.JWTSecret), limit)

	e.GET("/carts", d.Carts.List, auth, limit)
	e.POST("/carts", d.Carts.Add, auth, limit)
	e.DELETE("/carts/:id", d.Carts.Remove, auth, limit)
	e.POST("/carts/migrate", d.Carts.Migrate, auth, limit)

	e.POST("/checkout", d.Checkout.Initiate, auth, limit)
	e.GET("/orders", d.Checkout.Orders, auth, limit)
	e.GET("/orders/session/:sessionId", d.Checkout.OrderBySession, auth, limit)

	e.POST("/contact", d.Contact.Send, auth, strict)
}
