package router

import (
	"github.com/labstack/echo/v4"

	"github.com/vinylverse/storefront/internal/middleware"
)

// RegisterAuth registers /auth. Credential endpoints draw from the strict
// rate limit bucket; account settings require a bearer token.
func RegisterAuth(e *echo.Echo, d Deps) {
	strict := middleware.NewTokenBucket(d.RateLimit.Strict(), d.Redis, d.Log)
	g := e.Group("/auth")
	g.POST("/signup", d.Auth.Signup, strict)
	g.POST("/login", d.Auth.Login, strict)
	g.POST("/google-login", d.Auth.GoogleLogin, strict)
	g.POST("/refresh", d.Auth.Refresh, strict)

	user := e.Group("/auth", middleware.JWTAuth(d.JWTSecret))
	user.POST("/logout", d.Auth.Logout)
	user.GET("/me", d.Auth.Me)
	user.PATCH("/email", d.Auth.ChangeEmail)
	user.PATCH("/password", d.Auth.ChangePassword, strict)
	user.DELETE("/delete", d.Auth.Delete, strict)
}
