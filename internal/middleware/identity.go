package middleware

// identity.go holds the context plumbing shared by the auth, rate limit and
// cache middleware. JWTAuth stores the caller's model.Identity under
// identityKey; handlers read it back with CurrentIdentity.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/vinylverse/storefront/internal/model"
)

const identityKey = "identity"

// SetIdentity stores id on the request context.
func SetIdentity(c echo.Context, id model.Identity) { c.Set(identityKey, id) }

// CurrentIdentity returns the authenticated caller, if any.
func CurrentIdentity(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok && id.UserID != 0
}

// userID returns the caller's id as a string, or "guest".
func userID(c echo.Context) string {
	if id, ok := CurrentIdentity(c); ok {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "guest"
}
