package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vinylverse/storefront/internal/config"
	"github.com/vinylverse/storefront/internal/handler"
	"github.com/vinylverse/storefront/internal/model"
	"github.com/vinylverse/storefront/internal/service"
	"github.com/vinylverse/storefront/internal/utils"
)

const secret = "router-secret"

func testServer() *echo.Echo {
	return New(Deps{
		Log:       zap.NewNop(),
		JWTSecret: secret,
		Cache:     config.CacheConfig{Enabled: true},
		RateLimit: config.RateLimitConfig{Enabled: true, Capacity: 5, StrictCapacity: 2, Prefix: "vv:rl"},
		Auth:      &handler.AuthHandler{},
		Listings:  &handler.ListingHandler{},
		Admin:     &handler.AdminHandler{},
		Carts:     &handler.CartHandler{},
		Checkout:  &handler.CheckoutHandler{},
		Contact:   &handler.ContactHandler{},
	})
}

func TestRoutesRegistered(t *testing.T) {
	e := testServer()
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	want := []string{
		"GET /health",
		"POST /auth/signup", "POST /auth/login", "POST /auth/google-login", "POST /auth/refresh",
		"POST /auth/logout", "GET /auth/me", "PATCH /auth/email", "PATCH /auth/password", "DELETE /auth/delete",
		"GET /listings", "GET /listings/genres", "GET /listings/discogs", "GET /listings/:id",
		"POST /admin/listings", "PUT /admin/listings/:id", "DELETE /admin/listings/:id",
		"GET /admin/orders/:id", "GET /admin/users/lookup",
		"GET /carts", "POST /carts", "DELETE /carts/:id", "POST /carts/guest", "POST /carts/migrate",
		"POST /checkout", "POST /checkout/webhook",
		"GET /orders", "GET /orders/session/:sessionId",
		"POST /contact",
	}
	for _, w := range want {
		assert.True(t, have[w], w)
	}
}

func request(e *echo.Echo, method, path, auth string) int {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestGuards(t *testing.T) {
	e := testServer()
	tok, err := utils.NewAccessToken(secret, model.Identity{UserID: 4}, 5)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, request(e, http.MethodGet, "/health", ""))
	assert.Equal(t, http.StatusUnauthorized, request(e, http.MethodGet, "/carts", ""))
	assert.Equal(t, http.StatusUnauthorized, request(e, http.MethodPost, "/checkout", ""))
	assert.Equal(t, http.StatusUnauthorized, request(e, http.MethodGet, "/admin/orders/1", ""))
	assert.Equal(t, http.StatusForbidden, request(e, http.MethodGet, "/admin/orders/1", "Bearer "+tok.Token))
	assert.Equal(t, http.StatusForbidden, request(e, http.MethodGet, "/listings/discogs?upc=1", "Bearer "+tok.Token))
}

func TestCORSDefaultsToAnyOrigin(t *testing.T) {
	assert.Equal(t, []string{"*"}, corsOrigins(nil))
	assert.Equal(t, []string{"https://shop.test"}, corsOrigins([]string{"https://shop.test"}))
}

type guestCatalog struct{}

func (guestCatalog) GetByID(context.Context, uint64) (model.Listing, error) {
	return model.Listing{ID: 7, Title: "Mingus Ah Um", Price: 40}, nil
}

func (guestCatalog) GetByIDs(context.Context, []uint64) ([]model.Listing, error) {
	return []model.Listing{{ID: 7, Title: "Mingus Ah Um", Price: 40}}, nil
}

func TestGuestCartResolvesOptionalIdentity(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	e := New(Deps{
		Log:       zap.New(core),
		JWTSecret: secret,
		Carts:     handler.NewCartHandler(service.NewCartService(guestCatalog{}, nil, nil)),
		Auth:      &handler.AuthHandler{},
		Listings:  &handler.ListingHandler{},
		Admin:     &handler.AdminHandler{},
		Checkout:  &handler.CheckoutHandler{},
		Contact:   &handler.ContactHandler{},
	})
	tok, err := utils.NewAccessToken(secret, model.Identity{UserID: 4}, 5)
	require.NoError(t, err)

	post := func(auth string) int {
		req := httptest.NewRequest(http.MethodPost, "/carts/guest", strings.NewReader(`{"listingIds":[7]}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		if auth != "" {
			req.Header.Set(echo.HeaderAuthorization, auth)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, post(""))
	assert.Equal(t, http.StatusOK, post("Bearer junk"))
	assert.Equal(t, http.StatusOK, post("Bearer "+tok.Token))

	var users []string
	for _, entry := range logs.FilterMessage("request").All() {
		users = append(users, entry.ContextMap()["user"].(string))
	}
	assert.Equal(t, []string{"guest", "guest", "4"}, users)
}
