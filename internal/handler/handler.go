// Package handler exposes the storefront services over HTTP with echo.
// Handlers bind and validate input, bound their work with a timeout and
// translate service errors into JSON error bodies.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/vinylverse/storefront/internal/catalog"
	"github.com/vinylverse/storefront/internal/identity"
	"github.com/vinylverse/storefront/internal/middleware"
	"github.com/vinylverse/storefront/internal/model"
	"github.com/vinylverse/storefront/internal/observability"
	"github.com/vinylverse/storefront/internal/payment"
	"github.com/vinylverse/storefront/internal/repository"
	"github.com/vinylverse/storefront/internal/service"
)

const requestTimeout = 5 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// caller returns the identity JWTAuth stored on the context.
func caller(c echo.Context) (model.Identity, bool) {
	return middleware.CurrentIdentity(c)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
}

func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// statusFor maps a service or repository error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, catalog.ErrNoMatch):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, identity.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrCartEmpty),
		errors.Is(err, payment.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrConflict), errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrAccountExists), errors.Is(err, service.ErrListingUnavailable):
		return http.StatusConflict
	case errors.Is(err, service.ErrPaymentUpstream):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrPaymentsDisabled), errors.Is(err, identity.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. Internal errors are logged and their
// details withheld from the client.
func fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		observability.FromContext(c.Request().Context()).Error("request failed",
			zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
		if status == http.StatusInternalServerError {
			return c.JSON(status, echo.Map{"error": "internal error"})
		}
	}
	body := echo.Map{"error": err.Error()}
	if errors.Is(err, service.ErrAccountExists) {
		body["errorCode"] = "ACCOUNT_EXISTS"
	}
	return c.JSON(status, body)
}
