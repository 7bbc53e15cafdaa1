package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/vinylverse/storefront/internal/model"
	"github.com/vinylverse/storefront/internal/observability"
	"github.com/vinylverse/storefront/internal/payment"
	"github.com/vinylverse/storefront/internal/service"
)

// maxWebhookBody caps the payload read from the payment provider.
const maxWebhookBody = 1 << 16

// CheckoutHandler serves checkout, the payment webhook and order lookups.
type CheckoutHandler struct {
	Checkout *service.CheckoutService
}

func NewCheckoutHandler(checkout *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{Checkout: checkout}
}

// Initiate starts checkout with the shipping fields from the body. The
// response carries {url, sessionId} for hosted payment or {order} when
// the order was placed directly.
func (h *CheckoutHandler) Initiate(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var ship model.Shipping
	if err := c.Bind(&ship); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Checkout.Initiate(ctx, id, ship)
	if err != nil {
		return fail(c, err)
	}
	if res.Order != nil {
		return c.JSON(http.StatusCreated, res)
	}
	return c.JSON(http.StatusOK, res)
}

// Webhook verifies the signature over the raw body before anything else.
// Persistence failures answer 500 so the provider retries.
func (h *CheckoutHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "unreadable body")
	}
	sig := c.Request().Header.Get("Stripe-Signature")
	if sig == "" {
		return badRequest(c, "missing signature")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Checkout.HandleWebhook(ctx, payload, sig)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			observability.FromContext(c.Request().Context()).Warn("webhook signature rejected")
		}
		return fail(c, err)
	}
	if res.Order != nil {
		observability.FromContext(c.Request().Context()).Info("webhook created order", zap.Uint64("order_id", res.Order.ID))
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true, "type": res.EventType})
}

// Orders lists the caller's orders, newest first.
func (h *CheckoutHandler) Orders(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	orders, err := h.Checkout.Orders(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

// OrderBySession is polled by the success page until the webhook has
// materialized the order; 404 means "not yet".
func (h *CheckoutHandler) OrderBySession(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	sid := c.Param("sessionId")
	if sid == "" {
		return badRequest(c, "sessionId required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	o, err := h.Checkout.OrderBySession(ctx, id, sid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, o)
}
