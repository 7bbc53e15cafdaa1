package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vinylverse/storefront/internal/service"
)

// CartHandler serves persisted and guest carts.
type CartHandler struct {
	Carts *service.CartService
}

func NewCartHandler(carts *service.CartService) *CartHandler {
	return &CartHandler{Carts: carts}
}

type addCartReq struct {
	ListingID uint64 `json:"listingId"`
}

// listingIDsReq accepts either {"listingIds": [...]} or
// {"items": [{"listingId": ...}]}.
type listingIDsReq struct {
	ListingIDs []uint64     `json:"listingIds"`
	Items      []addCartReq `json:"items"`
}

func (r listingIDsReq) ids() []uint64 {
	ids := append([]uint64{}, r.ListingIDs...)
	for _, it := range r.Items {
		ids = append(ids, it.ListingID)
	}
	return ids
}

func (h *CartHandler) List(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	cart, err := h.Carts.List(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// Add answers 201 for a new row and 200 when the listing was already in
// the cart.
func (h *CartHandler) Add(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req addCartReq
	if err := c.Bind(&req); err != nil || req.ListingID == 0 {
		return badRequest(c, "listingId required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	line, created, err := h.Carts.Add(ctx, id, req.ListingID)
	if err != nil {
		return fail(c, err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, line)
}

// Remove deletes one of the caller's rows; anyone else's row is 403.
func (h *CartHandler) Remove(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	rowID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid cart item id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Carts.Remove(ctx, id, rowID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Guest prices the listing ids an anonymous client remembers.
func (h *CartHandler) Guest(c echo.Context) error {
	var req listingIDsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	cart, err := h.Carts.Guest(ctx, req.ids())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// Migrate merges a guest cart into the caller's cart and returns the
// result. Repeating it is harmless.
func (h *CartHandler) Migrate(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req listingIDsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	cart, err := h.Carts.Migrate(ctx, id, req.ids())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}
