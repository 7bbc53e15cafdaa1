package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vinylverse/storefront/internal/catalog"
	"github.com/vinylverse/storefront/internal/model"
	"github.com/vinylverse/storefront/internal/service"
)

// OrderLookup fetches any order by id.
type OrderLookup interface {
	GetByID(ctx context.Context, id uint64) (model.Order, error)
}

// AdminHandler serves catalog management and support lookups.
type AdminHandler struct {
	Listings ListingStore
	Orders   OrderLookup
	Accounts *service.AccountService
}

func NewAdminHandler(listings ListingStore, orders OrderLookup, accounts *service.AccountService) *AdminHandler {
	return &AdminHandler{Listings: listings, Orders: orders, Accounts: accounts}
}

type listingReq struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Genre       string `json:"genre"`
	Condition   string `json:"condition"`
	Price       int64  `json:"price"`
	SalePrice   *int64 `json:"salePrice"`
	OnSale      bool   `json:"onSale"`
	Featured    bool   `json:"featured"`
	ReleaseYear *int   `json:"releaseYear"`
	ImageURL    string `json:"imageUrl"`
	UPC         string `json:"upc"`
	Description string `json:"description"`
}

// listing validates the request and converts it to a model.Listing.
func (r listingReq) listing() (model.Listing, string) {
	l := model.Listing{
		Title:       strings.TrimSpace(r.Title),
		Artist:      strings.TrimSpace(r.Artist),
		Condition:   strings.TrimSpace(r.Condition),
		Price:       r.Price,
		SalePrice:   r.SalePrice,
		OnSale:      r.OnSale,
		Featured:    r.Featured,
		ReleaseYear: r.ReleaseYear,
		ImageURL:    strings.TrimSpace(r.ImageURL),
		UPC:         strings.TrimSpace(r.UPC),
		Description: strings.TrimSpace(r.Description),
	}
	switch {
	case l.Title == "" || l.Artist == "":
		return l, "title and artist are required"
	case l.Price <= 0:
		return l, "price must be positive"
	case l.SalePrice != nil && (*l.SalePrice <= 0 || *l.SalePrice >= l.Price):
		return l, "salePrice must be positive and below price"
	case l.OnSale && l.SalePrice == nil:
		return l, "onSale requires salePrice"
	case l.ReleaseYear != nil && (*l.ReleaseYear < 1900 || *l.ReleaseYear > 2100):
		return l, "invalid releaseYear"
	}
	if g := strings.TrimSpace(r.Genre); g != "" {
		l.Genre = catalog.CanonicalGenre(g)
		if l.Genre == "" {
			return l, "unknown genre"
		}
	}
	return l, ""
}

func (h *AdminHandler) CreateListing(c echo.Context) error {
	var req listingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	l, msg := req.listing()
	if msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := h.Listings.Create(ctx, l)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *AdminHandler) UpdateListing(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	var req listingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	l, msg := req.listing()
	if msg != "" {
		return badRequest(c, msg)
	}
	l.ID = id
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := h.Listings.Update(ctx, l)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// DeleteListing answers 409 when the listing is referenced by an order.
func (h *AdminHandler) DeleteListing(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Listings.Delete(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) GetOrder(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid order id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	o, err := h.Orders.GetByID(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

// LookupUser finds an account by ?email= or ?id=.
func (h *AdminHandler) LookupUser(c echo.Context) error {
	email := strings.TrimSpace(c.QueryParam("email"))
	var id uint64
	if v := c.QueryParam("id"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid id")
		}
		id = n
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Accounts.LookupUser(ctx, email, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
