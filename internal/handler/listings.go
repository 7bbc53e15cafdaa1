package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vinylverse/storefront/internal/catalog"
	"github.com/vinylverse/storefront/internal/model"
	"github.com/vinylverse/storefront/internal/repository"
)

// ListingStore is the catalog persistence used by the listing and admin
// handlers. *repository.ListingRepo implements it.
type ListingStore interface {
	Search(ctx context.Context, q repository.ListingSearchQuery) ([]model.Listing, int64, error)
	Genres(ctx context.Context) ([]string, error)
	GetByID(ctx context.Context, id uint64) (model.Listing, error)
	Create(ctx context.Context, l model.Listing) (model.Listing, error)
	Update(ctx context.Context, l model.Listing) (model.Listing, error)
	Delete(ctx context.Context, id uint64) error
}

// BarcodeLookup suggests listing details for a barcode.
type BarcodeLookup interface {
	LookupBarcode(ctx context.Context, upc string) (catalog.Suggestion, error)
}

// ListingHandler serves the public catalog.
type ListingHandler struct {
	Listings ListingStore
	Barcodes BarcodeLookup
}

func NewListingHandler(listings ListingStore, barcodes BarcodeLookup) *ListingHandler {
	return &ListingHandler{Listings: listings, Barcodes: barcodes}
}

type listingPage struct {
	Items      []model.Listing `json:"items"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
}

// searchQueryFrom reads the catalog filters from the query string. Unparseable
// numbers are reported instead of silently ignored.
func searchQueryFrom(c echo.Context) (repository.ListingSearchQuery, error) {
	q := repository.ListingSearchQuery{
		Search:      strings.TrimSpace(c.QueryParam("search")),
		Genre:       strings.TrimSpace(c.QueryParam("genre")),
		Sort:        c.QueryParam("sort"),
		OnSale:      truthy(c.QueryParam("onSale")),
		Featured:    truthy(c.QueryParam("featured")),
		IncludeSold: truthy(c.QueryParam("includeSold")),
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"year", &q.Year}, {"decade", &q.Decade}, {"page", &q.Page}, {"pageSize", &q.PageSize},
	}
	for _, f := range ints {
		if v := c.QueryParam(f.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return q, errors.New("invalid " + f.name)
			}
			*f.dst = n
		}
	}
	prices := []struct {
		name string
		dst  **int64
	}{
		{"minPrice", &q.MinPrice}, {"maxPrice", &q.MaxPrice},
	}
	for _, f := range prices {
		if v := c.QueryParam(f.name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return q, errors.New("invalid " + f.name)
			}
			*f.dst = &n
		}
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return q, errors.New("minPrice must not exceed maxPrice")
	}
	q.Normalize()
	return q, nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Search lists unsold listings matching the filters, one page at a time.
func (h *ListingHandler) Search(c echo.Context) error {
	q, err := searchQueryFrom(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	items, total, err := h.Listings.Search(ctx, q)
	if err != nil {
		return fail(c, err)
	}
	pages := 0
	if total > 0 {
		pages = int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	}
	return c.JSON(http.StatusOK, listingPage{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize, TotalPages: pages})
}

func (h *ListingHandler) Genres(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	genres, err := h.Listings.Genres(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"genres": genres, "known": catalog.Genres})
}

func (h *ListingHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	l, err := h.Listings.GetByID(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

// Discogs pre-fills a listing from a barcode. Admin only.
func (h *ListingHandler) Discogs(c echo.Context) error {
	upc := strings.TrimSpace(c.QueryParam("upc"))
	if upc == "" {
		return badRequest(c, "upc required")
	}
	if h.Barcodes == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "barcode lookup is not configured"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	s, err := h.Barcodes.LookupBarcode(ctx, upc)
	if err != nil {
		if errors.Is(err, catalog.ErrNoMatch) {
			return fail(c, err)
		}
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "barcode lookup failed"})
	}
	return c.JSON(http.StatusOK, s)
}
