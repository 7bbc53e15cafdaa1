package repository

import (
	"context"
	"strings"

	"github.com/vinylverse/storefront/internal/model"
)

// effectivePriceSQL mirrors model.Listing.EffectivePrice so price filters
// and sorting agree with what the cart charges.
const effectivePriceSQL = "(CASE WHEN l.on_sale = 1 AND l.sale_price IS NOT NULL THEN l.sale_price ELSE l.price END)"

// ListingSearchQuery defines filters & pagination for browsing the catalog.
type ListingSearchQuery struct {
	Search      string
	Genre       string
	MinPrice    *int64
	MaxPrice    *int64
	Year        int
	Decade      int
	OnSale      bool
	Featured    bool
	IncludeSold bool
	Sort        string
	Page        int
	PageSize    int
}

// maxPage bounds the OFFSET so page*pageSize cannot overflow.
const maxPage = 10000

// Normalize clamps paging values and lower-cases the sort key.
func (q *ListingSearchQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > maxPage {
		q.Page = maxPage
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 24
	}
	q.Sort = strings.ToLower(strings.TrimSpace(q.Sort))
}

// where builds the condition and its arguments.
func (q ListingSearchQuery) where() (string, []any) {
	where := []string{}
	args := []any{}

	if !q.IncludeSold {
		where = append(where, "l.sold_at IS NULL")
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = append(where, "(LOWER(l.title) LIKE ? OR LOWER(l.artist) LIKE ?)")
		args = append(args, like, like)
	}
	if g := strings.TrimSpace(q.Genre); g != "" && !strings.EqualFold(g, "all") {
		where = append(where, "LOWER(l.genre) = ?")
		args = append(args, strings.ToLower(g))
	}
	if q.MinPrice != nil {
		where = append(where, effectivePriceSQL+" >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		where = append(where, effectivePriceSQL+" <= ?")
		args = append(args, *q.MaxPrice)
	}
	if q.Year > 0 {
		where = append(where, "l.release_year = ?")
		args = append(args, q.Year)
	}
	if q.Decade > 0 {
		start := q.Decade - q.Decade%10
		where = append(where, "l.release_year BETWEEN ? AND ?")
		args = append(args, start, start+9)
	}
	if q.OnSale {
		where = append(where, "l.on_sale = 1 AND l.sale_price IS NOT NULL")
	}
	if q.Featured {
		where = append(where, "l.featured = 1")
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}
	return cond, args
}

func (q ListingSearchQuery) orderBy() string {
	switch q.Sort {
	case "price_asc":
		return effectivePriceSQL + " ASC, l.id ASC"
	case "price_desc":
		return effectivePriceSQL + " DESC, l.id DESC"
	case "title":
		return "l.title ASC, l.id ASC"
	case "artist":
		return "l.artist ASC, l.title ASC, l.id ASC"
	case "oldest":
		return "l.created_at ASC, l.id ASC"
	default:
		return "l.created_at DESC, l.id DESC"
	}
}

// Search returns one page of listings plus the total number of matches.
func (r *ListingRepo) Search(ctx context.Context, q ListingSearchQuery) ([]model.Listing, int64, error) {
	q.Normalize()
	cond, args := q.where()

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings l WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.PageSize
	offset := (q.Page - 1) * q.PageSize
	dataSQL := "SELECT " + listingColumns("l") + " FROM listings l WHERE " + cond +
		" ORDER BY " + q.orderBy() + " LIMIT ? OFFSET ?"
	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Listing, 0, limit)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Genres returns the distinct genres of unsold listings.
func (r *ListingRepo) Genres(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT genre FROM listings WHERE sold_at IS NULL AND genre <> '' ORDER BY genre")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
