package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/vinylverse/storefront/internal/model"
)

// ListingRepo provides access to the listings table. Listings are the
// catalog; carts and orders reference them by id.
type ListingRepo struct {
	db *sql.DB
}

// NewListingRepo returns a new ListingRepo bound to the provided database.
func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{db: db} }

// DB exposes the underlying handle for callers that need transactions.
func (r *ListingRepo) DB() *sql.DB { return r.db }

// listingColumns returns the select list for a listing, optionally
// qualified with a table alias.
func listingColumns(alias string) string {
	p := ""
	if alias != "" {
		p = alias + "."
	}
	cols := []string{"id", "title", "artist", "genre", "media_condition", "price", "sale_price", "on_sale",
		"featured", "release_year", "image_url", "upc", "description", "sold_at", "created_at", "updated_at"}
	for i, c := range cols {
		cols[i] = p + c
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

// listingScan holds the scan targets for listingColumns so the same
// column list can be read on its own or after other columns.
type listingScan struct {
	l           model.Listing
	salePrice   sql.NullInt64
	releaseYear sql.NullInt32
	soldAt      sql.NullTime
}

func (ls *listingScan) dest() []any {
	l := &ls.l
	return []any{&l.ID, &l.Title, &l.Artist, &l.Genre, &l.Condition, &l.Price, &ls.salePrice, &l.OnSale,
		&l.Featured, &ls.releaseYear, &l.ImageURL, &l.UPC, &l.Description, &ls.soldAt, &l.CreatedAt, &l.UpdatedAt}
}

func (ls *listingScan) listing() model.Listing {
	l := ls.l
	if ls.salePrice.Valid {
		v := ls.salePrice.Int64
		l.SalePrice = &v
	}
	if ls.releaseYear.Valid {
		v := int(ls.releaseYear.Int32)
		l.ReleaseYear = &v
	}
	if ls.soldAt.Valid {
		t := ls.soldAt.Time
		l.SoldAt = &t
	}
	return l
}

func scanListing(s rowScanner) (model.Listing, error) {
	var ls listingScan
	if err := s.Scan(ls.dest()...); err != nil {
		return model.Listing{}, err
	}
	return ls.listing(), nil
}

// GetByID returns a single listing or ErrNotFound.
func (r *ListingRepo) GetByID(ctx context.Context, id uint64) (model.Listing, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+listingColumns("")+" FROM listings WHERE id = ?", id)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Listing{}, ErrNotFound
	}
	return l, err
}

// GetByIDs returns the listings that exist among ids, in id order. Missing
// ids are silently skipped.
func (r *ListingRepo) GetByIDs(ctx context.Context, ids []uint64) ([]model.Listing, error) {
	if len(ids) == 0 {
		return []model.Listing{}, nil
	}
	placeholders, args := inClause(ids)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+listingColumns("")+" FROM listings WHERE id IN ("+placeholders+") ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Listing, 0, len(ids))
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Create inserts a listing and returns the stored row.
func (r *ListingRepo) Create(ctx context.Context, l model.Listing) (model.Listing, error) {
	const q = `INSERT INTO listings
		(title, artist, genre, media_condition, price, sale_price, on_sale, featured, release_year, image_url, upc, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, l.Title, l.Artist, l.Genre, l.Condition, l.Price, l.SalePrice, l.OnSale,
		l.Featured, l.ReleaseYear, l.ImageURL, l.UPC, l.Description)
	if err != nil {
		return model.Listing{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Listing{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// Update overwrites the editable fields of a listing.
func (r *ListingRepo) Update(ctx context.Context, l model.Listing) (model.Listing, error) {
	const q = `UPDATE listings SET title=?, artist=?, genre=?, media_condition=?, price=?, sale_price=?, on_sale=?,
		featured=?, release_year=?, image_url=?, upc=?, description=? WHERE id=?`
	res, err := r.db.ExecContext(ctx, q, l.Title, l.Artist, l.Genre, l.Condition, l.Price, l.SalePrice, l.OnSale,
		l.Featured, l.ReleaseYear, l.ImageURL, l.UPC, l.Description, l.ID)
	if err != nil {
		return model.Listing{}, err
	}
	if err := expectAffected(res); err != nil {
		return model.Listing{}, err
	}
	return r.GetByID(ctx, l.ID)
}

// Delete removes a listing that was never ordered. A listing referenced by
// an order item yields ErrConflict because orders keep their history.
func (r *ListingRepo) Delete(ctx context.Context, id uint64) error {
	var ordered int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM order_items WHERE listing_id = ?", id).Scan(&ordered); err != nil {
		return err
	}
	if ordered > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM listings WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// markSoldTx flags listings as sold inside an order transaction.
func markSoldTx(ctx context.Context, tx *sql.Tx, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders, args := inClause(ids)
	_, err := tx.ExecContext(ctx,
		"UPDATE listings SET sold_at = UTC_TIMESTAMP() WHERE sold_at IS NULL AND id IN ("+placeholders+")", args...)
	return err
}

func inClause(ids []uint64) (string, []any) {
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = "?"
		args[i] = id
	}
	return strings.Join(ph, ","), args
}
