package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vinylverse/storefront/internal/model"
)

// CartRepo provides data access to the cart_items table. A row ties one
// listing to one user; UNIQUE(user_id, listing_id) keeps at most one row per
// pair, which is what makes adds and guest migrations idempotent.
type CartRepo struct {
	db *sql.DB
}

// NewCartRepo returns a new CartRepo bound to the provided database.
func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{db: db} }

const cartColumns = "c.id, c.user_id, c.listing_id, c.sale_price, c.payment_session_id, c.created_at"

func scanCartLine(s rowScanner) (model.CartLine, error) {
	var (
		item      model.CartItem
		salePrice sql.NullInt64
		sessionID sql.NullString
		ls        listingScan
	)
	dest := append([]any{&item.ID, &item.UserID, &item.ListingID, &salePrice, &sessionID, &item.CreatedAt}, ls.dest()...)
	if err := s.Scan(dest...); err != nil {
		return model.CartLine{}, err
	}
	if salePrice.Valid {
		v := salePrice.Int64
		item.SalePrice = &v
	}
	if sessionID.Valid {
		v := sessionID.String
		item.PaymentSessionID = &v
	}
	return model.NewCartLine(item, ls.listing()), nil
}

func collectCartLines(rows *sql.Rows) ([]model.CartLine, error) {
	defer rows.Close()
	out := []model.CartLine{}
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns the user's cart rows joined with their listings,
// oldest first.
func (r *CartRepo) ListByUser(ctx context.Context, userID uint64) ([]model.CartLine, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+cartColumns+", "+listingColumns("l")+`
		 FROM cart_items c
		 JOIN listings l ON l.id = c.listing_id
		 WHERE c.user_id = ?
		 ORDER BY c.created_at ASC, c.id ASC`, userID)
	if err != nil {
		return nil, err
	}
	return collectCartLines(rows)
}

// GetByID returns one cart row with its listing, or ErrNotFound.
func (r *CartRepo) GetByID(ctx context.Context, id uint64) (model.CartLine, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+cartColumns+", "+listingColumns("l")+`
		 FROM cart_items c
		 JOIN listings l ON l.id = c.listing_id
		 WHERE c.id = ?`, id)
	line, err := scanCartLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CartLine{}, ErrNotFound
	}
	return line, err
}

// AddIfAbsent inserts a row for {userID, listing} unless one already
// exists, and returns the row either way. created reports whether a new row
// was written.
func (r *CartRepo) AddIfAbsent(ctx context.Context, userID uint64, listing model.Listing) (line model.CartLine, created bool, err error) {
	var salePrice *int64
	if listing.OnSale {
		salePrice = listing.SalePrice
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO cart_items (user_id, listing_id, sale_price) VALUES (?, ?, ?)`,
		userID, listing.ID, salePrice)
	if err != nil {
		return model.CartLine{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.CartLine{}, false, err
	}
	row := r.db.QueryRowContext(ctx,
		"SELECT "+cartColumns+", "+listingColumns("l")+`
		 FROM cart_items c
		 JOIN listings l ON l.id = c.listing_id
		 WHERE c.user_id = ? AND c.listing_id = ?`, userID, listing.ID)
	line, err = scanCartLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CartLine{}, false, ErrNotFound
	}
	if err != nil {
		return model.CartLine{}, false, err
	}
	return line, n > 0, nil
}

// DeleteOwned removes a cart row only if it belongs to userID. A missing
// row and a row owned by someone else both yield ErrForbidden and leave the
// table untouched.
func (r *CartRepo) DeleteOwned(ctx context.Context, userID, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrForbidden
	}
	return nil
}

// StampSession writes sessionID onto the user's rows listed in rowIDs,
// overwriting whatever an earlier checkout attempt left there. Rows added
// after the snapshot keep their stamp. It returns the number of rows
// stamped.
func (r *CartRepo) StampSession(ctx context.Context, userID uint64, sessionID string, rowIDs []uint64) (int64, error) {
	if len(rowIDs) == 0 {
		return 0, nil
	}
	placeholders, ids := inClause(rowIDs)
	args := append([]any{sessionID, userID}, ids...)
	res, err := r.db.ExecContext(ctx,
		"UPDATE cart_items SET payment_session_id = ? WHERE user_id = ? AND id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearSessionStamp removes sessionID from the rows still carrying it.
func (r *CartRepo) ClearSessionStamp(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE cart_items SET payment_session_id = NULL WHERE payment_session_id = ?", sessionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// lockStampedTx loads and locks the cart rows stamped with sessionID. The
// joined listing rows are locked too, so two sessions consuming the same
// listing are applied one after the other.
func lockStampedTx(ctx context.Context, tx *sql.Tx, sessionID string) ([]model.CartLine, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT "+cartColumns+", "+listingColumns("l")+`
		 FROM cart_items c
		 JOIN listings l ON l.id = c.listing_id
		 WHERE c.payment_session_id = ?
		 ORDER BY c.id
		 FOR UPDATE`, sessionID)
	if err != nil {
		return nil, err
	}
	return collectCartLines(rows)
}

// lockUserCartTx loads and locks all cart rows of a user.
func lockUserCartTx(ctx context.Context, tx *sql.Tx, userID uint64) ([]model.CartLine, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT "+cartColumns+", "+listingColumns("l")+`
		 FROM cart_items c
		 JOIN listings l ON l.id = c.listing_id
		 WHERE c.user_id = ?
		 ORDER BY c.id
		 FOR UPDATE`, userID)
	if err != nil {
		return nil, err
	}
	return collectCartLines(rows)
}

// deleteRowsTx removes the given cart rows inside a transaction.
func deleteRowsTx(ctx context.Context, tx *sql.Tx, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders, args := inClause(ids)
	_, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE id IN ("+placeholders+")", args...)
	return err
}
