package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vinylverse/storefront/internal/model"
)

// OrderRepo persists orders and their items. Orders are only ever created
// from cart rows, inside the same transaction that consumes those rows.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// OrderBuilder derives the order to write from the locked cart lines. It
// runs inside the materialization transaction; returning an error rolls
// the transaction back and leaves the cart untouched.
type OrderBuilder func(lines []model.CartLine) (model.Order, error)

const orderColumns = "id, COALESCE(user_id, 0), total_price, status, shipping_address, payment_session_id, created_at"

// MaterializeSession turns the cart rows stamped with sessionID into an
// order in one transaction: lock rows, build, insert order and items,
// delete rows, mark listings sold, commit.
//
// ErrNothingToMaterialize is returned when no row carries the stamp and
// ErrDuplicateOrder when an order for the session already exists. Both
// mean the notification was already handled.
func (r *OrderRepo) MaterializeSession(ctx context.Context, sessionID string, build OrderBuilder) (model.Order, error) {
	return r.materialize(ctx, func(tx *sql.Tx) ([]model.CartLine, error) {
		return lockStampedTx(ctx, tx, sessionID)
	}, func(o *model.Order) {
		o.PaymentSessionID = &sessionID
	}, build)
}

// MaterializeCart turns every current cart row of the user into an order
// in one transaction. It backs checkout when no payment provider is
// configured.
func (r *OrderRepo) MaterializeCart(ctx context.Context, userID uint64, build OrderBuilder) (model.Order, error) {
	return r.materialize(ctx, func(tx *sql.Tx) ([]model.CartLine, error) {
		return lockUserCartTx(ctx, tx, userID)
	}, func(o *model.Order) {
		o.UserID = userID
	}, build)
}

func (r *OrderRepo) materialize(ctx context.Context,
	lock func(*sql.Tx) ([]model.CartLine, error),
	fix func(*model.Order),
	build OrderBuilder,
) (model.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Order{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	lines, err := lock(tx)
	if err != nil {
		return model.Order{}, err
	}
	if len(lines) == 0 {
		return model.Order{}, ErrNothingToMaterialize
	}

	order, err := build(lines)
	if err != nil {
		return model.Order{}, err
	}
	fix(&order)

	if err := r.createTx(ctx, tx, &order); err != nil {
		return model.Order{}, err
	}

	rowIDs := make([]uint64, 0, len(lines))
	listingIDs := make([]uint64, 0, len(lines))
	for _, l := range lines {
		rowIDs = append(rowIDs, l.ID)
		listingIDs = append(listingIDs, l.ListingID)
	}
	if err := deleteRowsTx(ctx, tx, rowIDs); err != nil {
		return model.Order{}, err
	}
	if err := markSoldTx(ctx, tx, listingIDs); err != nil {
		return model.Order{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Order{}, err
	}
	committed = true
	return order, nil
}

// createTx inserts the order and its items, filling in generated ids.
func (r *OrderRepo) createTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	var userID any
	if o.UserID != 0 {
		userID = o.UserID
	}
	result, err := tx.ExecContext(ctx,
		`INSERT INTO orders (user_id, total_price, status, shipping_address, payment_session_id) VALUES (?, ?, ?, ?, ?)`,
		userID, o.TotalPrice, string(o.Status), o.ShippingAddress, o.PaymentSessionID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateOrder
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	if err := tx.QueryRowContext(ctx, "SELECT created_at FROM orders WHERE id = ?", o.ID).Scan(&o.CreatedAt); err != nil {
		return err
	}

	if len(o.Items) == 0 {
		return nil
	}
	query := `INSERT INTO order_items (order_id, listing_id, price, title, artist) VALUES `
	args := make([]any, 0, len(o.Items)*5)
	for i, it := range o.Items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, o.ID, it.ListingID, it.Price, it.Title, it.Artist)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	// Multi-row inserts hand out consecutive ids starting at LastInsertId.
	var firstID uint64
	if err := tx.QueryRowContext(ctx, "SELECT MIN(id) FROM order_items WHERE order_id = ?", o.ID).Scan(&firstID); err != nil {
		return err
	}
	for i := range o.Items {
		o.Items[i].ID = firstID + uint64(i)
		o.Items[i].OrderID = o.ID
	}
	return nil
}

func scanOrder(s rowScanner) (model.Order, error) {
	var (
		o         model.Order
		status    string
		sessionID sql.NullString
	)
	if err := s.Scan(&o.ID, &o.UserID, &o.TotalPrice, &status, &o.ShippingAddress, &sessionID, &o.CreatedAt); err != nil {
		return model.Order{}, err
	}
	o.Status = model.OrderStatus(status)
	if sessionID.Valid {
		v := sessionID.String
		o.PaymentSessionID = &v
	}
	o.Items = []model.OrderItem{}
	return o, nil
}

// GetBySession returns the order paid through sessionID if it belongs to
// userID. Orders of other users are reported as ErrNotFound.
func (r *OrderRepo) GetBySession(ctx context.Context, userID uint64, sessionID string) (model.Order, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE payment_session_id = ? AND user_id = ?", sessionID, userID)
	return r.one(ctx, row)
}

// GetByID returns an order with its items regardless of owner. It backs
// the admin views.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (model.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = ?", id)
	return r.one(ctx, row)
}

func (r *OrderRepo) one(ctx context.Context, row *sql.Row) (model.Order, error) {
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	orders := []model.Order{o}
	if err := r.loadItems(ctx, orders); err != nil {
		return model.Order{}, err
	}
	return orders[0], nil
}

// ListByUser returns the user's orders with items, newest first.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadItems populates Items for all orders in a single query.
func (r *OrderRepo) loadItems(ctx context.Context, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	index := make(map[uint64]int, len(orders))
	ids := make([]uint64, 0, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids = append(ids, o.ID)
	}
	placeholders, args := inClause(ids)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, listing_id, price, title, artist
		 FROM order_items
		 WHERE order_id IN (`+placeholders+`)
		 ORDER BY order_id, id`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ListingID, &it.Price, &it.Title, &it.Artist); err != nil {
			return err
		}
		idx, ok := index[it.OrderID]
		if !ok {
			continue
		}
		orders[idx].Items = append(orders[idx].Items, it)
	}
	return rows.Err()
}
