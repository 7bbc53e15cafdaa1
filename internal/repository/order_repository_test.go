package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinylverse/storefront/internal/model"
)

// paidOrder prices the locked lines the way checkout does.
func paidOrder(lines []model.CartLine) (model.Order, error) {
	o := model.Order{Status: model.OrderPaid, ShippingAddress: "Ann, 1 Main St", UserID: lines[0].UserID}
	for _, l := range lines {
		o.Items = append(o.Items, model.OrderItem{ListingID: l.ListingID, Price: l.EffectivePrice, Title: l.Listing.Title})
	}
	o.TotalPrice = model.CartTotal(lines)
	return o, nil
}

func expectLockedSession(mock sqlmock.Sqlmock, sessionID string) {
	rows := cartRows()
	addCartRow(rows, 40, 3, sessionID, listingValues(1, "Kind of Blue", 30, int64(25), true))
	addCartRow(rows, 41, 3, sessionID, listingValues(2, "Blue Train", 30, nil, false))
	mock.ExpectQuery(`WHERE c\.payment_session_id = \?\s+ORDER BY c\.id\s+FOR UPDATE`).
		WithArgs(sessionID).
		WillReturnRows(rows)
}

func TestMaterializeSessionRunsInOneTransaction(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepo(db)

	mock.ExpectBegin()
	expectLockedSession(mock, "cs_1")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders (user_id, total_price, status, shipping_address, payment_session_id)")).
		WithArgs(uint64(3), int64(55), "paid", "Ann, 1 Main St", "cs_1").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT created_at FROM orders WHERE id = ?")).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(fixedTime))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items (order_id, listing_id, price, title, artist) VALUES (?, ?, ?, ?, ?),(?, ?, ?, ?, ?)")).
		WithArgs(uint64(9), uint64(1), int64(25), "Kind of Blue", "", uint64(9), uint64(2), int64(30), "Blue Train", "").
		WillReturnResult(sqlmock.NewResult(100, 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(id) FROM order_items WHERE order_id = ?")).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"min"}).AddRow(int64(100)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cart_items WHERE id IN (?,?)")).
		WithArgs(uint64(40), uint64(41)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE listings SET sold_at = UTC_TIMESTAMP() WHERE sold_at IS NULL AND id IN (?,?)")).
		WithArgs(uint64(1), uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	o, err := repo.MaterializeSession(context.Background(), "cs_1", paidOrder)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), o.ID)
	assert.Equal(t, int64(55), o.TotalPrice)
	require.NotNil(t, o.PaymentSessionID)
	assert.Equal(t, "cs_1", *o.PaymentSessionID)
	require.Len(t, o.Items, 2)
	assert.Equal(t, uint64(100), o.Items[0].ID)
	assert.Equal(t, uint64(101), o.Items[1].ID)
	assert.Equal(t, uint64(9), o.Items[1].OrderID)
	assert.Equal(t, fixedTime, o.CreatedAt)
}

func TestMaterializeSessionWithoutRowsIsNoop(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("cs_gone").WillReturnRows(cartRows())
	mock.ExpectRollback()

	_, err := NewOrderRepo(db).MaterializeSession(context.Background(), "cs_gone", paidOrder)
	assert.ErrorIs(t, err, ErrNothingToMaterialize)
}

func TestMaterializeSessionDuplicateRollsBack(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	expectLockedSession(mock, "cs_1")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'cs_1' for key 'payment_session_id'"})
	mock.ExpectRollback()

	_, err := NewOrderRepo(db).MaterializeSession(context.Background(), "cs_1", paidOrder)
	assert.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestMaterializeBuilderErrorLeavesCart(t *testing.T) {
	db, mock := newMock(t)
	refused := errors.New("listing sold")

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE c\.user_id = \?\s+ORDER BY c\.id\s+FOR UPDATE`).
		WithArgs(uint64(3)).
		WillReturnRows(addCartRow(cartRows(), 40, 3, nil, listingValues(7, "Mingus Ah Um", 40, nil, false)))
	mock.ExpectRollback()

	_, err := NewOrderRepo(db).MaterializeCart(context.Background(), 3, func([]model.CartLine) (model.Order, error) {
		return model.Order{}, refused
	})
	assert.ErrorIs(t, err, refused)
}

func TestMaterializeFailureAfterInsertRollsBack(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	expectLockedSession(mock, "cs_1")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT created_at FROM orders")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(fixedTime))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	_, err := NewOrderRepo(db).MaterializeSession(context.Background(), "cs_1", paidOrder)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateOrder)
}

func TestGetBySessionScopesToOwner(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE payment_session_id = ? AND user_id = ?")).
		WithArgs("cs_1", uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "total_price", "status", "shipping_address", "payment_session_id", "created_at"}))

	_, err := NewOrderRepo(db).GetBySession(context.Background(), 4, "cs_1")
	assert.ErrorIs(t, err, ErrNotFound)
}
