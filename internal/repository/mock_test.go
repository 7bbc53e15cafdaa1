package repository

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// newMock returns a database backed by sqlmock. Every expectation must be
// consumed, in order, by the end of the test.
func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

var listingCols = []string{"id", "title", "artist", "genre", "media_condition", "price", "sale_price", "on_sale",
	"featured", "release_year", "image_url", "upc", "description", "sold_at", "created_at", "updated_at"}

// listingValues is one listings row; salePrice may be nil.
func listingValues(id int64, title string, price int64, salePrice any, onSale bool) []any {
	return []any{id, title, "Artist " + title, "Jazz", "VG+", price, salePrice, onSale,
		false, nil, "", "", "", nil, fixedTime, fixedTime}
}

// cartRows builds the result set of a cart query joined with listings.
func cartRows() *sqlmock.Rows {
	cols := append([]string{"id", "user_id", "listing_id", "sale_price", "payment_session_id", "created_at"}, listingCols...)
	return sqlmock.NewRows(cols)
}

func addCartRow(rows *sqlmock.Rows, id, userID int64, session any, listing []any) *sqlmock.Rows {
	vals := append([]any{id, userID, listing[0], nil, session, fixedTime}, listing...)
	values := make([]driver.Value, len(vals))
	for i, v := range vals {
		values[i] = v
	}
	return rows.AddRow(values...)
}
