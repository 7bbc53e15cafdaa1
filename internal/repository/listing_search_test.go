package repository

import (
	"context"
	"math"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingSearchNormalize(t *testing.T) {
	q := ListingSearchQuery{Page: -3, PageSize: 500, Sort: "  PRICE_ASC "}
	q.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 24, q.PageSize)
	assert.Equal(t, "price_asc", q.Sort)

	q = ListingSearchQuery{Page: 3, PageSize: 50}
	q.Normalize()
	assert.Equal(t, 3, q.Page)
	assert.Equal(t, 50, q.PageSize)
}

func TestListingSearchWhereDefaultsToUnsold(t *testing.T) {
	cond, args := ListingSearchQuery{}.where()
	assert.Equal(t, "l.sold_at IS NULL", cond)
	assert.Empty(t, args)

	cond, args = ListingSearchQuery{IncludeSold: true}.where()
	assert.Equal(t, "1=1", cond)
	assert.Empty(t, args)
}

func TestListingSearchWhereFilters(t *testing.T) {
	lo, hi := int64(10), int64(40)
	q := ListingSearchQuery{
		Search:   " Blue ",
		Genre:    "Jazz",
		MinPrice: &lo,
		MaxPrice: &hi,
		Decade:   1965,
		OnSale:   true,
	}
	cond, args := q.where()
	assert.Contains(t, cond, "(LOWER(l.title) LIKE ? OR LOWER(l.artist) LIKE ?)")
	assert.Contains(t, cond, "LOWER(l.genre) = ?")
	assert.Contains(t, cond, effectivePriceSQL+" >= ?")
	assert.Contains(t, cond, effectivePriceSQL+" <= ?")
	assert.Contains(t, cond, "l.release_year BETWEEN ? AND ?")
	assert.Contains(t, cond, "l.on_sale = 1")
	assert.Equal(t, []any{"%blue%", "%blue%", "jazz", int64(10), int64(40), 1960, 1969}, args)
}

func TestListingSearchGenreAllIsIgnored(t *testing.T) {
	cond, args := ListingSearchQuery{Genre: "All"}.where()
	assert.NotContains(t, cond, "genre")
	assert.Empty(t, args)
}

func TestListingSearchOrderBy(t *testing.T) {
	cases := map[string]string{
		"":           "l.created_at DESC, l.id DESC",
		"bogus":      "l.created_at DESC, l.id DESC",
		"oldest":     "l.created_at ASC, l.id ASC",
		"title":      "l.title ASC, l.id ASC",
		"price_asc":  effectivePriceSQL + " ASC, l.id ASC",
		"price_desc": effectivePriceSQL + " DESC, l.id DESC",
	}
	for sort, want := range cases {
		assert.Equal(t, want, ListingSearchQuery{Sort: sort}.orderBy(), sort)
	}
}

func TestInClauseAndColumns(t *testing.T) {
	ph, args := inClause([]uint64{4, 5, 6})
	assert.Equal(t, "?,?,?", ph)
	assert.Equal(t, []any{uint64(4), uint64(5), uint64(6)}, args)

	cols := listingColumns("l")
	assert.Contains(t, cols, "l.id, l.title, l.artist")
	assert.Contains(t, cols, "l.sold_at")
	assert.NotContains(t, listingColumns(""), ".")

	var ls listingScan
	assert.Len(t, ls.dest(), 16)
}

func TestSearchCapsHugePage(t *testing.T) {
	q := ListingSearchQuery{Page: math.MaxInt, PageSize: 100}
	q.Normalize()
	assert.Equal(t, maxPage, q.Page)

	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM listings l WHERE l.sold_at IS NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT ? OFFSET ?")).
		WithArgs(100, (maxPage-1)*100).
		WillReturnRows(sqlmock.NewRows(listingCols))

	items, total, err := NewListingRepo(db).Search(context.Background(), ListingSearchQuery{Page: math.MaxInt, PageSize: 100})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int64(3), total)
}
