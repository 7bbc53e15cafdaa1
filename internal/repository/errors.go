// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as deleting a listing that was already sold or
// registering an email that is taken.
var ErrConflict = errors.New("conflict")

// ErrNothingToMaterialize is returned by the order materialization
// helpers when no cart rows match, which makes retried payment
// notifications a no-op.
var ErrNothingToMaterialize = errors.New("no cart rows to materialize")

// ErrDuplicateOrder is returned when an order already exists for a
// payment session.
var ErrDuplicateOrder = errors.New("order already exists for payment session")

// mysqlDuplicateEntry is the MySQL error number for unique key violations.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	return err != nil && strings.Contains(err.Error(), "1062")
}
