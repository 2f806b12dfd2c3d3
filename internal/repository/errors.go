// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow the service layer to
// distinguish expected outcomes from infrastructure faults. ErrNotFound
// means the tenant-scoped lookup matched nothing, ErrConflict means a
// conditional update lost a race against a concurrent writer, and
// ErrDuplicate means a unique key rejected an insert.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when no row matches the tenant-scoped lookup.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional update affected no row
// because the row changed since it was read.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert violates a unique key.
var ErrDuplicate = errors.New("duplicate")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
