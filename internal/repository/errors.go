// Package repository implements the engine's persistence capability
// set on MySQL. Each aggregate has its own repository with ...Tx
// method variants; store.go binds them together into the transaction
// type the inventory engine consumes. All timestamp comparisons are
// performed in UTC.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/tixforge/tixforge/internal/inventory"
)

// ErrNotFound is returned when a referenced row does not exist.
// Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// mysqlDuplicateEntry is the server error code for a violated unique
// key. The schema's unique keys on seat guards, voucher codes and
// order codes are the defense-in-depth backstop behind the event lock.
const mysqlDuplicateEntry = 1062

// translateErr maps driver-level failures onto the sentinel errors the
// engine understands. Duplicate-key races become
// inventory.ErrConflict; everything else passes through.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return inventory.ErrConflict
	}
	return err
}
