package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry records one monetary movement on an order for audit and
// reconciliation. Placement writes one positive entry per position;
// cancellation writes a reversing negative entry. Entries are
// append-only and never updated or deleted.
//
// Fields:
//  ID        – primary key identifier.
//  OrderID   – order the movement belongs to.
//  ItemID    – item the movement concerns (nullable for fees).
//  Count     – number of units, negative for reversals.
//  Amount    – signed monetary delta (price × count).
//  CreatedAt – when the movement was recorded.
type LedgerEntry struct {
	ID        uint64          // ledger_entries.id
	OrderID   uint64          // ledger_entries.order_id
	ItemID    *uint64         // ledger_entries.item_id (nullable)
	Count     int64           // ledger_entries.count
	Amount    decimal.Decimal // ledger_entries.amount
	CreatedAt time.Time       // ledger_entries.created_at
}
