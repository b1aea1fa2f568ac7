package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tixforge/tixforge/internal/model"
)

// OrderRepo provides data access to orders, order_positions and
// ledger_entries.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns an OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = `id, code, event_id, status, email, locale, sales_channel,
       total, expires_at, created_at`

func scanOrder(scanner interface{ Scan(...any) error }) (*model.Order, error) {
	var o model.Order
	var total string
	var expires sql.NullTime
	err := scanner.Scan(&o.ID, &o.Code, &o.EventID, &o.Status, &o.Email, &o.Locale,
		&o.SalesChannel, &total, &expires, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	if expires.Valid {
		t := expires.Time
		o.ExpiresAt = &t
	}
	return &o, nil
}

// InsertTx persists a new order. The unique key on code makes a
// colliding order code surface as a duplicate entry; the orchestrator
// treats that as a storage conflict and the shopper retries.
func (r *OrderRepo) InsertTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (code, event_id, status, email, locale, sales_channel,
		        total, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Code, o.EventID, o.Status, o.Email, o.Locale, o.SalesChannel,
		o.Total.String(), nullTime(o.ExpiresAt))
	if err != nil {
		return translateErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

// InsertPositionsTx persists promoted positions. seat_guard mirrors
// seat_id on insert and is NULLed on cancellation; the unique key on it
// is the durable backstop against double-selling a seat. Parent wiring
// follows the same last-base convention as the cart insert.
func (r *OrderRepo) InsertPositionsTx(ctx context.Context, tx *sql.Tx, positions []*model.OrderPosition) error {
	var lastParent uint64
	for _, p := range positions {
		if p.IsBundled && p.ParentID == nil && lastParent != 0 {
			parent := lastParent
			p.ParentID = &parent
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO order_positions (order_id, event_id, item_id, variation_id,
			        subevent_id, voucher_id, seat_id, seat_guard, membership_id,
			        parent_id, is_bundled, price, canceled)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
			p.OrderID, p.EventID, p.ItemID, nullID(p.VariationID), nullID(p.SubeventID),
			nullID(p.VoucherID), nullID(p.SeatID), nullID(p.SeatID),
			nullID(p.MembershipID), nullID(p.ParentID), p.IsBundled, p.Price.String())
		if err != nil {
			return translateErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		p.ID = uint64(id)
		if !p.IsBundled {
			lastParent = p.ID
		}
	}
	return nil
}

// ByCodeTx fetches one order by its public code. forUpdate takes a row
// lock so status transitions serialize on the row as well as on the
// event lock.
func (r *OrderRepo) ByCodeTx(ctx context.Context, tx *sql.Tx, code string, forUpdate bool) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE code = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanOrder(tx.QueryRowContext(ctx, query, code))
}

// PositionsTx lists all positions of an order, canceled ones included.
func (r *OrderRepo) PositionsTx(ctx context.Context, tx *sql.Tx, orderID uint64) ([]model.OrderPosition, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, order_id, event_id, item_id, variation_id, subevent_id,
		        voucher_id, seat_id, membership_id, parent_id, is_bundled, price,
		        canceled, created_at
		 FROM order_positions WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.OrderPosition
	for rows.Next() {
		var p model.OrderPosition
		var variation, subevent, voucher, seat, membership, parent sql.NullInt64
		var price string
		if err := rows.Scan(&p.ID, &p.OrderID, &p.EventID, &p.ItemID, &variation,
			&subevent, &voucher, &seat, &membership, &parent, &p.IsBundled, &price,
			&p.Canceled, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.VariationID = optID(variation)
		p.SubeventID = optID(subevent)
		p.VoucherID = optID(voucher)
		p.SeatID = optID(seat)
		p.MembershipID = optID(membership)
		p.ParentID = optID(parent)
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateStatusTx sets the order status.
func (r *OrderRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, orderID uint64, status string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ?`, status, orderID)
	return err
}

// CancelPositionsTx flags every position of the order canceled and
// clears the seat guards so the seats free up immediately.
func (r *OrderRepo) CancelPositionsTx(ctx context.Context, tx *sql.Tx, orderID uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE order_positions SET canceled = 1, seat_guard = NULL
		 WHERE order_id = ? AND canceled = 0`, orderID)
	return err
}

// OverduePendingTx lists pending orders whose payment deadline has
// passed, oldest first, for the reclaimer to expire.
func (r *OrderRepo) OverduePendingTx(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT code FROM orders
		 WHERE status = ? AND expires_at IS NOT NULL AND expires_at < ?
		 ORDER BY expires_at LIMIT ?`,
		model.OrderStatusPending, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

// InsertLedgerTx appends monetary movement entries.
func (r *OrderRepo) InsertLedgerTx(ctx context.Context, tx *sql.Tx, entries []*model.LedgerEntry) error {
	for _, e := range entries {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_entries (order_id, item_id, count, amount)
			 VALUES (?, ?, ?, ?)`,
			e.OrderID, nullID(e.ItemID), e.Count, e.Amount.String())
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		e.ID = uint64(id)
	}
	return nil
}
