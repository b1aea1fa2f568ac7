package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/tixforge/tixforge/internal/inventory"
	"github.com/tixforge/tixforge/internal/model"
)

// QuotaRepo provides data access to quotas and quota_items, including
// the live usage aggregation behind every availability decision.
type QuotaRepo struct {
	db *sql.DB
}

// NewQuotaRepo returns a QuotaRepo bound to the given database.
func NewQuotaRepo(db *sql.DB) *QuotaRepo { return &QuotaRepo{db: db} }

func scanQuota(scanner interface{ Scan(...any) error }) (*model.Quota, error) {
	var q model.Quota
	var subevent sql.NullInt64
	var size sql.NullInt64
	err := scanner.Scan(&q.ID, &q.EventID, &subevent, &q.Name, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if subevent.Valid {
		v := uint64(subevent.Int64)
		q.SubeventID = &v
	}
	if size.Valid {
		v := size.Int64
		q.Size = &v
	}
	return &q, nil
}

// GetTx fetches one quota by id within the transaction.
func (r *QuotaRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Quota, error) {
	return scanQuota(tx.QueryRowContext(ctx,
		`SELECT id, event_id, subevent_id, name, size FROM quotas WHERE id = ?`, id))
}

// CreateTx inserts a quota and its covered (item, variation) pairs.
func (r *QuotaRepo) CreateTx(ctx context.Context, tx *sql.Tx, q *model.Quota, covered []model.QuotaItem) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO quotas (event_id, subevent_id, name, size) VALUES (?, ?, ?, ?)`,
		q.EventID, nullID(q.SubeventID), q.Name, nullInt(q.Size))
	if err != nil {
		return translateErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	q.ID = uint64(id)
	for _, c := range covered {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO quota_items (quota_id, item_id, variation_id) VALUES (?, ?, ?)`,
			q.ID, c.ItemID, nullID(c.VariationID)); err != nil {
			return translateErr(err)
		}
	}
	return nil
}

// ForItemTx lists all quotas an (item, variation, subevent) draws
// from, ordered by id so multi-quota operations touch them in a
// stable order.
func (r *QuotaRepo) ForItemTx(ctx context.Context, tx *sql.Tx, itemID uint64, variationID, subeventID *uint64) ([]model.Quota, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT q.id, q.event_id, q.subevent_id, q.name, q.size
		 FROM quotas q
		 JOIN quota_items qi ON qi.quota_id = q.id
		 WHERE qi.item_id = ? AND qi.variation_id <=> ?
		   AND (q.subevent_id IS NULL OR q.subevent_id <=> ?)
		 ORDER BY q.id`,
		itemID, nullID(variationID), nullID(subeventID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Quota
	for rows.Next() {
		q, err := scanQuota(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

// UsageTx aggregates the live usage terms of one quota. The caller
// must hold the event lock for the result to be authoritative; the
// unlocked variant is only good for advisory display. excludeCarts
// removes those carts' holds from the cart-holds term (used by the
// orchestrator to avoid double counting the holds it promotes).
func (r *QuotaRepo) UsageTx(ctx context.Context, tx *sql.Tx, quota *model.Quota, excludeCarts []string, countPending bool, now time.Time) (inventory.QuotaUsage, error) {
	var u inventory.QuotaUsage
	now = now.UTC()

	// Covered pairs; zero means the quota is degenerate.
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quota_items WHERE quota_id = ?`, quota.ID).
		Scan(&u.CoveredItems); err != nil {
		return u, err
	}

	// The subevent scope clause: a subevent-scoped quota only counts
	// positions of that subevent.
	scope := ``
	var scopeArgs []any
	if quota.SubeventID != nil {
		scope = ` AND p.subevent_id <=> ?`
		scopeArgs = []any{*quota.SubeventID}
	}

	// Paid order positions of covered items, not canceled.
	paidQuery := `SELECT COUNT(*)
		 FROM order_positions p
		 JOIN orders o ON o.id = p.order_id
		 JOIN quota_items qi ON qi.quota_id = ? AND qi.item_id = p.item_id
		      AND qi.variation_id <=> p.variation_id
		 WHERE o.status = ? AND p.canceled = 0` + scope
	args := append([]any{quota.ID, model.OrderStatusPaid}, scopeArgs...)
	if err := tx.QueryRowContext(ctx, paidQuery, args...).Scan(&u.Paid); err != nil {
		return u, err
	}

	// Pending order positions, if the event counts them. Overdue
	// pending orders are flipped to EXPIRED by the reclaimer, but the
	// deadline check keeps the term live in between sweeps.
	if countPending {
		pendingQuery := `SELECT COUNT(*)
			 FROM order_positions p
			 JOIN orders o ON o.id = p.order_id
			 JOIN quota_items qi ON qi.quota_id = ? AND qi.item_id = p.item_id
			      AND qi.variation_id <=> p.variation_id
			 WHERE o.status = ? AND p.canceled = 0
			   AND (o.expires_at IS NULL OR o.expires_at > ?)` + scope
		args = append([]any{quota.ID, model.OrderStatusPending, now}, scopeArgs...)
		if err := tx.QueryRowContext(ctx, pendingQuery, args...).Scan(&u.Pending); err != nil {
			return u, err
		}
	}

	// Unexpired cart holds of covered items, minus excluded carts.
	holdQuery := `SELECT COUNT(*)
		 FROM cart_positions p
		 JOIN quota_items qi ON qi.quota_id = ? AND qi.item_id = p.item_id
		      AND qi.variation_id <=> p.variation_id
		 WHERE p.expires_at > ?` + scope
	args = append([]any{quota.ID, now}, scopeArgs...)
	if clause, inArgs := notInCarts("p.cart_id", excludeCarts); clause != "" {
		holdQuery += clause
		args = append(args, inArgs...)
	}
	if err := tx.QueryRowContext(ctx, holdQuery, args...).Scan(&u.CartHolds); err != nil {
		return u, err
	}

	// Unredeemed usages of blocking vouchers targeting this quota.
	var blocked sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT SUM(v.max_usages - v.redeemed)
		 FROM vouchers v
		 WHERE v.quota_id = ? AND v.block_quota = 1 AND v.redeemed < v.max_usages
		   AND (v.valid_until IS NULL OR v.valid_until > ?)`,
		quota.ID, now).Scan(&blocked); err != nil {
		return u, err
	}
	if blocked.Valid {
		u.BlockingVouchers = blocked.Int64
	}

	// Holds backed by a blocking voucher are already counted in the
	// cart-holds term; subtract them so a voucher-backed cart does not
	// consume two units.
	if u.BlockingVouchers > 0 {
		var overlap int64
		overlapQuery := `SELECT COUNT(*)
			 FROM cart_positions p
			 JOIN vouchers v ON v.id = p.voucher_id
			 WHERE v.quota_id = ? AND v.block_quota = 1 AND p.expires_at > ?`
		args = []any{quota.ID, now}
		if clause, inArgs := notInCarts("p.cart_id", excludeCarts); clause != "" {
			overlapQuery += clause
			args = append(args, inArgs...)
		}
		if err := tx.QueryRowContext(ctx, overlapQuery, args...).Scan(&overlap); err != nil {
			return u, err
		}
		u.BlockingVouchers -= overlap
		if u.BlockingVouchers < 0 {
			u.BlockingVouchers = 0
		}
	}
	return u, nil
}

// notInCarts builds the NOT IN clause excluding the given cart ids, or
// an empty clause when there is nothing to exclude.
func notInCarts(col string, carts []string) (string, []any) {
	if len(carts) == 0 {
		return "", nil
	}
	args := make([]any, 0, len(carts))
	for _, c := range carts {
		args = append(args, c)
	}
	return " AND " + col + " NOT IN (" + placeholders(len(carts)) + ")", args
}

// placeholders returns n comma-separated ? markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// nullID converts an optional foreign key into its driver value.
func nullID(id *uint64) any {
	if id == nil {
		return nil
	}
	return *id
}

// nullInt converts an optional integer into its driver value.
func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
