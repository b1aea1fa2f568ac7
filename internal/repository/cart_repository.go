package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tixforge/tixforge/internal/model"
)

// CartRepo provides data access to cart_positions, the table of live
// provisional holds.
type CartRepo struct {
	db *sql.DB
}

// NewCartRepo returns a CartRepo bound to the given database.
func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{db: db} }

const cartColumns = `id, cart_id, event_id, item_id, variation_id, subevent_id,
       voucher_id, seat_id, membership_id, parent_id, is_bundled, price,
       expires_at, created_at`

func scanCartPosition(scanner interface{ Scan(...any) error }) (*model.CartPosition, error) {
	var p model.CartPosition
	var variation, subevent, voucher, seat, membership, parent sql.NullInt64
	var price string
	err := scanner.Scan(&p.ID, &p.CartID, &p.EventID, &p.ItemID, &variation, &subevent,
		&voucher, &seat, &membership, &parent, &p.IsBundled, &price,
		&p.ExpiresAt, &p.CreatedAt)
	if err != nil {
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
	return &p, nil
}

// InsertTx persists a batch of holds in order. Bundled add-ons without
// an explicit parent are attached to the most recently inserted base
// position, which matches the order the engine builds them in. The
// unique key on seat_id makes a lost seat race surface as a duplicate
// entry here.
func (r *CartRepo) InsertTx(ctx context.Context, tx *sql.Tx, positions []*model.CartPosition) error {
	var lastParent uint64
	for _, p := range positions {
		if p.IsBundled && p.ParentID == nil && lastParent != 0 {
			parent := lastParent
			p.ParentID = &parent
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO cart_positions (cart_id, event_id, item_id, variation_id,
			        subevent_id, voucher_id, seat_id, membership_id, parent_id,
			        is_bundled, price, expires_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.CartID, p.EventID, p.ItemID, nullID(p.VariationID), nullID(p.SubeventID),
			nullID(p.VoucherID), nullID(p.SeatID), nullID(p.MembershipID),
			nullID(p.ParentID), p.IsBundled, p.Price.String(), p.ExpiresAt.UTC())
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

// ByCartTx lists all holds of one cart, parents before their add-ons.
func (r *CartRepo) ByCartTx(ctx context.Context, tx *sql.Tx, cartID string) ([]model.CartPosition, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+cartColumns+` FROM cart_positions WHERE cart_id = ? ORDER BY id`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCartPositions(rows)
}

// ByIDsTx fetches the given holds, in id order. Missing ids are simply
// absent from the result; the engine treats that as a gone position.
func (r *CartRepo) ByIDsTx(ctx context.Context, tx *sql.Tx, ids []uint64) ([]model.CartPosition, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT `+cartColumns+` FROM cart_positions
		 WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCartPositions(rows)
}

// DeleteOneTx removes a hold and, through the cascading foreign key,
// its bundled add-ons. With expiredBefore set the delete only wins if
// the hold has already lapsed, which is what lets the reclaimer and
// the orchestrator race without coordination.
func (r *CartRepo) DeleteOneTx(ctx context.Context, tx *sql.Tx, id uint64, expiredBefore *time.Time) (bool, error) {
	var res sql.Result
	var err error
	if expiredBefore != nil {
		res, err = tx.ExecContext(ctx,
			`DELETE FROM cart_positions WHERE id = ? AND expires_at < ?`,
			id, expiredBefore.UTC())
	} else {
		res, err = tx.ExecContext(ctx, `DELETE FROM cart_positions WHERE id = ?`, id)
	}
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteManyTx removes the given holds unconditionally. Used by the
// orchestrator after promotion, inside the event lock.
func (r *CartRepo) DeleteManyTx(ctx context.Context, tx *sql.Tx, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := tx.ExecContext(ctx,
		`DELETE FROM cart_positions WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	return err
}

// ExtendTx pushes the expiry of every still-live hold in the cart
// forward and reports how many rows were touched. Lapsed holds are
// deliberately left alone: once expired, only a fresh availability
// check may revive a claim.
func (r *CartRepo) ExtendTx(ctx context.Context, tx *sql.Tx, cartID string, expires, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE cart_positions SET expires_at = ? WHERE cart_id = ? AND expires_at > ?`,
		expires.UTC(), cartID, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpiredSeatTx drops lapsed holds on one seat. Called inside the
// seat's lock right before a new claim is inserted, so the unique key
// on seat_id only fires for holds that are actually live. Bundled
// add-ons go away through the cascading foreign key.
func (r *CartRepo) DeleteExpiredSeatTx(ctx context.Context, tx *sql.Tx, seatID uint64, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM cart_positions WHERE seat_id = ? AND expires_at <= ?`,
		seatID, now.UTC())
	return err
}

// ExpiredIDsTx lists base positions whose hold has lapsed, oldest
// first. Add-ons are excluded; they go away with their parent.
func (r *CartRepo) ExpiredIDsTx(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM cart_positions
		 WHERE expires_at < ? AND is_bundled = 0
		 ORDER BY expires_at LIMIT ?`, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func collectCartPositions(rows *sql.Rows) ([]model.CartPosition, error) {
	var out []model.CartPosition
	for rows.Next() {
		p, err := scanCartPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// optID converts a nullable integer column into an optional id.
func optID(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	id := uint64(v.Int64)
	return &id
}
