package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tixforge/tixforge/internal/model"
)

// VoucherRepo provides data access to the vouchers table.
type VoucherRepo struct {
	db *sql.DB
}

// NewVoucherRepo returns a VoucherRepo bound to the given database.
func NewVoucherRepo(db *sql.DB) *VoucherRepo { return &VoucherRepo{db: db} }

const voucherColumns = `id, event_id, code, item_id, variation_id, subevent_id,
       quota_id, max_usages, redeemed, block_quota, price, valid_until`

func scanVoucher(scanner interface{ Scan(...any) error }) (*model.Voucher, error) {
	var v model.Voucher
	var item, variation, subevent, quota sql.NullInt64
	var price sql.NullString
	var validUntil sql.NullTime
	err := scanner.Scan(&v.ID, &v.EventID, &v.Code, &item, &variation, &subevent,
		&quota, &v.MaxUsages, &v.Redeemed, &v.BlockQuota, &price, &validUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.ItemID = optID(item)
	v.VariationID = optID(variation)
	v.SubeventID = optID(subevent)
	v.QuotaID = optID(quota)
	if price.Valid {
		p, err := decimal.NewFromString(price.String)
		if err != nil {
			return nil, err
		}
		v.Price = &p
	}
	if validUntil.Valid {
		t := validUntil.Time
		v.ValidUntil = &t
	}
	return &v, nil
}

// ByCodeTx fetches one voucher by its redemption code within the event.
// forUpdate takes a row lock during promotion so the redeemed counter
// cannot move under the guard.
func (r *VoucherRepo) ByCodeTx(ctx context.Context, tx *sql.Tx, eventID uint64, code string, forUpdate bool) (*model.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE event_id = ? AND code = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanVoucher(tx.QueryRowContext(ctx, query, eventID, code))
}

// ByIDTx fetches one voucher by id.
func (r *VoucherRepo) ByIDTx(ctx context.Context, tx *sql.Tx, id uint64, forUpdate bool) (*model.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanVoucher(tx.QueryRowContext(ctx, query, id))
}

// CreateTx inserts a voucher. The per-event unique key on code rejects
// duplicates.
func (r *VoucherRepo) CreateTx(ctx context.Context, tx *sql.Tx, v *model.Voucher) error {
	var price any
	if v.Price != nil {
		price = v.Price.String()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO vouchers (event_id, code, item_id, variation_id, subevent_id,
		        quota_id, max_usages, redeemed, block_quota, price, valid_until)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		v.EventID, v.Code, nullID(v.ItemID), nullID(v.VariationID),
		nullID(v.SubeventID), nullID(v.QuotaID), v.MaxUsages, v.BlockQuota,
		price, nullTime(v.ValidUntil))
	if err != nil {
		return translateErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	return nil
}

// ActiveHoldsTx counts unexpired cart positions backed by the voucher,
// minus excluded carts. The voucher checker adds this to the redeemed
// counter when enforcing the usage ceiling.
func (r *VoucherRepo) ActiveHoldsTx(ctx context.Context, tx *sql.Tx, voucherID uint64, excludeCarts []string, now time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM cart_positions WHERE voucher_id = ? AND expires_at > ?`
	args := []any{voucherID, now.UTC()}
	if clause, inArgs := notInCarts("cart_id", excludeCarts); clause != "" {
		query += clause
		args = append(args, inArgs...)
	}
	var n int64
	err := tx.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// RedeemTx moves the redemption counter by delta. Positive deltas are
// guarded against the ceiling in the UPDATE itself, so two promotions
// racing past the checker cannot both land; the boolean reports whether
// the guard held. Negative deltas (cancellation) are clamped at zero.
func (r *VoucherRepo) RedeemTx(ctx context.Context, tx *sql.Tx, voucherID uint64, delta int64) (bool, error) {
	var res sql.Result
	var err error
	if delta >= 0 {
		res, err = tx.ExecContext(ctx,
			`UPDATE vouchers SET redeemed = redeemed + ?
			 WHERE id = ? AND redeemed + ? <= max_usages`,
			delta, voucherID, delta)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE vouchers SET redeemed = GREATEST(redeemed + ?, 0) WHERE id = ?`,
			delta, voucherID)
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
