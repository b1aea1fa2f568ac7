package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/tixforge/tixforge/internal/model"
)

// ErrConflict is returned by store implementations when a write loses
// a unique-constraint race (duplicate seat guard, voucher code, ...).
// The engine maps it to a terminal typed error; it is never retried.
var ErrConflict = errors.New("inventory: storage conflict")

// QuotaUsage carries the four live terms the availability evaluator
// aggregates, plus the number of (item, variation) pairs the quota
// covers. All counts are taken at query time inside the caller's
// transaction; nothing here is cached.
type QuotaUsage struct {
	CoveredItems     int64 // covered (item, variation) pairs
	Paid             int64 // non-canceled positions of paid orders
	Pending          int64 // non-canceled positions of unexpired pending orders
	CartHolds        int64 // unexpired cart positions, minus excluded carts
	BlockingVouchers int64 // unredeemed usages of block_quota vouchers, not expired
}

// Store opens transactions against the backing persistence layer.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is the closed capability set the engine needs from persistence.
// It is implemented by internal/repository on MySQL and by the
// in-memory fake used in tests. Every method that reads a counter the
// engine is about to mutate must be called inside the event lock; the
// forUpdate flags additionally take row locks as defense in depth.
type Tx interface {
	Commit() error
	Rollback() error

	// Catalog.
	EventByID(ctx context.Context, id uint64) (*model.Event, error)
	ItemByID(ctx context.Context, id uint64) (*model.Item, error)
	VariationByID(ctx context.Context, id uint64) (*model.ItemVariation, error)
	SubeventByID(ctx context.Context, id uint64) (*model.Subevent, error)
	BundledItems(ctx context.Context, baseItemID uint64) ([]model.BundledItem, error)

	// Quotas.
	QuotaByID(ctx context.Context, id uint64) (*model.Quota, error)
	QuotasForItem(ctx context.Context, itemID uint64, variationID, subeventID *uint64) ([]model.Quota, error)
	QuotaUsage(ctx context.Context, quota *model.Quota, excludeCarts []string, countPending bool, now time.Time) (QuotaUsage, error)

	// Vouchers.
	VoucherByCode(ctx context.Context, eventID uint64, code string, forUpdate bool) (*model.Voucher, error)
	VoucherByID(ctx context.Context, id uint64, forUpdate bool) (*model.Voucher, error)
	VoucherActiveHolds(ctx context.Context, voucherID uint64, excludeCarts []string, now time.Time) (int64, error)
	// RedeemVoucher adds delta to the redemption counter. For positive
	// deltas the update is guarded by redeemed+delta <= max_usages and
	// the boolean reports whether the guard held.
	RedeemVoucher(ctx context.Context, voucherID uint64, delta int64) (bool, error)

	// Seats.
	SeatByID(ctx context.Context, id uint64) (*model.Seat, error)
	SeatClaimed(ctx context.Context, seatID uint64, excludeCarts []string, now time.Time) (bool, error)

	// Memberships.
	MembershipByID(ctx context.Context, id uint64, forUpdate bool) (*model.Membership, error)
	MembershipTypeByID(ctx context.Context, id uint64) (*model.MembershipType, error)
	MembershipUsages(ctx context.Context, membershipID uint64, excludeCarts []string, now time.Time) ([]model.MembershipUsage, error)
	AdjustMembershipUsages(ctx context.Context, membershipID uint64, delta int64) error

	// Cart holds.
	InsertCartPositions(ctx context.Context, positions []*model.CartPosition) error
	CartPositionsByCart(ctx context.Context, cartID string) ([]model.CartPosition, error)
	CartPositionsByIDs(ctx context.Context, ids []uint64) ([]model.CartPosition, error)
	// DeleteCartPosition removes one hold and its bundled children.
	// When expiredBefore is non-nil the delete is conditional on
	// expires_at < *expiredBefore and the boolean reports whether this
	// caller won the row.
	DeleteCartPosition(ctx context.Context, id uint64, expiredBefore *time.Time) (bool, error)
	DeleteCartPositions(ctx context.Context, ids []uint64) error
	ExtendCart(ctx context.Context, cartID string, expires, now time.Time) (int64, error)
	ExpiredCartPositionIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error)
	// DeleteExpiredSeatHolds drops lapsed holds on one seat so the
	// seat's unique guard cannot reject a fresh claim on a row the
	// reclaimer has not swept yet.
	DeleteExpiredSeatHolds(ctx context.Context, seatID uint64, now time.Time) error

	// Orders.
	InsertOrder(ctx context.Context, order *model.Order) error
	InsertOrderPositions(ctx context.Context, positions []*model.OrderPosition) error
	OrderByCode(ctx context.Context, code string, forUpdate bool) (*model.Order, error)
	OrderPositionsByOrder(ctx context.Context, orderID uint64) ([]model.OrderPosition, error)
	UpdateOrderStatus(ctx context.Context, orderID uint64, status string) error
	// CancelOrderPositions flags all positions of the order canceled
	// and clears their seat guards.
	CancelOrderPositions(ctx context.Context, orderID uint64) error
	// OverduePendingOrders lists codes of pending orders whose payment
	// deadline has passed, for the reclaimer to expire one by one.
	OverduePendingOrders(ctx context.Context, now time.Time, limit int) ([]string, error)

	// Ledger.
	InsertLedgerEntries(ctx context.Context, entries []*model.LedgerEntry) error
}
