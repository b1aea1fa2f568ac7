package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/tixforge/tixforge/internal/inventory"
	"github.com/tixforge/tixforge/internal/model"
)

// Store implements inventory.Store on MySQL. It owns one repository
// per aggregate and hands out transactions that expose the full
// capability set to the engine.
type Store struct {
	db          *sql.DB
	events      *EventRepo
	items       *ItemRepo
	quotas      *QuotaRepo
	carts       *CartRepo
	orders      *OrderRepo
	vouchers    *VoucherRepo
	seats       *SeatRepo
	memberships *MembershipRepo
}

// NewStore wires all repositories onto one database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:          db,
		events:      NewEventRepo(db),
		items:       NewItemRepo(db),
		quotas:      NewQuotaRepo(db),
		carts:       NewCartRepo(db),
		orders:      NewOrderRepo(db),
		vouchers:    NewVoucherRepo(db),
		seats:       NewSeatRepo(db),
		memberships: NewMembershipRepo(db),
	}
}

// DB exposes the raw handle for admin-side repositories that do not go
// through the engine.
func (s *Store) DB() *sql.DB { return s.db }

// Begin opens a transaction implementing inventory.Tx.
func (s *Store) Begin(ctx context.Context) (inventory.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{store: s, tx: tx}, nil
}

// sqlTx adapts one *sql.Tx plus the repositories into the engine's
// transaction interface.
type sqlTx struct {
	store *Store
	tx    *sql.Tx
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

func (t *sqlTx) EventByID(ctx context.Context, id uint64) (*model.Event, error) {
	return t.store.events.GetTx(ctx, t.tx, id)
}

func (t *sqlTx) ItemByID(ctx context.Context, id uint64) (*model.Item, error) {
	return t.store.items.GetTx(ctx, t.tx, id)
}

func (t *sqlTx) VariationByID(ctx context.Context, id uint64) (*model.ItemVariation, error) {
	return t.store.items.VariationTx(ctx, t.tx, id)
}

func (t *sqlTx) SubeventByID(ctx context.Context, id uint64) (*model.Subevent, error) {
	return t.store.events.SubeventTx(ctx, t.tx, id)
}

func (t *sqlTx) BundledItems(ctx context.Context, baseItemID uint64) ([]model.BundledItem, error) {
	return t.store.items.BundledItemsTx(ctx, t.tx, baseItemID)
}

func (t *sqlTx) QuotaByID(ctx context.Context, id uint64) (*model.Quota, error) {
	return t.store.quotas.GetTx(ctx, t.tx, id)
}

func (t *sqlTx) QuotasForItem(ctx context.Context, itemID uint64, variationID, subeventID *uint64) ([]model.Quota, error) {
	return t.store.quotas.ForItemTx(ctx, t.tx, itemID, variationID, subeventID)
}

func (t *sqlTx) QuotaUsage(ctx context.Context, quota *model.Quota, excludeCarts []string, countPending bool, now time.Time) (inventory.QuotaUsage, error) {
	return t.store.quotas.UsageTx(ctx, t.tx, quota, excludeCarts, countPending, now)
}

func (t *sqlTx) VoucherByCode(ctx context.Context, eventID uint64, code string, forUpdate bool) (*model.Voucher, error) {
	return t.store.vouchers.ByCodeTx(ctx, t.tx, eventID, code, forUpdate)
}

func (t *sqlTx) VoucherByID(ctx context.Context, id uint64, forUpdate bool) (*model.Voucher, error) {
	return t.store.vouchers.ByIDTx(ctx, t.tx, id, forUpdate)
}

func (t *sqlTx) VoucherActiveHolds(ctx context.Context, voucherID uint64, excludeCarts []string, now time.Time) (int64, error) {
	return t.store.vouchers.ActiveHoldsTx(ctx, t.tx, voucherID, excludeCarts, now)
}

func (t *sqlTx) RedeemVoucher(ctx context.Context, voucherID uint64, delta int64) (bool, error) {
	return t.store.vouchers.RedeemTx(ctx, t.tx, voucherID, delta)
}

func (t *sqlTx) SeatByID(ctx context.Context, id uint64) (*model.Seat, error) {
	return t.store.seats.ByIDTx(ctx, t.tx, id)
}

func (t *sqlTx) SeatClaimed(ctx context.Context, seatID uint64, excludeCarts []string, now time.Time) (bool, error) {
	return t.store.seats.ClaimedTx(ctx, t.tx, seatID, excludeCarts, now)
}

func (t *sqlTx) MembershipByID(ctx context.Context, id uint64, forUpdate bool) (*model.Membership, error) {
	return t.store.memberships.ByIDTx(ctx, t.tx, id, forUpdate)
}

func (t *sqlTx) MembershipTypeByID(ctx context.Context, id uint64) (*model.MembershipType, error) {
	return t.store.memberships.TypeTx(ctx, t.tx, id)
}

func (t *sqlTx) MembershipUsages(ctx context.Context, membershipID uint64, excludeCarts []string, now time.Time) ([]model.MembershipUsage, error) {
	return t.store.memberships.UsagesTx(ctx, t.tx, membershipID, excludeCarts, now)
}

func (t *sqlTx) AdjustMembershipUsages(ctx context.Context, membershipID uint64, delta int64) error {
	return t.store.memberships.AdjustTx(ctx, t.tx, membershipID, delta)
}

func (t *sqlTx) InsertCartPositions(ctx context.Context, positions []*model.CartPosition) error {
	return t.store.carts.InsertTx(ctx, t.tx, positions)
}

func (t *sqlTx) CartPositionsByCart(ctx context.Context, cartID string) ([]model.CartPosition, error) {
	return t.store.carts.ByCartTx(ctx, t.tx, cartID)
}

func (t *sqlTx) CartPositionsByIDs(ctx context.Context, ids []uint64) ([]model.CartPosition, error) {
	return t.store.carts.ByIDsTx(ctx, t.tx, ids)
}

func (t *sqlTx) DeleteCartPosition(ctx context.Context, id uint64, expiredBefore *time.Time) (bool, error) {
	return t.store.carts.DeleteOneTx(ctx, t.tx, id, expiredBefore)
}

func (t *sqlTx) DeleteCartPositions(ctx context.Context, ids []uint64) error {
	return t.store.carts.DeleteManyTx(ctx, t.tx, ids)
}

func (t *sqlTx) ExtendCart(ctx context.Context, cartID string, expires, now time.Time) (int64, error) {
	return t.store.carts.ExtendTx(ctx, t.tx, cartID, expires, now)
}

func (t *sqlTx) ExpiredCartPositionIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	return t.store.carts.ExpiredIDsTx(ctx, t.tx, now, limit)
}

func (t *sqlTx) DeleteExpiredSeatHolds(ctx context.Context, seatID uint64, now time.Time) error {
	return t.store.carts.DeleteExpiredSeatTx(ctx, t.tx, seatID, now)
}

func (t *sqlTx) InsertOrder(ctx context.Context, order *model.Order) error {
	return t.store.orders.InsertTx(ctx, t.tx, order)
}

func (t *sqlTx) InsertOrderPositions(ctx context.Context, positions []*model.OrderPosition) error {
	return t.store.orders.InsertPositionsTx(ctx, t.tx, positions)
}

func (t *sqlTx) OrderByCode(ctx context.Context, code string, forUpdate bool) (*model.Order, error) {
	return t.store.orders.ByCodeTx(ctx, t.tx, code, forUpdate)
}

func (t *sqlTx) OrderPositionsByOrder(ctx context.Context, orderID uint64) ([]model.OrderPosition, error) {
	return t.store.orders.PositionsTx(ctx, t.tx, orderID)
}

func (t *sqlTx) UpdateOrderStatus(ctx context.Context, orderID uint64, status string) error {
	return t.store.orders.UpdateStatusTx(ctx, t.tx, orderID, status)
}

func (t *sqlTx) CancelOrderPositions(ctx context.Context, orderID uint64) error {
	return t.store.orders.CancelPositionsTx(ctx, t.tx, orderID)
}

func (t *sqlTx) OverduePendingOrders(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return t.store.orders.OverduePendingTx(ctx, t.tx, now, limit)
}

func (t *sqlTx) InsertLedgerEntries(ctx context.Context, entries []*model.LedgerEntry) error {
	return t.store.orders.InsertLedgerTx(ctx, t.tx, entries)
}
