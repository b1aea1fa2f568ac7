package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Voucher grants access to (or a discount on) specific items, with a
// bounded number of redemptions. A voucher with BlockQuota set
// reserves capacity on its quota even while unredeemed, so the
// availability evaluator counts it like a standing hold.
//
// Fields:
//  ID          – primary key identifier.
//  EventID     – owning event.
//  Code        – redemption code, unique per event.
//  ItemID      – item the voucher applies to (nullable = any).
//  VariationID – variation restriction (nullable).
//  SubeventID  – date-instance restriction (nullable).
//  QuotaID     – quota the voucher blocks/targets (nullable).
//  MaxUsages   – redemption ceiling; Redeemed may never exceed it.
//  Redeemed    – usages consumed so far, incremented under lock.
//  BlockQuota  – whether unredeemed usages consume quota capacity.
//  Price       – override price applied to backed positions (nullable).
//  ValidUntil  – expiry of the voucher itself (nullable).
type Voucher struct {
	ID          uint64           // vouchers.id
	EventID     uint64           // vouchers.event_id
	Code        string           // vouchers.code
	ItemID      *uint64          // vouchers.item_id (nullable)
	VariationID *uint64          // vouchers.variation_id (nullable)
	SubeventID  *uint64          // vouchers.subevent_id (nullable)
	QuotaID     *uint64          // vouchers.quota_id (nullable)
	MaxUsages   int64            // vouchers.max_usages
	Redeemed    int64            // vouchers.redeemed
	BlockQuota  bool             // vouchers.block_quota
	Price       *decimal.Decimal // vouchers.price (nullable)
	ValidUntil  *time.Time       // vouchers.valid_until (nullable)
}

// UsagesLeft returns how many redemptions remain.
func (v *Voucher) UsagesLeft() int64 { return v.MaxUsages - v.Redeemed }

// ExpiredAt reports whether the voucher can no longer be used at the
// given instant.
func (v *Voucher) ExpiredAt(now time.Time) bool {
	return v.ValidUntil != nil && now.After(*v.ValidUntil)
}
