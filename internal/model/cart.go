package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartPosition is a time-bounded provisional claim on one unit of
// inventory. It is created on add-to-cart, its expiry is pushed
// forward on every checkout step, and it disappears in exactly one of
// three ways: promotion into an OrderPosition, explicit removal by the
// shopper, or reclamation after ExpiresAt has passed.
//
// Fields:
//  ID          – primary key identifier.
//  CartID      – session-scoped group the position belongs to.
//  EventID     – owning event.
//  ItemID      – item being claimed.
//  VariationID – optional variation (nullable).
//  SubeventID  – optional date instance (nullable).
//  VoucherID   – voucher backing this position, if any (nullable).
//  SeatID      – specific seat claimed, if any (nullable).
//  MembershipID– membership consumed by this position (nullable).
//  ParentID    – for bundled add-ons, the parent cart position.
//  IsBundled   – true for add-on positions created with a parent.
//  Price       – price at claim time; copied verbatim on promotion.
//  ExpiresAt   – instant after which the claim no longer counts.
//  CreatedAt   – creation timestamp.
type CartPosition struct {
	ID           uint64          // cart_positions.id
	CartID       string          // cart_positions.cart_id
	EventID      uint64          // cart_positions.event_id
	ItemID       uint64          // cart_positions.item_id
	VariationID  *uint64         // cart_positions.variation_id (nullable)
	SubeventID   *uint64         // cart_positions.subevent_id (nullable)
	VoucherID    *uint64         // cart_positions.voucher_id (nullable)
	SeatID       *uint64         // cart_positions.seat_id (nullable)
	MembershipID *uint64         // cart_positions.membership_id (nullable)
	ParentID     *uint64         // cart_positions.parent_id (nullable)
	IsBundled    bool            // cart_positions.is_bundled
	Price        decimal.Decimal // cart_positions.price
	ExpiresAt    time.Time       // cart_positions.expires_at
	CreatedAt    time.Time       // cart_positions.created_at
}

// Expired reports whether the hold has lapsed at the given instant.
// Comparisons are done in UTC everywhere in the engine.
func (p *CartPosition) Expired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}
