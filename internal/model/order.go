package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order status values. Only paid orders and unexpired pending orders
// (on events with CountPending enabled) consume quota.
const (
	OrderStatusPending  = "PENDING"
	OrderStatusPaid     = "PAID"
	OrderStatusExpired  = "EXPIRED"
	OrderStatusCanceled = "CANCELED"
)

// Order aggregates the positions a shopper bought in one checkout.
// Orders are never deleted; cancellation flips the status and flags
// the positions so the rows stay available for audit.
//
// Fields:
//  ID           – primary key identifier.
//  Code         – short public identifier handed to the shopper.
//  EventID      – owning event.
//  Status       – one of the OrderStatus* constants.
//  Email        – contact address for notifications.
//  Locale       – shopper locale for downstream messaging.
//  SalesChannel – channel the order came in through (web, box office).
//  Total        – sum of position prices at placement time.
//  ExpiresAt    – payment deadline for pending orders (nullable).
//  CreatedAt    – placement timestamp.
type Order struct {
	ID           uint64          // orders.id
	Code         string          // orders.code
	EventID      uint64          // orders.event_id
	Status       string          // orders.status
	Email        string          // orders.email
	Locale       string          // orders.locale
	SalesChannel string          // orders.sales_channel
	Total        decimal.Decimal // orders.total
	ExpiresAt    *time.Time      // orders.expires_at (nullable)
	CreatedAt    time.Time       // orders.created_at
}

// OrderPosition is the permanent counterpart of a CartPosition,
// created transactionally at promotion time. Canceling a position
// sets Canceled instead of deleting the row; the SeatGuard column is
// cleared at the same time so the seat's unique backstop frees up.
type OrderPosition struct {
	ID           uint64          // order_positions.id
	OrderID      uint64          // order_positions.order_id
	EventID      uint64          // order_positions.event_id
	ItemID       uint64          // order_positions.item_id
	VariationID  *uint64         // order_positions.variation_id (nullable)
	SubeventID   *uint64         // order_positions.subevent_id (nullable)
	VoucherID    *uint64         // order_positions.voucher_id (nullable)
	SeatID       *uint64         // order_positions.seat_id (nullable)
	MembershipID *uint64         // order_positions.membership_id (nullable)
	ParentID     *uint64         // order_positions.parent_id (nullable)
	IsBundled    bool            // order_positions.is_bundled
	Price        decimal.Decimal // order_positions.price
	Canceled     bool            // order_positions.canceled
	CreatedAt    time.Time       // order_positions.created_at
}
