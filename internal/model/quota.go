package model

// Quota is a named pool of sellable capacity shared by one or more
// (item, variation) pairs of an event. Size is a pointer: nil means
// unlimited capacity. Availability is never cached on the row; it is
// recomputed live from orders, holds and blocking vouchers each time
// a decision is made (see internal/inventory).
//
// Fields:
//  ID         – primary key identifier.
//  EventID    – owning event.
//  SubeventID – optional date-instance scoping (nullable).
//  Name       – organizer-facing label.
//  Size       – capacity, nil = unlimited.
type Quota struct {
	ID         uint64  // quotas.id
	EventID    uint64  // quotas.event_id
	SubeventID *uint64 // quotas.subevent_id (nullable)
	Name       string  // quotas.name
	Size       *int64  // quotas.size (nullable = unlimited)
}

// Unlimited reports whether the quota never runs out.
func (q *Quota) Unlimited() bool { return q.Size == nil }

// QuotaItem links a quota to one covered (item, variation) pair.
// A nil VariationID covers the plain item.
type QuotaItem struct {
	QuotaID     uint64  // quota_items.quota_id
	ItemID      uint64  // quota_items.item_id
	VariationID *uint64 // quota_items.variation_id (nullable)
}
