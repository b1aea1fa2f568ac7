package model

import "github.com/shopspring/decimal"

// Item is a sellable product of an event, e.g. a ticket category.
// Items draw capacity from one or more quotas through the
// quota_items link table; selling any item covered by a quota
// decrements that shared quota.
//
// Fields:
//  ID           – primary key identifier.
//  EventID      – owning event.
//  Name         – display name.
//  DefaultPrice – list price used when no voucher overrides it.
//  Active       – whether the item is currently sellable.
//  HasVariations– true when the item is sold via its variations only.
type Item struct {
	ID            uint64          // items.id
	EventID       uint64          // items.event_id
	Name          string          // items.name
	DefaultPrice  decimal.Decimal // items.default_price
	Active        bool            // items.active
	HasVariations bool            // items.has_variations
}

// ItemVariation is a concrete variant of an item (e.g. "adult",
// "reduced"). Variations can carry their own price and can be covered
// by different quotas than their siblings.
type ItemVariation struct {
	ID      uint64           // item_variations.id
	ItemID  uint64           // item_variations.item_id
	Name    string           // item_variations.name
	Price   *decimal.Decimal // item_variations.price (nullable, falls back to item)
	Active  bool             // item_variations.active
}

// BundledItem declares a mandatory add-on: whenever the base item is
// placed in a cart, one position of the bundled item (drawing on its
// own quotas) is created alongside it. Both succeed or neither does.
type BundledItem struct {
	ID              uint64           // bundled_items.id
	BaseItemID      uint64           // bundled_items.base_item_id
	BundledItemID   uint64           // bundled_items.bundled_item_id
	BundledVariation *uint64         // bundled_items.bundled_variation_id (nullable)
	DesignatedPrice decimal.Decimal  // bundled_items.designated_price
}
