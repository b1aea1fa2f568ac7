package model

// Seat is one assignable place in an event's seating plan. At most
// one active claimant may reference a seat at any time: either an
// unexpired cart hold or a non-canceled order position. The invariant
// is enforced by the seat checker inside the event lock and backstopped
// by unique keys in the schema.
//
// Fields:
//  ID         – primary key identifier.
//  EventID    – owning event.
//  SubeventID – date instance the seat belongs to (nullable).
//  Label      – human-readable seat name ("Row A Seat 3").
//  ItemID     – item the seat is sold as, if restricted (nullable).
//  Blocked    – organizer-side block; never sellable while set.
type Seat struct {
	ID         uint64  // seats.id
	EventID    uint64  // seats.event_id
	SubeventID *uint64 // seats.subevent_id (nullable)
	Label      string  // seats.label
	ItemID     *uint64 // seats.item_id (nullable)
	Blocked    bool    // seats.blocked
}
