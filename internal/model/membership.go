package model

import "time"

// MembershipType defines the shape of a membership product: how many
// usages it grants and whether two usages may cover events that run at
// the same time.
type MembershipType struct {
	ID                 uint64 // membership_types.id
	OrganizerID        uint64 // membership_types.organizer_id
	Name               string // membership_types.name
	MaxUsages          int64  // membership_types.max_usages
	AllowParallelUsage bool   // membership_types.allow_parallel_usage
}

// Membership is a customer-scoped usage allowance. Usages are
// incremented when a backed position is promoted into an order and
// decremented when that position is canceled. The parallel-usage rule
// is checked by scanning the membership's live positions inside the
// event lock, never from a cached counter.
//
// Fields:
//  ID         – primary key identifier.
//  TypeID     – membership type defining the limits.
//  CustomerID – owning customer.
//  Usages     – usages consumed so far.
//  ValidFrom  – start of validity.
//  ValidUntil – end of validity.
type Membership struct {
	ID         uint64    // memberships.id
	TypeID     uint64    // memberships.type_id
	CustomerID uint64    // memberships.customer_id
	Usages     int64     // memberships.usages
	ValidFrom  time.Time // memberships.valid_from
	ValidUntil time.Time // memberships.valid_until
}

// ValidAt reports whether the membership covers the given instant.
func (m *Membership) ValidAt(t time.Time) bool {
	return !t.Before(m.ValidFrom) && !t.After(m.ValidUntil)
}

// MembershipUsage describes one live usage of a membership: the date
// span of the event (or subevent) a backed position belongs to. The
// membership checker compares spans to enforce the no-parallel rule.
// Settled usages (promoted order positions) are already included in
// Membership.Usages; unsettled ones are cart holds still pending.
type MembershipUsage struct {
	PositionID uint64    // cart or order position consuming the usage
	StartsAt   time.Time // start of the covered date span
	EndsAt     time.Time // end of the covered date span
	Settled    bool      // true when backed by an order position
}
