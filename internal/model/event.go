package model

import "time"

// Event is the scheduling and tenancy root. Quotas, items, orders and
// seats all belong to exactly one event. Events are never deleted;
// organizers disable sales by clearing the Live flag instead so that
// historical orders stay resolvable.
//
// Fields:
//  ID           – primary key identifier.
//  OrganizerID  – owning organizer account.
//  Slug         – URL-safe identifier, unique per organizer.
//  Name         – display name.
//  Currency     – ISO 4217 code applied to all prices of the event.
//  Live         – whether the shop is open; soft-disable switch.
//  CountPending – whether unexpired pending orders consume quota.
//  StartsAt     – when the event itself takes place.
//  EndsAt       – end of the event; date spans feed the membership
//                 parallel-usage rule.
//  SalesStart   – optional opening of the sales window.
//  SalesEnd     – optional close of the sales window.
//  CreatedAt    – creation timestamp.
type Event struct {
	ID           uint64     // events.id
	OrganizerID  uint64     // events.organizer_id
	Slug         string     // events.slug
	Name         string     // events.name
	Currency     string     // events.currency
	Live         bool       // events.live
	CountPending bool       // events.count_pending
	StartsAt     time.Time  // events.starts_at
	EndsAt       time.Time  // events.ends_at
	SalesStart   *time.Time // events.sales_start (nullable)
	SalesEnd     *time.Time // events.sales_end (nullable)
	CreatedAt    time.Time  // events.created_at
}

// SalesOpen reports whether the event accepts new cart holds at the
// given instant. A nil bound leaves that side of the window open.
func (e *Event) SalesOpen(now time.Time) bool {
	if !e.Live {
		return false
	}
	if e.SalesStart != nil && now.Before(*e.SalesStart) {
		return false
	}
	if e.SalesEnd != nil && now.After(*e.SalesEnd) {
		return false
	}
	return true
}

// Subevent is a single date instance of a recurring event series.
// Quotas and cart positions may be scoped to one subevent; a nil
// subevent reference means the resource applies to the whole event.
type Subevent struct {
	ID       uint64    // subevents.id
	EventID  uint64    // subevents.event_id
	Name     string    // subevents.name
	StartsAt time.Time // subevents.starts_at
	EndsAt   time.Time // subevents.ends_at
}
