package inventory

import "github.com/tixforge/tixforge/internal/model"

// Availability status values, ordered from worst to best. The
// evaluator returns exactly one of them together with the remaining
// unit count (nil for unlimited quotas).
const (
	// StatusGone: hard sold out; paid and counted pending orders alone
	// exhaust the capacity, or the quota covers nothing sellable.
	StatusGone = "GONE"
	// StatusReserved: sold out, but only once transient claims (cart
	// holds, blocking vouchers) are counted; capacity may come back.
	StatusReserved = "RESERVED"
	// StatusOrdered: the quota is unlimited and always grants capacity.
	StatusOrdered = "ORDERED"
	// StatusOK: capacity remains.
	StatusOK = "OK"
)

// Grants reports whether a status permits creating a new claim.
func Grants(status string) bool { return status == StatusOK || status == StatusOrdered }

// ComputeAvailability turns a live usage aggregate into an
// availability decision for one quota:
//
//	remaining = size - paid - pending(if counted) - cart holds - blocking vouchers
//
// The result is only authoritative when the usage was read inside the
// event lock; callers serving display snapshots may run it unlocked
// and must treat the answer as advisory. countPending was already
// applied when the usage was aggregated, so Pending is zero for events
// that do not count pending orders.
func ComputeAvailability(quota *model.Quota, usage QuotaUsage) (string, *int64) {
	zero := int64(0)
	if usage.CoveredItems == 0 {
		// Degenerate quota: nothing draws from it, nothing can be sold.
		return StatusGone, &zero
	}
	if quota.Unlimited() {
		return StatusOrdered, nil
	}
	size := *quota.Size
	hard := size - usage.Paid - usage.Pending
	remaining := hard - usage.CartHolds - usage.BlockingVouchers
	if remaining < 0 {
		remaining = 0
	}
	switch {
	case hard <= 0:
		return StatusGone, &zero
	case remaining <= 0:
		return StatusReserved, &zero
	default:
		return StatusOK, &remaining
	}
}
