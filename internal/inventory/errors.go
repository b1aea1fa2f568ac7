package inventory

import (
	"errors"
	"fmt"
)

// Kind classifies an allocation failure. Every kind maps to one
// user-facing message class at the operation boundary; none of them
// is fatal to the process.
type Kind string

const (
	// KindLockTimeout is transient; the caller should retry the whole
	// user action.
	KindLockTimeout Kind = "lock_timeout"
	// KindQuotaExceeded means the requested item is sold out for this
	// attempt.
	KindQuotaExceeded Kind = "quota_exceeded"
	// KindVoucherInvalid covers expired, exhausted and out-of-scope
	// vouchers.
	KindVoucherInvalid Kind = "voucher_invalid"
	// KindSeatTaken means the seat has another active claimant.
	KindSeatTaken Kind = "seat_taken"
	// KindMembership covers usage-limit, validity and date-collision
	// violations; the reason carries the specific cause.
	KindMembership Kind = "membership_violation"
	// KindCartGone means a referenced cart position no longer exists;
	// the shopper must restart checkout.
	KindCartGone Kind = "cart_position_gone"
	// KindStorageConflict is a unique-constraint race lost at the
	// database level. It is never retried automatically.
	KindStorageConflict Kind = "storage_conflict"
	// KindSalesClosed means the event is not live or outside its sales
	// window.
	KindSalesClosed Kind = "sales_closed"
	// KindOrderState rejects an order transition from the wrong status,
	// e.g. paying a canceled order.
	KindOrderState Kind = "order_state"
)

// Error is the typed failure returned by every engine operation. The
// Reason is safe to show to the shopper.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Reason) }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind from err, or "" when err is not an
// engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
