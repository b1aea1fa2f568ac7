package inventory

import (
	"context"
	"time"

	"github.com/tixforge/tixforge/internal/model"
)

// resourceChecker validates and finalizes one kind of exclusive
// resource a position may claim besides quota capacity. The set of
// kinds is small and closed (voucher, seat, membership), so dispatch
// is a fixed slice built per position rather than open polymorphism.
//
// check runs inside the event lock before a hold or order is written;
// promote runs in the same transaction that converts a hold into an
// order position; release undoes promote when a position is canceled.
type resourceChecker interface {
	check(ctx context.Context, tx Tx, pos *model.CartPosition, extra int64, exclude []string, now time.Time) error
	promote(ctx context.Context, tx Tx, pos *model.CartPosition) error
	release(ctx context.Context, tx Tx, pos *model.OrderPosition) error
}

// checkersFor returns the checkers applying to a position, based on
// which resource references it carries.
func checkersFor(pos *model.CartPosition) []resourceChecker {
	var cs []resourceChecker
	if pos.VoucherID != nil {
		cs = append(cs, voucherChecker{})
	}
	if pos.SeatID != nil {
		cs = append(cs, seatChecker{})
	}
	if pos.MembershipID != nil {
		cs = append(cs, membershipChecker{})
	}
	return cs
}

// voucherChecker enforces the redemption ceiling and the voucher's
// scope. At check time, active cart holds backed by the voucher count
// against max_usages alongside settled redemptions; extra is the
// number of positions the current operation is about to add on top.
type voucherChecker struct{}

func (voucherChecker) check(ctx context.Context, tx Tx, pos *model.CartPosition, extra int64, exclude []string, now time.Time) error {
	v, err := tx.VoucherByID(ctx, *pos.VoucherID, true)
	if err != nil {
		return err
	}
	if v.ExpiredAt(now) {
		return newError(KindVoucherInvalid, "voucher %s has expired", v.Code)
	}
	if v.ItemID != nil && *v.ItemID != pos.ItemID {
		return newError(KindVoucherInvalid, "voucher %s does not apply to this product", v.Code)
	}
	if v.VariationID != nil && (pos.VariationID == nil || *v.VariationID != *pos.VariationID) {
		return newError(KindVoucherInvalid, "voucher %s does not apply to this variation", v.Code)
	}
	if v.SubeventID != nil && (pos.SubeventID == nil || *v.SubeventID != *pos.SubeventID) {
		return newError(KindVoucherInvalid, "voucher %s does not apply to this date", v.Code)
	}
	holds, err := tx.VoucherActiveHolds(ctx, v.ID, exclude, now)
	if err != nil {
		return err
	}
	// extra counts only the earlier positions of this operation; the
	// position under check is the +1 the >= accounts for.
	if v.Redeemed+holds+extra >= v.MaxUsages {
		return newError(KindVoucherInvalid, "voucher %s has been used too often", v.Code)
	}
	return nil
}

func (voucherChecker) promote(ctx context.Context, tx Tx, pos *model.CartPosition) error {
	ok, err := tx.RedeemVoucher(ctx, *pos.VoucherID, 1)
	if err != nil {
		return err
	}
	if !ok {
		// Lost the guard despite the lock, e.g. a concurrent redemption
		// through another channel. Terminal, never retried here.
		return newError(KindVoucherInvalid, "voucher has been fully redeemed")
	}
	return nil
}

func (voucherChecker) release(ctx context.Context, tx Tx, pos *model.OrderPosition) error {
	_, err := tx.RedeemVoucher(ctx, *pos.VoucherID, -1)
	return err
}

// seatChecker enforces single occupancy: at most one unexpired hold or
// non-canceled order position per seat. Promotion needs no extra write
// because the inserted order position carries the seat guard; the
// schema's unique key is the backstop if two writers ever slip past
// the lock.
type seatChecker struct{}

func (seatChecker) check(ctx context.Context, tx Tx, pos *model.CartPosition, extra int64, exclude []string, now time.Time) error {
	seat, err := tx.SeatByID(ctx, *pos.SeatID)
	if err != nil {
		return err
	}
	if seat.EventID != pos.EventID {
		return newError(KindSeatTaken, "seat does not belong to this event")
	}
	if seat.SubeventID != nil && (pos.SubeventID == nil || *seat.SubeventID != *pos.SubeventID) {
		return newError(KindSeatTaken, "seat does not belong to this date")
	}
	if seat.Blocked {
		return newError(KindSeatTaken, "seat %s is not for sale", seat.Label)
	}
	if seat.ItemID != nil && *seat.ItemID != pos.ItemID {
		return newError(KindSeatTaken, "seat %s is not sold as this product", seat.Label)
	}
	claimed, err := tx.SeatClaimed(ctx, seat.ID, exclude, now)
	if err != nil {
		return err
	}
	if claimed {
		return newError(KindSeatTaken, "seat %s is no longer available", seat.Label)
	}
	return nil
}

func (seatChecker) promote(ctx context.Context, tx Tx, pos *model.CartPosition) error { return nil }

func (seatChecker) release(ctx context.Context, tx Tx, pos *model.OrderPosition) error { return nil }

// membershipChecker enforces the usage ceiling, validity window and
// the no-parallel-usage rule of the membership type. Date collisions
// are detected by scanning the membership's live usages inside the
// lock, never from a cached counter.
type membershipChecker struct{}

func (membershipChecker) check(ctx context.Context, tx Tx, pos *model.CartPosition, extra int64, exclude []string, now time.Time) error {
	m, err := tx.MembershipByID(ctx, *pos.MembershipID, true)
	if err != nil {
		return err
	}
	mt, err := tx.MembershipTypeByID(ctx, m.TypeID)
	if err != nil {
		return err
	}
	span, err := positionSpan(ctx, tx, pos)
	if err != nil {
		return err
	}
	if !m.ValidAt(span.StartsAt) {
		return newError(KindMembership, "membership is not valid at the time of this event")
	}
	usages, err := tx.MembershipUsages(ctx, m.ID, exclude, now)
	if err != nil {
		return err
	}
	// Settled usages are already counted in m.Usages; only pending
	// holds add on top of the counter.
	var pendingHolds int64
	for _, u := range usages {
		if !u.Settled {
			pendingHolds++
		}
	}
	if m.Usages+pendingHolds+extra >= mt.MaxUsages {
		return newError(KindMembership, "membership has no usages left")
	}
	if !mt.AllowParallelUsage {
		for _, u := range usages {
			if span.StartsAt.Before(u.EndsAt) && u.StartsAt.Before(span.EndsAt) {
				return newError(KindMembership, "membership already used for an event at this time")
			}
		}
	}
	return nil
}

func (membershipChecker) promote(ctx context.Context, tx Tx, pos *model.CartPosition) error {
	return tx.AdjustMembershipUsages(ctx, *pos.MembershipID, 1)
}

func (membershipChecker) release(ctx context.Context, tx Tx, pos *model.OrderPosition) error {
	return tx.AdjustMembershipUsages(ctx, *pos.MembershipID, -1)
}

// positionSpan resolves the date span a position occupies: the
// subevent's span when the position is date-scoped, the event's run
// time otherwise.
func positionSpan(ctx context.Context, tx Tx, pos *model.CartPosition) (*model.Subevent, error) {
	if pos.SubeventID != nil {
		return tx.SubeventByID(ctx, *pos.SubeventID)
	}
	ev, err := tx.EventByID(ctx, pos.EventID)
	if err != nil {
		return nil, err
	}
	return &model.Subevent{EventID: ev.ID, StartsAt: ev.StartsAt, EndsAt: ev.EndsAt}, nil
}

// releaseCheckersFor mirrors checkersFor for permanent positions being
// canceled.
func releaseCheckersFor(pos *model.OrderPosition) []resourceChecker {
	var cs []resourceChecker
	if pos.VoucherID != nil {
		cs = append(cs, voucherChecker{})
	}
	if pos.SeatID != nil {
		cs = append(cs, seatChecker{})
	}
	if pos.MembershipID != nil {
		cs = append(cs, membershipChecker{})
	}
	return cs
}
