// Package inventory implements the allocation core: the quota
// availability evaluator, the exclusive-resource checkers and the
// operations that create, extend, promote and reclaim claims against
// limited capacity. All capacity decisions happen inside a scoped
// event lock plus one storage transaction; handlers and background
// jobs are thin callers around this package.
package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/tixforge/tixforge/internal/lock"
	"github.com/tixforge/tixforge/internal/model"
	"github.com/tixforge/tixforge/internal/monitoring"
)

// Engine coordinates the lock manager and the store. One Engine is
// shared by all requests; it holds no per-operation state.
type Engine struct {
	store      Store
	locker     lock.Locker
	cartTTL    time.Duration
	paymentTTL time.Duration
	now        func() time.Time

	// afterValidate is a deterministic pause point between validation
	// and the reservation write. It exists so concurrency tests can
	// force the interleaving that causes oversell when locking is
	// disabled; it is nil outside tests.
	afterValidate func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithCartTTL sets how long a new cart hold remains valid.
func WithCartTTL(d time.Duration) Option { return func(e *Engine) { e.cartTTL = d } }

// WithPaymentTTL sets the payment deadline applied to pending orders.
func WithPaymentTTL(d time.Duration) Option { return func(e *Engine) { e.paymentTTL = d } }

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithValidateHook installs the post-validation pause point, for tests.
func WithValidateHook(fn func()) Option { return func(e *Engine) { e.afterValidate = fn } }

// NewEngine builds an engine over the given store and locker.
func NewEngine(store Store, locker lock.Locker, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		locker:     locker,
		cartTTL:    30 * time.Minute,
		paymentTTL: 24 * time.Hour,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// withLock acquires the given keys, runs fn, and releases. Lock
// timeouts are translated into the retryable typed error; wait time is
// observed for metrics either way.
func (e *Engine) withLock(ctx context.Context, keys []string, fn func() error) error {
	start := time.Now()
	scope, err := e.locker.Acquire(ctx, keys...)
	monitoring.ObserveLockWait(time.Since(start))
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			monitoring.LockTimeout()
			return newError(KindLockTimeout, "could not acquire allocation lock, please retry")
		}
		return err
	}
	defer scope.Release()
	return fn()
}

// inTx opens a transaction, runs fn and commits; any error rolls the
// transaction back. A conflict reported by the store on commit is
// passed through for the caller to classify.
func (e *Engine) inTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// quotaDemand accumulates how many units one operation wants to claim
// from each quota touched by its positions.
type quotaDemand struct {
	quota    *model.Quota
	units    int64
	itemName string
}

// collectDemand resolves the quotas of every position and sums the
// demanded units per quota. A position whose (item, variation) pair is
// covered by no quota at all is unsellable and rejected outright.
//
// A position backed by a block-quota voucher does not demand a unit
// from the quota the voucher blocks: that capacity is already reserved
// for the voucher and the evaluator counts it on the blocking side.
// The voucher checker still enforces the redemption ceiling.
func collectDemand(ctx context.Context, tx Tx, positions []*model.CartPosition, itemNames map[uint64]string) (map[uint64]*quotaDemand, error) {
	demand := make(map[uint64]*quotaDemand)
	vouchers := make(map[uint64]*model.Voucher)
	for _, pos := range positions {
		quotas, err := tx.QuotasForItem(ctx, pos.ItemID, pos.VariationID, pos.SubeventID)
		if err != nil {
			return nil, err
		}
		if len(quotas) == 0 {
			return nil, newError(KindQuotaExceeded, "%s is currently not for sale", itemNames[pos.ItemID])
		}
		var blocked *uint64
		if pos.VoucherID != nil {
			v, ok := vouchers[*pos.VoucherID]
			if !ok {
				if v, err = tx.VoucherByID(ctx, *pos.VoucherID, false); err != nil {
					return nil, err
				}
				vouchers[*pos.VoucherID] = v
			}
			if v.BlockQuota {
				blocked = v.QuotaID
			}
		}
		for i := range quotas {
			q := quotas[i]
			if blocked != nil && *blocked == q.ID {
				continue
			}
			d, ok := demand[q.ID]
			if !ok {
				d = &quotaDemand{quota: &q, itemName: itemNames[pos.ItemID]}
				demand[q.ID] = d
			}
			d.units++
		}
	}
	return demand, nil
}

// checkDemand re-evaluates every touched quota inside the current lock
// and transaction, and fails with QuotaExceeded as soon as one quota
// cannot cover the demanded units. excludeCarts removes the caller's
// own holds from the cart-holds term so promotion does not double
// count them.
func checkDemand(ctx context.Context, tx Tx, event *model.Event, demand map[uint64]*quotaDemand, excludeCarts []string, now time.Time) error {
	for _, d := range demand {
		usage, err := tx.QuotaUsage(ctx, d.quota, excludeCarts, event.CountPending, now)
		if err != nil {
			return err
		}
		status, remaining := ComputeAvailability(d.quota, usage)
		if !Grants(status) {
			monitoring.DenyAllocation("quota")
			return newError(KindQuotaExceeded, "%s is sold out", d.itemName)
		}
		if remaining != nil && *remaining < d.units {
			monitoring.DenyAllocation("quota")
			return newError(KindQuotaExceeded, "not enough capacity left for %s", d.itemName)
		}
	}
	return nil
}

// runCheckers executes the exclusive-resource checkers of every
// position. Positions backed by the same voucher are counted together
// so the ceiling holds across the whole operation.
func runCheckers(ctx context.Context, tx Tx, positions []*model.CartPosition, excludeCarts []string, now time.Time) error {
	voucherSeen := make(map[uint64]int64)
	membershipSeen := make(map[uint64]int64)
	for _, pos := range positions {
		for _, c := range checkersFor(pos) {
			var extra int64
			switch c.(type) {
			case voucherChecker:
				extra = voucherSeen[*pos.VoucherID]
			case membershipChecker:
				extra = membershipSeen[*pos.MembershipID]
			}
			if err := c.check(ctx, tx, pos, extra, excludeCarts, now); err != nil {
				if kind := KindOf(err); kind != "" {
					monitoring.DenyAllocation(string(kind))
				}
				return err
			}
		}
		if pos.VoucherID != nil {
			voucherSeen[*pos.VoucherID]++
		}
		if pos.MembershipID != nil {
			membershipSeen[*pos.MembershipID]++
		}
	}
	return nil
}

// classifyConflict maps a storage conflict to the user-facing kind of
// the resource that raced, based on what the operation touched.
func classifyConflict(err error, hasSeat bool) error {
	if !errors.Is(err, ErrConflict) {
		return err
	}
	if hasSeat {
		return newError(KindSeatTaken, "seat is no longer available")
	}
	return newError(KindStorageConflict, "the item you selected is no longer available")
}
