package inventory

import (
	"context"
	"log"
	"time"

	"github.com/tixforge/tixforge/internal/monitoring"
)

// ReclaimExpired deletes cart holds whose expiry has passed and marks
// overdue pending orders expired, freeing their capacity for the
// evaluator. It does not take the event lock: every delete is
// conditional on the row still being expired, so racing against a
// concurrent promotion is harmless. If the orchestrator deleted the
// hold first (promotion), the conditional delete hits zero rows; if
// the reclaimer wins, the orchestrator's re-fetch notices the missing
// hold and fails with CartPositionGone. Reclaiming an already-reclaimed
// hold is a no-op, never an error.
func (e *Engine) ReclaimExpired(ctx context.Context) (int64, error) {
	now := e.now()
	var reclaimed int64
	for {
		var batch []uint64
		if err := e.inTx(ctx, func(tx Tx) error {
			ids, err := tx.ExpiredCartPositionIDs(ctx, now, 500)
			if err != nil {
				return err
			}
			batch = ids
			for _, id := range ids {
				won, err := tx.DeleteCartPosition(ctx, id, &now)
				if err != nil {
					return err
				}
				if won {
					reclaimed++
				}
			}
			return nil
		}); err != nil {
			return reclaimed, err
		}
		if len(batch) < 500 {
			break
		}
	}

	// Overdue pending orders are expired one by one through the same
	// locked transition cancellation uses, so vouchers, seats and
	// memberships are released consistently.
	var overdue []string
	if err := e.inTx(ctx, func(tx Tx) error {
		codes, err := tx.OverduePendingOrders(ctx, now, 500)
		if err != nil {
			return err
		}
		overdue = codes
		return nil
	}); err != nil {
		return reclaimed, err
	}
	for _, code := range overdue {
		if _, err := e.ExpireOrder(ctx, code); err != nil {
			// A concurrent payment or cancellation may have moved the
			// order on; that is not a sweep failure.
			if IsKind(err, KindOrderState) {
				continue
			}
			log.Printf("reclaimer: expiring order %s failed: %v", code, err)
		}
	}

	if reclaimed > 0 {
		monitoring.HoldsReclaimed(reclaimed)
	}
	return reclaimed, nil
}

// RunReclaimer sweeps expired holds on the given interval until the
// context is canceled. Intended to run as one background goroutine per
// process; overlapping sweeps from several nodes are safe because all
// deletes are conditional.
func (e *Engine) RunReclaimer(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.ReclaimExpired(ctx); err != nil {
				log.Printf("reclaimer: sweep failed: %v", err)
			}
		}
	}
}
