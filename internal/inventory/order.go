package inventory

import (
	"context"

	"github.com/tixforge/tixforge/internal/lock"
	"github.com/tixforge/tixforge/internal/model"
	"github.com/tixforge/tixforge/internal/monitoring"
	"github.com/tixforge/tixforge/internal/utils"
)

// OrderRequest describes one checkout confirmation. PositionIDs names
// the cart holds to promote; they must all belong to CartID.
type OrderRequest struct {
	EventID      uint64
	CartID       string
	PositionIDs  []uint64
	Email        string
	Locale       string
	SalesChannel string
}

// PerformOrder re-validates every constraint inside the event lock and
// atomically promotes the cart holds into a pending order. Time has
// passed since the holds were created, so nothing from add-to-cart
// time is trusted: availability and every exclusive resource are
// checked again, with the caller's own holds excluded from the counts
// they are about to leave.
//
// Any failure aborts the whole operation; there is no partial order.
// Side effects (settlement, notifications) belong to the caller and
// run strictly after this method returns.
func (e *Engine) PerformOrder(ctx context.Context, req OrderRequest) (*model.Order, error) {
	if len(req.PositionIDs) == 0 {
		return nil, newError(KindCartGone, "your cart is empty")
	}

	// Peek at the holds outside the lock to learn which seats the
	// operation touches; the authoritative re-fetch happens under the
	// lock and will notice anything that changed in between.
	keys := []string{lock.EventKey(req.EventID)}
	if err := e.inTx(ctx, func(tx Tx) error {
		positions, err := tx.CartPositionsByIDs(ctx, req.PositionIDs)
		if err != nil {
			return err
		}
		for _, p := range positions {
			if p.SeatID != nil {
				keys = append(keys, lock.SeatKey(*p.SeatID))
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	var order *model.Order
	hasSeat := len(keys) > 1
	err := e.withLock(ctx, keys, func() error {
		return e.inTx(ctx, func(tx Tx) error {
			now := e.now()
			event, err := tx.EventByID(ctx, req.EventID)
			if err != nil {
				return err
			}

			positions, err := tx.CartPositionsByIDs(ctx, req.PositionIDs)
			if err != nil {
				return err
			}
			if len(positions) != len(req.PositionIDs) {
				return newError(KindCartGone, "part of your cart has expired, please start over")
			}
			refs := make([]*model.CartPosition, 0, len(positions))
			itemNames := make(map[uint64]string, len(positions))
			for i := range positions {
				p := &positions[i]
				if p.CartID != req.CartID || p.EventID != req.EventID {
					return newError(KindCartGone, "this cart position does not belong to your session")
				}
				if p.Expired(now) {
					return newError(KindCartGone, "part of your cart has expired, please start over")
				}
				item, err := tx.ItemByID(ctx, p.ItemID)
				if err != nil {
					return err
				}
				itemNames[item.ID] = item.Name
				refs = append(refs, p)
			}

			// Re-run availability excluding this cart: the holds are
			// about to be promoted, not double counted, while all other
			// concurrent holds still count.
			exclude := []string{req.CartID}
			demand, err := collectDemand(ctx, tx, refs, itemNames)
			if err != nil {
				return err
			}
			if err := checkDemand(ctx, tx, event, demand, exclude, now); err != nil {
				return err
			}
			if err := runCheckers(ctx, tx, refs, exclude, now); err != nil {
				return err
			}

			if e.afterValidate != nil {
				e.afterValidate()
			}

			deadline := now.Add(e.paymentTTL)
			order = &model.Order{
				Code:         utils.OrderCode(),
				EventID:      event.ID,
				Status:       model.OrderStatusPending,
				Email:        req.Email,
				Locale:       req.Locale,
				SalesChannel: req.SalesChannel,
				Total:        cartTotal(positions),
				ExpiresAt:    &deadline,
				CreatedAt:    now,
			}
			if err := tx.InsertOrder(ctx, order); err != nil {
				return classifyConflict(err, hasSeat)
			}

			orderPositions := make([]*model.OrderPosition, 0, len(refs))
			for _, p := range refs {
				for _, c := range checkersFor(p) {
					if err := c.promote(ctx, tx, p); err != nil {
						return err
					}
				}
				orderPositions = append(orderPositions, &model.OrderPosition{
					OrderID:      order.ID,
					EventID:      p.EventID,
					ItemID:       p.ItemID,
					VariationID:  p.VariationID,
					SubeventID:   p.SubeventID,
					VoucherID:    p.VoucherID,
					SeatID:       p.SeatID,
					MembershipID: p.MembershipID,
					IsBundled:    p.IsBundled,
					Price:        p.Price,
					CreatedAt:    now,
				})
			}
			if err := tx.InsertOrderPositions(ctx, orderPositions); err != nil {
				return classifyConflict(err, hasSeat)
			}
			if err := tx.DeleteCartPositions(ctx, req.PositionIDs); err != nil {
				return err
			}

			ledger := make([]*model.LedgerEntry, 0, len(orderPositions))
			for _, op := range orderPositions {
				itemID := op.ItemID
				ledger = append(ledger, &model.LedgerEntry{
					OrderID:   order.ID,
					ItemID:    &itemID,
					Count:     1,
					Amount:    op.Price,
					CreatedAt: now,
				})
			}
			return tx.InsertLedgerEntries(ctx, ledger)
		})
	})
	if err != nil {
		return nil, err
	}
	monitoring.OrderCreated()
	return order, nil
}

// MarkPaid transitions a pending order to paid after the payment
// collaborator confirmed settlement. The transition happens inside the
// event lock because it changes how the order counts against quota on
// events that do not count pending orders.
func (e *Engine) MarkPaid(ctx context.Context, code string) (*model.Order, error) {
	return e.transition(ctx, code, model.OrderStatusPending, model.OrderStatusPaid, e.ensurePaidCapacity)
}

// ensurePaidCapacity re-runs the availability check at the moment a
// pending order becomes paid. On events that count pending orders the
// capacity was claimed at placement and nothing changes here; when
// pending orders do not count, payment is the claim point and the
// order's demand must still fit next to everything already paid.
func (e *Engine) ensurePaidCapacity(ctx context.Context, tx Tx, order *model.Order) error {
	event, err := tx.EventByID(ctx, order.EventID)
	if err != nil {
		return err
	}
	if event.CountPending {
		return nil
	}
	positions, err := tx.OrderPositionsByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	refs := make([]*model.CartPosition, 0, len(positions))
	itemNames := make(map[uint64]string, len(positions))
	for i := range positions {
		p := &positions[i]
		if p.Canceled {
			continue
		}
		item, err := tx.ItemByID(ctx, p.ItemID)
		if err != nil {
			return err
		}
		itemNames[item.ID] = item.Name
		refs = append(refs, &model.CartPosition{
			EventID:     p.EventID,
			ItemID:      p.ItemID,
			VariationID: p.VariationID,
			SubeventID:  p.SubeventID,
			VoucherID:   p.VoucherID,
		})
	}
	demand, err := collectDemand(ctx, tx, refs, itemNames)
	if err != nil {
		return err
	}
	// The order itself is still pending here, so its own positions are
	// not part of the usage the check runs against.
	return checkDemand(ctx, tx, event, demand, nil, e.now())
}

// CancelOrder cancels a pending or paid order: positions are flagged
// canceled (rows retained for audit), seats are freed, voucher and
// membership counters are decremented, and reversing ledger entries
// are written. Capacity becomes visible to the evaluator the moment
// the transaction commits.
func (e *Engine) CancelOrder(ctx context.Context, code string) (*model.Order, error) {
	return e.transition(ctx, code, "", model.OrderStatusCanceled, e.releasePositions)
}

// ExpireOrder is the reclaimer's variant of cancellation for pending
// orders whose payment deadline passed: same resource release, final
// status EXPIRED.
func (e *Engine) ExpireOrder(ctx context.Context, code string) (*model.Order, error) {
	return e.transition(ctx, code, model.OrderStatusPending, model.OrderStatusExpired, e.releasePositions)
}

// releasePositions undoes the resource side of promotion for every
// live position of an order and records the reversing ledger entries.
func (e *Engine) releasePositions(ctx context.Context, tx Tx, order *model.Order) error {
	now := e.now()
	positions, err := tx.OrderPositionsByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	ledger := make([]*model.LedgerEntry, 0, len(positions))
	for i := range positions {
		p := &positions[i]
		if p.Canceled {
			continue
		}
		for _, c := range releaseCheckersFor(p) {
			if err := c.release(ctx, tx, p); err != nil {
				return err
			}
		}
		itemID := p.ItemID
		ledger = append(ledger, &model.LedgerEntry{
			OrderID:   order.ID,
			ItemID:    &itemID,
			Count:     -1,
			Amount:    p.Price.Neg(),
			CreatedAt: now,
		})
	}
	if err := tx.CancelOrderPositions(ctx, order.ID); err != nil {
		return err
	}
	return tx.InsertLedgerEntries(ctx, ledger)
}

// transition moves an order between statuses inside the event lock.
// from == "" accepts both pending and paid as the source status.
func (e *Engine) transition(ctx context.Context, code, from, to string, extra func(ctx context.Context, tx Tx, order *model.Order) error) (*model.Order, error) {
	// Resolve the event outside the lock; the status check repeats
	// under the lock on the row-locked order.
	var eventID uint64
	if err := e.inTx(ctx, func(tx Tx) error {
		order, err := tx.OrderByCode(ctx, code, false)
		if err != nil {
			return err
		}
		if order == nil {
			return newError(KindOrderState, "unknown order %s", code)
		}
		eventID = order.EventID
		return nil
	}); err != nil {
		return nil, err
	}

	var out *model.Order
	err := e.withLock(ctx, []string{lock.EventKey(eventID)}, func() error {
		return e.inTx(ctx, func(tx Tx) error {
			order, err := tx.OrderByCode(ctx, code, true)
			if err != nil {
				return err
			}
			if order == nil {
				return newError(KindOrderState, "unknown order %s", code)
			}
			switch {
			case from != "" && order.Status != from:
				return newError(KindOrderState, "order %s is %s, not %s", code, order.Status, from)
			case from == "" && order.Status != model.OrderStatusPending && order.Status != model.OrderStatusPaid:
				return newError(KindOrderState, "order %s is already %s", code, order.Status)
			}
			if extra != nil {
				if err := extra(ctx, tx, order); err != nil {
					return err
				}
			}
			if err := tx.UpdateOrderStatus(ctx, order.ID, to); err != nil {
				return err
			}
			order.Status = to
			out = order
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
