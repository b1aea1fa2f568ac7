package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tixforge/tixforge/internal/lock"
	"github.com/tixforge/tixforge/internal/model"
)

// AddToCartRequest describes one add-to-cart action. CartID groups
// positions of one shopping session; leaving it empty starts a new
// cart. Quantity applies to the requested item; a specific seat can
// only be claimed with quantity 1.
type AddToCartRequest struct {
	EventID      uint64
	ItemID       uint64
	VariationID  *uint64
	SubeventID   *uint64
	VoucherCode  string
	SeatID       *uint64
	MembershipID *uint64
	CartID       string
	Quantity     int
}

// AddToCart validates capacity and exclusive resources inside the
// event lock and, when everything still holds, writes the cart
// positions (including mandatory bundled add-ons) in one transaction.
// The returned positions all share the same CartID and expiry.
func (e *Engine) AddToCart(ctx context.Context, req AddToCartRequest) ([]model.CartPosition, error) {
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	if req.SeatID != nil && req.Quantity != 1 {
		return nil, newError(KindSeatTaken, "a specific seat can only be bought once")
	}
	cartID := req.CartID
	if cartID == "" {
		cartID = uuid.NewString()
	}

	keys := []string{lock.EventKey(req.EventID)}
	if req.SeatID != nil {
		keys = append(keys, lock.SeatKey(*req.SeatID))
	}

	var created []model.CartPosition
	err := e.withLock(ctx, keys, func() error {
		return e.inTx(ctx, func(tx Tx) error {
			now := e.now()
			event, err := tx.EventByID(ctx, req.EventID)
			if err != nil {
				return err
			}
			if !event.SalesOpen(now) {
				return newError(KindSalesClosed, "this shop is currently closed")
			}

			positions, itemNames, err := e.buildPositions(ctx, tx, event, cartID, req, now)
			if err != nil {
				return err
			}

			demand, err := collectDemand(ctx, tx, positions, itemNames)
			if err != nil {
				return err
			}
			// Own existing holds stay counted here: a cart claiming a
			// second unit competes with its own first one.
			if err := checkDemand(ctx, tx, event, demand, nil, now); err != nil {
				return err
			}
			if err := runCheckers(ctx, tx, positions, nil, now); err != nil {
				return err
			}

			if e.afterValidate != nil {
				e.afterValidate()
			}

			// A lapsed hold on this seat may still be waiting for the
			// reclaimer; clear it here so the unique guard only rejects
			// genuinely live claims.
			if req.SeatID != nil {
				if err := tx.DeleteExpiredSeatHolds(ctx, *req.SeatID, now); err != nil {
					return err
				}
			}
			if err := tx.InsertCartPositions(ctx, positions); err != nil {
				return classifyConflict(err, req.SeatID != nil)
			}
			created = make([]model.CartPosition, 0, len(positions))
			for _, p := range positions {
				created = append(created, *p)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// buildPositions assembles the cart positions one request expands to:
// quantity main positions plus one bundled child per bundle rule and
// main position. Prices are resolved voucher > variation > item.
func (e *Engine) buildPositions(ctx context.Context, tx Tx, event *model.Event, cartID string, req AddToCartRequest, now time.Time) ([]*model.CartPosition, map[uint64]string, error) {
	item, err := tx.ItemByID(ctx, req.ItemID)
	if err != nil {
		return nil, nil, err
	}
	if !item.Active || item.EventID != event.ID {
		return nil, nil, newError(KindQuotaExceeded, "%s is currently not for sale", item.Name)
	}
	itemNames := map[uint64]string{item.ID: item.Name}

	price := item.DefaultPrice
	if req.VariationID != nil {
		variation, err := tx.VariationByID(ctx, *req.VariationID)
		if err != nil {
			return nil, nil, err
		}
		if variation.ItemID != item.ID || !variation.Active {
			return nil, nil, newError(KindQuotaExceeded, "this variation of %s is not for sale", item.Name)
		}
		if variation.Price != nil {
			price = *variation.Price
		}
	} else if item.HasVariations {
		return nil, nil, newError(KindQuotaExceeded, "%s must be bought as one of its variations", item.Name)
	}

	var voucherID *uint64
	if req.VoucherCode != "" {
		voucher, err := tx.VoucherByCode(ctx, event.ID, req.VoucherCode, true)
		if err != nil {
			return nil, nil, err
		}
		voucherID = &voucher.ID
		if voucher.Price != nil {
			price = *voucher.Price
		}
	}

	bundles, err := tx.BundledItems(ctx, item.ID)
	if err != nil {
		return nil, nil, err
	}
	for _, b := range bundles {
		bundled, err := tx.ItemByID(ctx, b.BundledItemID)
		if err != nil {
			return nil, nil, err
		}
		itemNames[bundled.ID] = bundled.Name
	}

	expires := now.Add(e.cartTTL)
	positions := make([]*model.CartPosition, 0, req.Quantity*(1+len(bundles)))
	for i := 0; i < req.Quantity; i++ {
		parent := &model.CartPosition{
			CartID:       cartID,
			EventID:      event.ID,
			ItemID:       item.ID,
			VariationID:  req.VariationID,
			SubeventID:   req.SubeventID,
			VoucherID:    voucherID,
			MembershipID: req.MembershipID,
			Price:        price,
			ExpiresAt:    expires,
			CreatedAt:    now,
		}
		if i == 0 {
			parent.SeatID = req.SeatID
		}
		positions = append(positions, parent)
		for _, b := range bundles {
			positions = append(positions, &model.CartPosition{
				CartID:      cartID,
				EventID:     event.ID,
				ItemID:      b.BundledItemID,
				VariationID: b.BundledVariation,
				SubeventID:  req.SubeventID,
				IsBundled:   true,
				Price:       b.DesignatedPrice,
				ExpiresAt:   expires,
				CreatedAt:   now,
				// ParentID is wired by the store when the parent row
				// gets its id; bundled children directly follow their
				// parent in this slice.
			})
		}
	}
	return positions, itemNames, nil
}

// ExtendCart pushes the expiry of all still-active holds of a cart
// forward to now+cartTTL. Already-expired holds are left for the
// reclaimer; extension never resurrects a lapsed claim. The count of
// extended holds is returned.
func (e *Engine) ExtendCart(ctx context.Context, cartID string) (int64, error) {
	var extended int64
	err := e.inTx(ctx, func(tx Tx) error {
		now := e.now()
		n, err := tx.ExtendCart(ctx, cartID, now.Add(e.cartTTL), now)
		if err != nil {
			return err
		}
		extended = n
		return nil
	})
	return extended, err
}

// RemoveCartPosition deletes one hold (and its bundled children) on
// explicit shopper request. The atomic row delete is enough for
// correctness; no event lock is needed to give up capacity.
func (e *Engine) RemoveCartPosition(ctx context.Context, cartID string, positionID uint64) error {
	return e.inTx(ctx, func(tx Tx) error {
		positions, err := tx.CartPositionsByIDs(ctx, []uint64{positionID})
		if err != nil {
			return err
		}
		if len(positions) == 0 || positions[0].CartID != cartID {
			return newError(KindCartGone, "this cart position no longer exists")
		}
		if positions[0].IsBundled {
			return newError(KindCartGone, "bundled positions are removed with their parent")
		}
		deleted, err := tx.DeleteCartPosition(ctx, positionID, nil)
		if err != nil {
			return err
		}
		if !deleted {
			return newError(KindCartGone, "this cart position no longer exists")
		}
		return nil
	})
}

// CartPositions lists the current holds of a cart, expired ones
// excluded, for display purposes.
func (e *Engine) CartPositions(ctx context.Context, cartID string) ([]model.CartPosition, error) {
	var out []model.CartPosition
	err := e.inTx(ctx, func(tx Tx) error {
		positions, err := tx.CartPositionsByCart(ctx, cartID)
		if err != nil {
			return err
		}
		now := e.now()
		for _, p := range positions {
			if !p.Expired(now) {
				out = append(out, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// cartTotal sums position prices.
func cartTotal(positions []model.CartPosition) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.Price)
	}
	return total
}
