package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tixforge/tixforge/internal/model"
)

// memStore is an in-memory Store used by the engine tests. Reads and
// writes go straight to the shared maps under one mutex; transactions
// keep an undo journal so a rollback restores the pre-transaction
// state, which is what the atomicity tests rely on. The unique-key
// backstops of the schema (seat guards, order codes) are simulated so
// lost races surface as ErrConflict exactly like on MySQL.
type memStore struct {
	mu  sync.Mutex
	seq uint64

	events          map[uint64]*model.Event
	subevents       map[uint64]*model.Subevent
	items           map[uint64]*model.Item
	variations      map[uint64]*model.ItemVariation
	bundles         map[uint64][]model.BundledItem
	quotas          map[uint64]*model.Quota
	quotaItems      map[uint64][]model.QuotaItem
	vouchers        map[uint64]*model.Voucher
	seats           map[uint64]*model.Seat
	memberships     map[uint64]*model.Membership
	membershipTypes map[uint64]*model.MembershipType
	cartPositions   map[uint64]*model.CartPosition
	orders          map[uint64]*model.Order
	orderPositions  map[uint64]*model.OrderPosition
	ledger          []*model.LedgerEntry
}

func newMemStore() *memStore {
	return &memStore{
		events:          make(map[uint64]*model.Event),
		subevents:       make(map[uint64]*model.Subevent),
		items:           make(map[uint64]*model.Item),
		variations:      make(map[uint64]*model.ItemVariation),
		bundles:         make(map[uint64][]model.BundledItem),
		quotas:          make(map[uint64]*model.Quota),
		quotaItems:      make(map[uint64][]model.QuotaItem),
		vouchers:        make(map[uint64]*model.Voucher),
		seats:           make(map[uint64]*model.Seat),
		memberships:     make(map[uint64]*model.Membership),
		membershipTypes: make(map[uint64]*model.MembershipType),
		cartPositions:   make(map[uint64]*model.CartPosition),
		orders:          make(map[uint64]*model.Order),
		orderPositions:  make(map[uint64]*model.OrderPosition),
	}
}

func (s *memStore) nextID() uint64 {
	s.seq++
	return s.seq
}

func (s *memStore) Begin(ctx context.Context) (Tx, error) {
	return &memTx{s: s}, nil
}

// Fixture helpers. All take the store lock themselves so tests can
// seed data without a transaction.

func (s *memStore) addEvent(live bool, countPending bool, startsAt, endsAt time.Time) *model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &model.Event{
		ID: s.nextID(), OrganizerID: 1, Slug: "ev", Name: "Event", Currency: "EUR",
		Live: live, CountPending: countPending, StartsAt: startsAt, EndsAt: endsAt,
	}
	s.events[e.ID] = e
	return e
}

func (s *memStore) addSubevent(eventID uint64, startsAt, endsAt time.Time) *model.Subevent {
	s.mu.Lock()
	defer s.mu.Unlock()
	se := &model.Subevent{ID: s.nextID(), EventID: eventID, Name: "Date", StartsAt: startsAt, EndsAt: endsAt}
	s.subevents[se.ID] = se
	return se
}

func (s *memStore) addItem(eventID uint64, name string, price string) *model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := &model.Item{
		ID: s.nextID(), EventID: eventID, Name: name,
		DefaultPrice: decimal.RequireFromString(price), Active: true,
	}
	s.items[it.ID] = it
	return it
}

func (s *memStore) addQuota(eventID uint64, size *int64, itemIDs ...uint64) *model.Quota {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := &model.Quota{ID: s.nextID(), EventID: eventID, Name: "Quota", Size: size}
	s.quotas[q.ID] = q
	for _, itemID := range itemIDs {
		s.quotaItems[q.ID] = append(s.quotaItems[q.ID], model.QuotaItem{QuotaID: q.ID, ItemID: itemID})
	}
	return q
}

func (s *memStore) addBundle(baseItemID, bundledItemID uint64, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[baseItemID] = append(s.bundles[baseItemID], model.BundledItem{
		ID: s.nextID(), BaseItemID: baseItemID, BundledItemID: bundledItemID,
		DesignatedPrice: decimal.RequireFromString(price),
	})
}

func (s *memStore) addVoucher(v *model.Voucher) *model.Voucher {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.ID = s.nextID()
	s.vouchers[v.ID] = v
	return v
}

func (s *memStore) addSeat(eventID uint64, label string) *model.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat := &model.Seat{ID: s.nextID(), EventID: eventID, Label: label}
	s.seats[seat.ID] = seat
	return seat
}

func (s *memStore) addMembershipType(maxUsages int64, allowParallel bool) *model.MembershipType {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &model.MembershipType{ID: s.nextID(), OrganizerID: 1, Name: "Season", MaxUsages: maxUsages, AllowParallelUsage: allowParallel}
	s.membershipTypes[t.ID] = t
	return t
}

func (s *memStore) addMembership(typeID uint64, validFrom, validUntil time.Time) *model.Membership {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &model.Membership{ID: s.nextID(), TypeID: typeID, CustomerID: 1, ValidFrom: validFrom, ValidUntil: validUntil}
	s.memberships[m.ID] = m
	return m
}

func (s *memStore) holdCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cartPositions)
}

// memTx applies writes immediately and journals their inverse.
type memTx struct {
	s    *memStore
	undo []func()
	done bool
}

func (t *memTx) Commit() error {
	t.undo = nil
	t.done = true
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.done = true
	return nil
}

func (t *memTx) EventByID(ctx context.Context, id uint64) (*model.Event, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	e, ok := t.s.events[id]
	if !ok {
		return nil, newError(KindSalesClosed, "unknown event")
	}
	cp := *e
	return &cp, nil
}

func (t *memTx) ItemByID(ctx context.Context, id uint64) (*model.Item, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	it, ok := t.s.items[id]
	if !ok {
		return nil, newError(KindQuotaExceeded, "unknown item")
	}
	cp := *it
	return &cp, nil
}

func (t *memTx) VariationByID(ctx context.Context, id uint64) (*model.ItemVariation, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	v, ok := t.s.variations[id]
	if !ok {
		return nil, newError(KindQuotaExceeded, "unknown variation")
	}
	cp := *v
	return &cp, nil
}

func (t *memTx) SubeventByID(ctx context.Context, id uint64) (*model.Subevent, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	se, ok := t.s.subevents[id]
	if !ok {
		return nil, newError(KindQuotaExceeded, "unknown date")
	}
	cp := *se
	return &cp, nil
}

func (t *memTx) BundledItems(ctx context.Context, baseItemID uint64) ([]model.BundledItem, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return append([]model.BundledItem(nil), t.s.bundles[baseItemID]...), nil
}

func (t *memTx) QuotaByID(ctx context.Context, id uint64) (*model.Quota, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	q, ok := t.s.quotas[id]
	if !ok {
		return nil, newError(KindQuotaExceeded, "unknown quota")
	}
	cp := *q
	return &cp, nil
}

func (t *memTx) QuotasForItem(ctx context.Context, itemID uint64, variationID, subeventID *uint64) ([]model.Quota, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []model.Quota
	for qid, covered := range t.s.quotaItems {
		q := t.s.quotas[qid]
		if q.SubeventID != nil && !idEq(q.SubeventID, subeventID) {
			continue
		}
		for _, qi := range covered {
			if qi.ItemID == itemID && idEq(qi.VariationID, variationID) {
				out = append(out, *q)
				break
			}
		}
	}
	return out, nil
}

func idEq(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (t *memTx) quotaCovers(quota *model.Quota, itemID uint64, variationID, subeventID *uint64) bool {
	if quota.SubeventID != nil && !idEq(quota.SubeventID, subeventID) {
		return false
	}
	for _, qi := range t.s.quotaItems[quota.ID] {
		if qi.ItemID == itemID && idEq(qi.VariationID, variationID) {
			return true
		}
	}
	return false
}

func excluded(cartID string, excludeCarts []string) bool {
	for _, c := range excludeCarts {
		if c == cartID {
			return true
		}
	}
	return false
}

func (t *memTx) QuotaUsage(ctx context.Context, quota *model.Quota, excludeCarts []string, countPending bool, now time.Time) (QuotaUsage, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var u QuotaUsage
	u.CoveredItems = int64(len(t.s.quotaItems[quota.ID]))

	for _, p := range t.s.orderPositions {
		if p.Canceled || !t.quotaCovers(quota, p.ItemID, p.VariationID, p.SubeventID) {
			continue
		}
		o := t.s.orders[p.OrderID]
		switch o.Status {
		case model.OrderStatusPaid:
			u.Paid++
		case model.OrderStatusPending:
			if countPending && (o.ExpiresAt == nil || o.ExpiresAt.After(now)) {
				u.Pending++
			}
		}
	}

	blockers := make(map[uint64]bool)
	for _, v := range t.s.vouchers {
		if v.QuotaID != nil && *v.QuotaID == quota.ID && v.BlockQuota &&
			v.Redeemed < v.MaxUsages && !v.ExpiredAt(now) {
			u.BlockingVouchers += v.MaxUsages - v.Redeemed
			blockers[v.ID] = true
		}
	}

	for _, p := range t.s.cartPositions {
		if !p.ExpiresAt.After(now) || excluded(p.CartID, excludeCarts) {
			continue
		}
		if t.quotaCovers(quota, p.ItemID, p.VariationID, p.SubeventID) {
			u.CartHolds++
		}
		if p.VoucherID != nil && blockers[*p.VoucherID] {
			u.BlockingVouchers--
		}
	}
	if u.BlockingVouchers < 0 {
		u.BlockingVouchers = 0
	}
	return u, nil
}

func (t *memTx) VoucherByCode(ctx context.Context, eventID uint64, code string, forUpdate bool) (*model.Voucher, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, v := range t.s.vouchers {
		if v.EventID == eventID && v.Code == code {
			cp := *v
			return &cp, nil
		}
	}
	return nil, newError(KindVoucherInvalid, "unknown voucher")
}

func (t *memTx) VoucherByID(ctx context.Context, id uint64, forUpdate bool) (*model.Voucher, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	v, ok := t.s.vouchers[id]
	if !ok {
		return nil, newError(KindVoucherInvalid, "unknown voucher")
	}
	cp := *v
	return &cp, nil
}

func (t *memTx) VoucherActiveHolds(ctx context.Context, voucherID uint64, excludeCarts []string, now time.Time) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var n int64
	for _, p := range t.s.cartPositions {
		if p.VoucherID != nil && *p.VoucherID == voucherID &&
			p.ExpiresAt.After(now) && !excluded(p.CartID, excludeCarts) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) RedeemVoucher(ctx context.Context, voucherID uint64, delta int64) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	v := t.s.vouchers[voucherID]
	if delta >= 0 && v.Redeemed+delta > v.MaxUsages {
		return false, nil
	}
	prev := v.Redeemed
	v.Redeemed += delta
	if v.Redeemed < 0 {
		v.Redeemed = 0
	}
	t.undo = append(t.undo, func() { v.Redeemed = prev })
	return true, nil
}

func (t *memTx) SeatByID(ctx context.Context, id uint64) (*model.Seat, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	seat, ok := t.s.seats[id]
	if !ok {
		return nil, newError(KindSeatTaken, "unknown seat")
	}
	cp := *seat
	return &cp, nil
}

func (t *memTx) SeatClaimed(ctx context.Context, seatID uint64, excludeCarts []string, now time.Time) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.seatClaimedLocked(seatID, excludeCarts, now), nil
}

func (t *memTx) seatClaimedLocked(seatID uint64, excludeCarts []string, now time.Time) bool {
	for _, p := range t.s.cartPositions {
		if p.SeatID != nil && *p.SeatID == seatID &&
			p.ExpiresAt.After(now) && !excluded(p.CartID, excludeCarts) {
			return true
		}
	}
	for _, p := range t.s.orderPositions {
		if p.SeatID != nil && *p.SeatID == seatID && !p.Canceled {
			return true
		}
	}
	return false
}

func (t *memTx) MembershipByID(ctx context.Context, id uint64, forUpdate bool) (*model.Membership, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	m, ok := t.s.memberships[id]
	if !ok {
		return nil, newError(KindMembership, "unknown membership")
	}
	cp := *m
	return &cp, nil
}

func (t *memTx) MembershipTypeByID(ctx context.Context, id uint64) (*model.MembershipType, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	mt, ok := t.s.membershipTypes[id]
	if !ok {
		return nil, newError(KindMembership, "unknown membership type")
	}
	cp := *mt
	return &cp, nil
}

func (t *memTx) span(eventID uint64, subeventID *uint64) (time.Time, time.Time) {
	if subeventID != nil {
		se := t.s.subevents[*subeventID]
		return se.StartsAt, se.EndsAt
	}
	e := t.s.events[eventID]
	return e.StartsAt, e.EndsAt
}

func (t *memTx) MembershipUsages(ctx context.Context, membershipID uint64, excludeCarts []string, now time.Time) ([]model.MembershipUsage, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []model.MembershipUsage
	for _, p := range t.s.cartPositions {
		if p.MembershipID != nil && *p.MembershipID == membershipID &&
			p.ExpiresAt.After(now) && !excluded(p.CartID, excludeCarts) {
			start, end := t.span(p.EventID, p.SubeventID)
			out = append(out, model.MembershipUsage{PositionID: p.ID, StartsAt: start, EndsAt: end})
		}
	}
	for _, p := range t.s.orderPositions {
		if p.MembershipID == nil || *p.MembershipID != membershipID || p.Canceled {
			continue
		}
		o := t.s.orders[p.OrderID]
		if o.Status != model.OrderStatusPending && o.Status != model.OrderStatusPaid {
			continue
		}
		start, end := t.span(p.EventID, p.SubeventID)
		out = append(out, model.MembershipUsage{PositionID: p.ID, StartsAt: start, EndsAt: end, Settled: true})
	}
	return out, nil
}

func (t *memTx) AdjustMembershipUsages(ctx context.Context, membershipID uint64, delta int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	m := t.s.memberships[membershipID]
	prev := m.Usages
	m.Usages += delta
	if m.Usages < 0 {
		m.Usages = 0
	}
	t.undo = append(t.undo, func() { m.Usages = prev })
	return nil
}

func (t *memTx) InsertCartPositions(ctx context.Context, positions []*model.CartPosition) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var lastParent uint64
	for _, p := range positions {
		if p.SeatID != nil {
			for _, other := range t.s.cartPositions {
				if other.SeatID != nil && *other.SeatID == *p.SeatID {
					return ErrConflict
				}
			}
			for _, other := range t.s.orderPositions {
				if other.SeatID != nil && *other.SeatID == *p.SeatID && !other.Canceled {
					return ErrConflict
				}
			}
		}
		if p.IsBundled && p.ParentID == nil && lastParent != 0 {
			parent := lastParent
			p.ParentID = &parent
		}
		p.ID = t.s.nextID()
		cp := *p
		t.s.cartPositions[p.ID] = &cp
		id := p.ID
		t.undo = append(t.undo, func() { delete(t.s.cartPositions, id) })
		if !p.IsBundled {
			lastParent = p.ID
		}
	}
	return nil
}

func (t *memTx) CartPositionsByCart(ctx context.Context, cartID string) ([]model.CartPosition, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []model.CartPosition
	for _, p := range t.s.cartPositions {
		if p.CartID == cartID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (t *memTx) CartPositionsByIDs(ctx context.Context, ids []uint64) ([]model.CartPosition, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []model.CartPosition
	for _, id := range ids {
		if p, ok := t.s.cartPositions[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (t *memTx) deleteCartLocked(id uint64) {
	p, ok := t.s.cartPositions[id]
	if !ok {
		return
	}
	delete(t.s.cartPositions, id)
	cp := *p
	t.undo = append(t.undo, func() { t.s.cartPositions[id] = &cp })
	for cid, child := range t.s.cartPositions {
		if child.ParentID != nil && *child.ParentID == id {
			childCopy := *child
			childID := cid
			delete(t.s.cartPositions, cid)
			t.undo = append(t.undo, func() { t.s.cartPositions[childID] = &childCopy })
		}
	}
}

func (t *memTx) DeleteCartPosition(ctx context.Context, id uint64, expiredBefore *time.Time) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p, ok := t.s.cartPositions[id]
	if !ok {
		return false, nil
	}
	if expiredBefore != nil && !p.ExpiresAt.Before(*expiredBefore) {
		return false, nil
	}
	t.deleteCartLocked(id)
	return true, nil
}

func (t *memTx) DeleteCartPositions(ctx context.Context, ids []uint64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, id := range ids {
		t.deleteCartLocked(id)
	}
	return nil
}

func (t *memTx) ExtendCart(ctx context.Context, cartID string, expires, now time.Time) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var n int64
	for _, p := range t.s.cartPositions {
		if p.CartID == cartID && p.ExpiresAt.After(now) {
			prev := p.ExpiresAt
			pos := p
			p.ExpiresAt = expires
			t.undo = append(t.undo, func() { pos.ExpiresAt = prev })
			n++
		}
	}
	return n, nil
}

func (t *memTx) DeleteExpiredSeatHolds(ctx context.Context, seatID uint64, now time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var stale []uint64
	for id, p := range t.s.cartPositions {
		if p.SeatID != nil && *p.SeatID == seatID && !p.ExpiresAt.After(now) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		t.deleteCartLocked(id)
	}
	return nil
}

func (t *memTx) ExpiredCartPositionIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []uint64
	for id, p := range t.s.cartPositions {
		if !p.IsBundled && p.ExpiresAt.Before(now) {
			out = append(out, id)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (t *memTx) InsertOrder(ctx context.Context, order *model.Order) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, o := range t.s.orders {
		if o.Code == order.Code {
			return ErrConflict
		}
	}
	order.ID = t.s.nextID()
	cp := *order
	t.s.orders[order.ID] = &cp
	id := order.ID
	t.undo = append(t.undo, func() { delete(t.s.orders, id) })
	return nil
}

func (t *memTx) InsertOrderPositions(ctx context.Context, positions []*model.OrderPosition) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, p := range positions {
		if p.SeatID != nil {
			for _, other := range t.s.orderPositions {
				if other.SeatID != nil && *other.SeatID == *p.SeatID && !other.Canceled {
					return ErrConflict
				}
			}
		}
		p.ID = t.s.nextID()
		cp := *p
		t.s.orderPositions[p.ID] = &cp
		id := p.ID
		t.undo = append(t.undo, func() { delete(t.s.orderPositions, id) })
	}
	return nil
}

func (t *memTx) OrderByCode(ctx context.Context, code string, forUpdate bool) (*model.Order, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, o := range t.s.orders {
		if o.Code == code {
			cp := *o
			return &cp, nil
		}
	}
	return nil, newError(KindOrderState, "unknown order %s", code)
}

func (t *memTx) OrderPositionsByOrder(ctx context.Context, orderID uint64) ([]model.OrderPosition, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []model.OrderPosition
	for _, p := range t.s.orderPositions {
		if p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, orderID uint64, status string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	o := t.s.orders[orderID]
	prev := o.Status
	o.Status = status
	t.undo = append(t.undo, func() { o.Status = prev })
	return nil
}

func (t *memTx) CancelOrderPositions(ctx context.Context, orderID uint64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, p := range t.s.orderPositions {
		if p.OrderID == orderID && !p.Canceled {
			pos := p
			pos.Canceled = true
			t.undo = append(t.undo, func() { pos.Canceled = false })
		}
	}
	return nil
}

func (t *memTx) OverduePendingOrders(ctx context.Context, now time.Time, limit int) ([]string, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []string
	for _, o := range t.s.orders {
		if o.Status == model.OrderStatusPending && o.ExpiresAt != nil && o.ExpiresAt.Before(now) {
			out = append(out, o.Code)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (t *memTx) InsertLedgerEntries(ctx context.Context, entries []*model.LedgerEntry) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	prev := len(t.s.ledger)
	for _, e := range entries {
		e.ID = t.s.nextID()
		t.s.ledger = append(t.s.ledger, e)
	}
	t.undo = append(t.undo, func() { t.s.ledger = t.s.ledger[:prev] })
	return nil
}
