package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tixforge/tixforge/internal/model"
)

// MembershipRepo provides data access to membership_types, memberships
// and the live-usage queries over cart and order positions.
type MembershipRepo struct {
	db *sql.DB
}

// NewMembershipRepo returns a MembershipRepo bound to the given
// database.
func NewMembershipRepo(db *sql.DB) *MembershipRepo { return &MembershipRepo{db: db} }

// ByIDTx fetches one membership. forUpdate row-locks it so the usage
// counter cannot move between the checker's read and the promotion.
func (r *MembershipRepo) ByIDTx(ctx context.Context, tx *sql.Tx, id uint64, forUpdate bool) (*model.Membership, error) {
	query := `SELECT id, type_id, customer_id, usages, valid_from, valid_until
	          FROM memberships WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var m model.Membership
	err := tx.QueryRowContext(ctx, query, id).
		Scan(&m.ID, &m.TypeID, &m.CustomerID, &m.Usages, &m.ValidFrom, &m.ValidUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// TypeTx fetches one membership type.
func (r *MembershipRepo) TypeTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.MembershipType, error) {
	var t model.MembershipType
	err := tx.QueryRowContext(ctx,
		`SELECT id, organizer_id, name, max_usages, allow_parallel_usage
		 FROM membership_types WHERE id = ?`, id).
		Scan(&t.ID, &t.OrganizerID, &t.Name, &t.MaxUsages, &t.AllowParallelUsage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UsagesTx lists the membership's live usages with their covered date
// spans: unexpired cart holds (unsettled) outside the excluded carts,
// and non-canceled order positions (settled, already reflected in the
// usages counter). The span is the subevent's when the position names
// one, the event's otherwise.
func (r *MembershipRepo) UsagesTx(ctx context.Context, tx *sql.Tx, membershipID uint64, excludeCarts []string, now time.Time) ([]model.MembershipUsage, error) {
	holdQuery := `SELECT p.id,
	        COALESCE(s.starts_at, e.starts_at), COALESCE(s.ends_at, e.ends_at), 0
	 FROM cart_positions p
	 JOIN events e ON e.id = p.event_id
	 LEFT JOIN subevents s ON s.id = p.subevent_id
	 WHERE p.membership_id = ? AND p.expires_at > ?`
	args := []any{membershipID, now.UTC()}
	if clause, inArgs := notInCarts("p.cart_id", excludeCarts); clause != "" {
		holdQuery += clause
		args = append(args, inArgs...)
	}
	query := holdQuery + `
	 UNION ALL
	 SELECT p.id,
	        COALESCE(s.starts_at, e.starts_at), COALESCE(s.ends_at, e.ends_at), 1
	 FROM order_positions p
	 JOIN orders o ON o.id = p.order_id
	 JOIN events e ON e.id = p.event_id
	 LEFT JOIN subevents s ON s.id = p.subevent_id
	 WHERE p.membership_id = ? AND p.canceled = 0
	   AND o.status IN (?, ?)`
	args = append(args, membershipID, model.OrderStatusPending, model.OrderStatusPaid)

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.MembershipUsage
	for rows.Next() {
		var u model.MembershipUsage
		if err := rows.Scan(&u.PositionID, &u.StartsAt, &u.EndsAt, &u.Settled); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// AdjustTx moves the usage counter by delta, clamped at zero on the
// way down.
func (r *MembershipRepo) AdjustTx(ctx context.Context, tx *sql.Tx, membershipID uint64, delta int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE memberships SET usages = GREATEST(usages + ?, 0) WHERE id = ?`,
		delta, membershipID)
	return err
}
