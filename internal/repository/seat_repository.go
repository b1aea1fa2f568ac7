package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tixforge/tixforge/internal/model"
)

// SeatRepo provides data access to the seats table and the claim
// queries over cart and order positions.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a SeatRepo bound to the given database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// ByIDTx fetches one seat by id within the transaction.
func (r *SeatRepo) ByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Seat, error) {
	var s model.Seat
	var subevent, item sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT id, event_id, subevent_id, label, item_id, blocked
		 FROM seats WHERE id = ?`, id).
		Scan(&s.ID, &s.EventID, &subevent, &s.Label, &item, &s.Blocked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.SubeventID = optID(subevent)
	s.ItemID = optID(item)
	return &s, nil
}

// ClaimedTx reports whether any live claimant references the seat: an
// unexpired cart hold outside the excluded carts, or a non-canceled
// order position. seat_guard rather than seat_id is checked on the
// order side so canceled positions do not keep the seat occupied.
func (r *SeatRepo) ClaimedTx(ctx context.Context, tx *sql.Tx, seatID uint64, excludeCarts []string, now time.Time) (bool, error) {
	query := `SELECT COUNT(*) FROM cart_positions WHERE seat_id = ? AND expires_at > ?`
	args := []any{seatID, now.UTC()}
	if clause, inArgs := notInCarts("cart_id", excludeCarts); clause != "" {
		query += clause
		args = append(args, inArgs...)
	}
	var held int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&held); err != nil {
		return false, err
	}
	if held > 0 {
		return true, nil
	}
	var ordered int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM order_positions WHERE seat_guard = ?`, seatID).
		Scan(&ordered); err != nil {
		return false, err
	}
	return ordered > 0, nil
}
