package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tixforge/tixforge/internal/model"
)

// EventRepo provides data access to the events and subevents tables.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, organizer_id, slug, name, currency, live, count_pending,
       starts_at, ends_at, sales_start, sales_end, created_at`

func scanEvent(row *sql.Row) (*model.Event, error) {
	var e model.Event
	var salesStart, salesEnd sql.NullTime
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Slug, &e.Name, &e.Currency, &e.Live,
		&e.CountPending, &e.StartsAt, &e.EndsAt, &salesStart, &salesEnd, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if salesStart.Valid {
		t := salesStart.Time
		e.SalesStart = &t
	}
	if salesEnd.Valid {
		t := salesEnd.Time
		e.SalesEnd = &t
	}
	return &e, nil
}

// GetTx fetches one event by id within the transaction.
func (r *EventRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Event, error) {
	return scanEvent(tx.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
}

// CreateTx inserts a new event and populates the generated ID.
func (r *EventRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.Event) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO events (organizer_id, slug, name, currency, live, count_pending,
		        starts_at, ends_at, sales_start, sales_end)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.OrganizerID, e.Slug, e.Name, e.Currency, e.Live, e.CountPending,
		e.StartsAt.UTC(), e.EndsAt.UTC(), nullTime(e.SalesStart), nullTime(e.SalesEnd))
	if err != nil {
		return translateErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// SubeventTx fetches one subevent by id within the transaction.
func (r *EventRepo) SubeventTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Subevent, error) {
	var s model.Subevent
	err := tx.QueryRowContext(ctx,
		`SELECT id, event_id, name, starts_at, ends_at FROM subevents WHERE id = ?`, id).
		Scan(&s.ID, &s.EventID, &s.Name, &s.StartsAt, &s.EndsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// nullTime converts a *time.Time into the driver value for a nullable
// DATETIME column.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
