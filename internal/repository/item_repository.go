package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/tixforge/tixforge/internal/model"
)

// ItemRepo provides data access to items, item_variations and
// bundled_items.
type ItemRepo struct {
	db *sql.DB
}

// NewItemRepo returns an ItemRepo bound to the given database.
func NewItemRepo(db *sql.DB) *ItemRepo { return &ItemRepo{db: db} }

// GetTx fetches one item by id within the transaction. Prices are
// stored as DECIMAL strings and parsed into decimal.Decimal.
func (r *ItemRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Item, error) {
	var it model.Item
	var price string
	err := tx.QueryRowContext(ctx,
		`SELECT id, event_id, name, default_price, active, has_variations
		 FROM items WHERE id = ?`, id).
		Scan(&it.ID, &it.EventID, &it.Name, &price, &it.Active, &it.HasVariations)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if it.DefaultPrice, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateTx inserts a new item and populates the generated ID.
func (r *ItemRepo) CreateTx(ctx context.Context, tx *sql.Tx, it *model.Item) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO items (event_id, name, default_price, active, has_variations)
		 VALUES (?, ?, ?, ?, ?)`,
		it.EventID, it.Name, it.DefaultPrice.String(), it.Active, it.HasVariations)
	if err != nil {
		return translateErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	it.ID = uint64(id)
	return nil
}

// VariationTx fetches one variation by id within the transaction.
func (r *ItemRepo) VariationTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.ItemVariation, error) {
	var v model.ItemVariation
	var price sql.NullString
	err := tx.QueryRowContext(ctx,
		`SELECT id, item_id, name, price, active FROM item_variations WHERE id = ?`, id).
		Scan(&v.ID, &v.ItemID, &v.Name, &price, &v.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if price.Valid {
		p, err := decimal.NewFromString(price.String)
		if err != nil {
			return nil, err
		}
		v.Price = &p
	}
	return &v, nil
}

// BundledItemsTx lists the mandatory add-on rules of a base item.
func (r *ItemRepo) BundledItemsTx(ctx context.Context, tx *sql.Tx, baseItemID uint64) ([]model.BundledItem, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, base_item_id, bundled_item_id, bundled_variation_id, designated_price
		 FROM bundled_items WHERE base_item_id = ?`, baseItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BundledItem
	for rows.Next() {
		var b model.BundledItem
		var variation sql.NullInt64
		var price string
		if err := rows.Scan(&b.ID, &b.BaseItemID, &b.BundledItemID, &variation, &price); err != nil {
			return nil, err
		}
		if variation.Valid {
			v := uint64(variation.Int64)
			b.BundledVariation = &v
		}
		if b.DesignatedPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
