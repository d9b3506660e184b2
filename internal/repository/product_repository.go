package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
)

// ProductRepo reads the pricing catalog. Catalog maintenance happens outside
// this service.
type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

const productColumns = `id, name, duration_min, price_cents, is_default, is_active, sort_order`

func scanProduct(sc rowScanner) (*model.Product, error) {
	var p model.Product
	if err := sc.Scan(&p.ID, &p.Name, &p.DurationMin, &p.PriceCents, &p.IsDefault, &p.IsActive, &p.SortOrder); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetTx looks up a product by id; a missing row yields (nil, nil).
func (r *ProductRepo) GetTx(ctx context.Context, tx *sql.Tx, id string) (*model.Product, error) {
	p, err := scanProduct(tx.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

// List returns products ordered by sort_order.
func (r *ProductRepo) List(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY sort_order, name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
