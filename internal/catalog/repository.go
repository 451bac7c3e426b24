package catalog

import (
	"context"
	"fmt"

	"github.com/fabtrack/fabtrack/internal/platform/db"
)

// Repository reads products.
type Repository interface {
	Get(ctx context.Context, id int64) (Product, error)
}

type repository struct {
	db db.Querier
}

// NewRepository returns a pgx backed Repository.
func NewRepository(q db.Querier) Repository {
	return &repository{db: q}
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	var unit string
	err := r.db.QueryRow(ctx, `
		SELECT id, code, name, product_type, unit, base_price, requires_dimensions, is_active, updated_at
		FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.Code, &p.Name, &p.Type, &unit, &p.BasePrice, &p.RequiresDimensions, &p.Active, &p.UpdatedAt)
	if err != nil {
		return Product{}, db.MapError(err, fmt.Sprintf("product %d", id))
	}
	p.Unit = Unit(unit)
	return p, nil
}
