package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads the aggregates behind the report dashboard.
type Repository interface {
	InventoryValue(ctx context.Context) (decimal.Decimal, error)
	MovementValue(ctx context.Context, kind string, since time.Time) (decimal.Decimal, error)
	ValueByClass(ctx context.Context) ([]ClassValue, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL KPI repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) InventoryValue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(current_stock * unit_cost), 0) FROM items`).Scan(&total)
	return total, err
}

func (r *repository) MovementValue(ctx context.Context, kind string, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(quantity * unit_price), 0)
FROM movements WHERE kind = $1 AND occurred_at >= $2`, kind, since).Scan(&total)
	return total, err
}

func (r *repository) ValueByClass(ctx context.Context) ([]ClassValue, error) {
	rows, err := r.db.Query(ctx, `SELECT c.name, COALESCE(SUM(i.current_stock * i.unit_cost), 0) AS value
FROM item_classes c
JOIN items i ON i.class_id = c.id
GROUP BY c.name
ORDER BY value DESC, c.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ClassValue
	for rows.Next() {
		var cv ClassValue
		if err := rows.Scan(&cv.ClassName, &cv.Value); err != nil {
			return nil, err
		}
		out = append(out, cv)
	}
	return out, rows.Err()
}
