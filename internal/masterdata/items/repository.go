package items

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sma-almacen/sma/internal/shared"
)

// Repository is the catalog persistence port.
type Repository interface {
	ListClasses(ctx context.Context) ([]Class, error)
	ClassExists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]Item, error)
	Get(ctx context.Context, id int64) (Item, error)
	Create(ctx context.Context, item Item) (Item, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL catalog repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const selectItem = `SELECT i.id, i.class_id, c.name, i.description, i.unit, i.current_stock, i.unit_cost, i.location
FROM items i JOIN item_classes c ON c.id = i.class_id`

func (r *repository) ListClasses(ctx context.Context) ([]Class, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM item_classes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var classes []Class
	for rows.Next() {
		var c Class
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

func (r *repository) ClassExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM item_classes WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Item, error) {
	query := selectItem
	var args []any
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += " WHERE " + searchColumn(filter.Field) + " ILIKE $1"
	}
	query += " ORDER BY i.description"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Item, error) {
	item, err := scanItem(r.db.QueryRow(ctx, selectItem+" WHERE i.id = $1", id))
	if err != nil {
		return Item{}, shared.MapStoreError(err)
	}
	return item, nil
}

func (r *repository) Create(ctx context.Context, item Item) (Item, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO items (class_id, description, unit, current_stock, unit_cost, location)
VALUES ($1, $2, $3, 0, $4, $5) RETURNING id`, item.ClassID, item.Description, item.Unit, item.UnitCost, item.Location).Scan(&item.ID)
	if err != nil {
		return Item{}, fmt.Errorf("items: create: %w", shared.MapStoreError(err))
	}
	return r.Get(ctx, item.ID)
}

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.ClassID, &it.ClassName, &it.Description, &it.Unit, &it.CurrentStock, &it.UnitCost, &it.Location)
	return it, err
}

func searchColumn(field SearchField) string {
	switch field {
	case SearchClass:
		return "c.name"
	case SearchLocation:
		return "i.location"
	default:
		return "i.description"
	}
}
