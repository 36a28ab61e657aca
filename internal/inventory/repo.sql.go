package inventory

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sma-almacen/sma/internal/masterdata/items"
	"github.com/sma-almacen/sma/internal/platform/db"
	"github.com/sma-almacen/sma/internal/shared"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside one transaction; any error rolls back
// every statement issued through the TxRepository.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const selectMovement = `SELECT m.id, m.item_id, i.description, i.location, m.kind, m.quantity, m.occurred_at,
       COALESCE(m.actor_id, 0),
       COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.username, ''),
       m.unit_price, COALESCE(m.supplier_id, 0), COALESCE(s.name, ''), m.document_folio, m.destination_reference
FROM movements m
JOIN items i ON i.id = m.item_id
LEFT JOIN users u ON u.id = m.actor_id
LEFT JOIN suppliers s ON s.id = m.supplier_id`

// ListMovements returns movements newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	query := selectMovement
	var args []any
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += " WHERE " + movementColumn(filter.Field) + " ILIKE $1"
	}
	query += " ORDER BY m.occurred_at DESC, m.id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.ItemDescription, &m.ItemLocation, &m.Kind, &m.Quantity, &m.OccurredAt,
			&m.ActorID, &m.ActorName, &m.UnitPrice, &m.SupplierID, &m.SupplierName, &m.DocumentFolio, &m.DestinationReference); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// StockMismatches compares every item's stock with its ledger sum.
func (r *Repository) StockMismatches(ctx context.Context) ([]StockMismatch, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.description, i.current_stock,
       COALESCE(SUM(CASE WHEN m.kind = 'ENTRY' THEN m.quantity ELSE -m.quantity END), 0) AS ledger
FROM items i
LEFT JOIN movements m ON m.item_id = i.id
GROUP BY i.id, i.description, i.current_stock
HAVING i.current_stock <> COALESCE(SUM(CASE WHEN m.kind = 'ENTRY' THEN m.quantity ELSE -m.quantity END), 0)
ORDER BY i.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockMismatch
	for rows.Next() {
		var mm StockMismatch
		if err := rows.Scan(&mm.ItemID, &mm.Description, &mm.Stock, &mm.LedgerSum); err != nil {
			return nil, err
		}
		out = append(out, mm)
	}
	return out, rows.Err()
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, id int64) (items.Item, error) {
	var it items.Item
	err := r.tx.QueryRow(ctx, `SELECT i.id, i.class_id, c.name, i.description, i.unit, i.current_stock, i.unit_cost, i.location
FROM items i JOIN item_classes c ON c.id = i.class_id
WHERE i.id = $1
FOR UPDATE OF i`, id).Scan(&it.ID, &it.ClassID, &it.ClassName, &it.Description, &it.Unit, &it.CurrentStock, &it.UnitCost, &it.Location)
	if err != nil {
		return items.Item{}, shared.MapStoreError(err)
	}
	return it, nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO movements (item_id, kind, quantity, occurred_at, actor_id, unit_price, supplier_id, document_folio, destination_reference)
VALUES ($1, $2, $3, NOW(), $4, $5, $6, $7, $8) RETURNING id`,
		m.ItemID, string(m.Kind), m.Quantity, nullInt(m.ActorID), m.UnitPrice, nullInt(m.SupplierID), m.DocumentFolio, m.DestinationReference).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateItemStock(ctx context.Context, id int64, stock decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE items SET current_stock = $1 WHERE id = $2`, stock, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func movementColumn(field MovementField) string {
	switch field {
	case MovementByDestination:
		return "m.destination_reference"
	case MovementByLocation:
		return "i.location"
	default:
		return "i.description"
	}
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
