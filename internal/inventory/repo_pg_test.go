//go:build integration

package inventory_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sma-almacen/sma/internal/inventory"
	"github.com/sma-almacen/sma/internal/masterdata/items"
	"github.com/sma-almacen/sma/internal/masterdata/suppliers"
	"github.com/sma-almacen/sma/internal/platform/db"
	"github.com/sma-almacen/sma/internal/platform/migrate"
	"github.com/sma-almacen/sma/internal/shared"
)

// Run with: SMA_TEST_PG_DSN=postgres://... go test -tags integration ./internal/inventory/
// The database must be disposable; migrations are applied to it.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("SMA_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SMA_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := db.New(ctx, dsn, db.Options{MaxConns: 16})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, migrate.Run(ctx, db.OpenSQL(pool), "up"))
	return pool
}

type pgFixture struct {
	service  *inventory.Service
	itemID   int64
	supplier int64
}

func newPGFixture(t *testing.T, pool *pgxpool.Pool) pgFixture {
	t.Helper()
	ctx := context.Background()
	catalog := items.NewService(items.NewRepository(pool))
	registry := suppliers.NewService(suppliers.NewRepository(pool))

	var classID int64
	require.NoError(t, pool.QueryRow(ctx, `SELECT id FROM item_classes ORDER BY id LIMIT 1`).Scan(&classID))
	item, err := catalog.Create(ctx, items.NewItem{
		Description: "Tóner " + uuid.NewString()[:8],
		ClassID:     classID,
		Unit:        "PZA",
		UnitCost:    decimal.RequireFromString("150.25"),
	})
	require.NoError(t, err)
	sup, err := registry.Create(ctx, suppliers.Supplier{Name: "Proveedor " + uuid.NewString()[:8], Active: true})
	require.NoError(t, err)

	svc := inventory.NewService(inventory.NewRepository(pool), catalog, registry, shared.NewAuditLogger(pool), nil, nil)
	return pgFixture{service: svc, itemID: item.ID, supplier: sup.ID}
}

func (f pgFixture) stock(t *testing.T, pool *pgxpool.Pool) decimal.Decimal {
	t.Helper()
	var stock decimal.Decimal
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT current_stock FROM items WHERE id = $1`, f.itemID).Scan(&stock))
	return stock
}

func TestConcurrentExitsSerializeOnItemLock(t *testing.T) {
	pool := openTestPool(t)
	f := newPGFixture(t, pool)
	ctx := context.Background()

	entry := inventory.NewCart(inventory.KindEntry)
	_, err := f.service.AddEntryLine(ctx, entry, inventory.EntryLineInput{ItemID: f.itemID, Quantity: decimal.NewFromInt(5), SupplierID: f.supplier})
	require.NoError(t, err)
	_, err = f.service.Commit(ctx, entry, 0)
	require.NoError(t, err)

	const workers = 8
	carts := make([]*inventory.Cart, workers)
	for i := range carts {
		carts[i] = inventory.NewCart(inventory.KindExit)
		_, err := f.service.AddExitLine(ctx, carts[i], inventory.ExitLineInput{ItemID: f.itemID, Quantity: decimal.NewFromInt(1), Destination: "Sistemas"})
		require.NoError(t, err)
	}

	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range carts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Commit(ctx, carts[i], 0)
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, err := range errs {
		if err == nil {
			committed++
			continue
		}
		require.True(t, errors.Is(err, inventory.ErrInsufficientStock), "unexpected error: %v", err)
	}
	require.Equal(t, 5, committed)
	require.True(t, f.stock(t, pool).IsZero())

	mismatches, err := f.service.Reconcile(ctx)
	require.NoError(t, err)
	for _, m := range mismatches {
		require.NotEqual(t, f.itemID, m.ItemID, "stock %s ledger %s", m.Stock, m.LedgerSum)
	}
}

func TestFailedBatchRollsBack(t *testing.T) {
	pool := openTestPool(t)
	f := newPGFixture(t, pool)
	ctx := context.Background()

	entry := inventory.NewCart(inventory.KindEntry)
	_, err := f.service.AddEntryLine(ctx, entry, inventory.EntryLineInput{ItemID: f.itemID, Quantity: decimal.NewFromInt(4), SupplierID: f.supplier})
	require.NoError(t, err)
	_, err = f.service.Commit(ctx, entry, 0)
	require.NoError(t, err)

	exit := inventory.NewCart(inventory.KindExit)
	for _, qty := range []int64{3, 3} {
		_, err := f.service.AddExitLine(ctx, exit, inventory.ExitLineInput{ItemID: f.itemID, Quantity: decimal.NewFromInt(qty), Destination: "Compras"})
		require.NoError(t, err)
	}
	_, err = f.service.Commit(ctx, exit, 0)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Len(t, exit.Lines, 2)

	require.Equal(t, "4", f.stock(t, pool).String())
	var exits int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM movements WHERE item_id = $1 AND kind = 'EXIT'`, f.itemID).Scan(&exits))
	require.Zero(t, exits)
}
