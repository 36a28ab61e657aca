package items

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sma-almacen/sma/internal/shared"
)

type memoryRepo struct {
	classes map[int64]Class
	items   map[int64]Item
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		classes: map[int64]Class{1: {ID: 1, Name: "Papelería"}, 2: {ID: 2, Name: "Limpieza"}},
		items:   map[int64]Item{},
	}
}

func (r *memoryRepo) ListClasses(ctx context.Context) ([]Class, error) {
	out := make([]Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	return out, nil
}

func (r *memoryRepo) ClassExists(ctx context.Context, id int64) (bool, error) {
	_, ok := r.classes[id]
	return ok, nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Item, error) {
	var out []Item
	for _, it := range r.items {
		if filter.Search == "" || strings.Contains(strings.ToLower(it.Description), strings.ToLower(filter.Search)) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Item, error) {
	it, ok := r.items[id]
	if !ok {
		return Item{}, shared.ErrNotFound
	}
	return it, nil
}

func (r *memoryRepo) Create(ctx context.Context, item Item) (Item, error) {
	for _, existing := range r.items {
		if existing.Description == item.Description {
			return Item{}, shared.ErrDuplicate
		}
	}
	r.nextID++
	item.ID = r.nextID
	item.ClassName = r.classes[item.ClassID].Name
	item.CurrentStock = decimal.Zero
	r.items[item.ID] = item
	return item, nil
}

func TestCreateItemStartsWithZeroStock(t *testing.T) {
	svc := NewService(newMemoryRepo())
	cost, err := shared.ParseDecimal("12,5")
	require.NoError(t, err)

	item, err := svc.Create(context.Background(), NewItem{Description: "  Hojas carta ", ClassID: 1, Unit: "PZA", UnitCost: cost})
	require.NoError(t, err)
	require.Equal(t, "Hojas carta", item.Description)
	require.True(t, item.CurrentStock.IsZero())
	require.Equal(t, "12.50", item.UnitCost.StringFixed(2))
	require.Equal(t, "Papelería", item.ClassName)
}

func TestCreateItemValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, NewItem{ClassID: 1, Unit: "PZA"})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, "La descripción es obligatoria.", shared.UserSafeMessage(err))

	_, err = svc.Create(ctx, NewItem{Description: "Cloro", ClassID: 9, Unit: "LT"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, NewItem{Description: "Cloro", ClassID: 2, Unit: "LT", UnitCost: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, NewItem{Description: "Cloro", ClassID: 2, Unit: "LITROSGRANDES"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, NewItem{Description: "Cloro", ClassID: 2, Unit: "LT", UnitCost: decimal.RequireFromString("12.505")})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, "El costo unitario admite como máximo 2 decimales.", shared.UserSafeMessage(err))
}

func TestCreateItemDuplicateDescription(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()
	_, err := svc.Create(ctx, NewItem{Description: "Cloro", ClassID: 2, Unit: "LT"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, NewItem{Description: "Cloro", ClassID: 2, Unit: "LT"})
	require.True(t, errors.Is(err, shared.ErrDuplicate))
	require.Contains(t, shared.UserSafeMessage(err), "integridad")
}

func TestGetRejectsInvalidID(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Get(context.Background(), 42)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
