package suppliers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sma-almacen/sma/internal/shared"
)

type memoryRepo struct {
	rows   map[int64]Supplier
	nextID int64
	last   ListFilters
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: map[int64]Supplier{}}
}

func (m *memoryRepo) List(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	m.last = filters
	var out []Supplier
	for _, s := range m.rows {
		if filters.ActiveOnly && !s.Active {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Supplier, error) {
	s, ok := m.rows[id]
	if !ok {
		return Supplier{}, shared.ErrNotFound
	}
	return s, nil
}

func (m *memoryRepo) Create(ctx context.Context, s Supplier) (Supplier, error) {
	for _, existing := range m.rows {
		if s.TaxID != "" && existing.TaxID == s.TaxID {
			return Supplier{}, shared.ErrDuplicate
		}
	}
	m.nextID++
	s.ID = m.nextID
	m.rows[s.ID] = s
	return s, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, s Supplier) error {
	if _, ok := m.rows[id]; !ok {
		return shared.ErrNotFound
	}
	s.ID = id
	m.rows[id] = s
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func TestCreateNormalizesAndValidates(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), Supplier{Name: "  Papelería del Centro ", TaxID: " pce010101ab1 ", Active: true})
	require.NoError(t, err)
	require.Equal(t, "Papelería del Centro", created.Name)
	require.Equal(t, "PCE010101AB1", created.TaxID)

	_, err = svc.Create(context.Background(), Supplier{Name: "   "})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, "El nombre del proveedor es obligatorio.", shared.UserSafeMessage(err))

	_, err = svc.Create(context.Background(), Supplier{Name: "Otro", TaxID: "ABCDEFGHIJKLMN"})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, "El RFC admite como máximo 13 caracteres.", shared.UserSafeMessage(err))

	_, err = svc.Create(context.Background(), Supplier{Name: "Duplicado", TaxID: "PCE010101AB1"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
	require.Contains(t, err.Error(), "PCE010101AB1")
	require.Len(t, repo.rows, 1)
}

func TestActiveFiltersInactive(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	_, err := svc.Create(context.Background(), Supplier{Name: "Activo", Active: true})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), Supplier{Name: "Baja", Active: false})
	require.NoError(t, err)

	active, err := svc.Active(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "Activo", active[0].Name)
	require.True(t, repo.last.ActiveOnly)
}

func TestInvalidIDs(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.ErrorIs(t, svc.Update(context.Background(), 0, Supplier{Name: "x"}), shared.ErrNotFound)
	require.ErrorIs(t, svc.Delete(context.Background(), -1), shared.ErrNotFound)
	require.ErrorIs(t, svc.Delete(context.Background(), 9), shared.ErrNotFound)
}

func TestValidationCountsCharacters(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Supplier{Name: strings.Repeat("ñ", 200)})
	require.NoError(t, err)

	_, err = svc.Create(ctx, Supplier{Name: strings.Repeat("ñ", 201)})
	require.Equal(t, "El nombre admite como máximo 200 caracteres.", shared.UserSafeMessage(err))

	err = svc.Update(ctx, 1, Supplier{Name: "Ferretería", LineOfBusiness: strings.Repeat("x", 101)})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, "El giro admite como máximo 100 caracteres.", shared.UserSafeMessage(err))
}
