package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMapStoreError(t *testing.T) {
	require.NoError(t, MapStoreError(nil))
	require.ErrorIs(t, MapStoreError(pgx.ErrNoRows), ErrNotFound)
	require.ErrorIs(t, MapStoreError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})), ErrDuplicate)

	other := errors.New("connection reset")
	require.Equal(t, other, MapStoreError(other))
}

func TestUserSafeMessage(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"nil":          {nil, ""},
		"validation":   {Invalid("cantidad", "La cantidad debe ser mayor a %d.", 0), "La cantidad debe ser mayor a 0."},
		"duplicate":    {fmt.Errorf("%w: rfc X", ErrDuplicate), "Error de integridad: ya existe un registro con esos datos."},
		"credentials":  {ErrInvalidCredentials, "Usuario o contraseña incorrectos."},
		"driver error": {errors.New("pq: relation missing"), "Ocurrió un error inesperado. Intenta de nuevo."},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, UserSafeMessage(tc.err))
		})
	}
	require.ErrorIs(t, Invalid("x", "y"), ErrValidation)
}

func TestParseDecimal(t *testing.T) {
	d, err := ParseDecimal(" 12,5 ")
	require.NoError(t, err)
	require.Equal(t, "12.50", d.StringFixed(Scale))

	d, err = ParseDecimal("2.999")
	require.NoError(t, err)
	require.Equal(t, "2.999", d.String())
	require.False(t, HasScale(d))

	d, err = ParseDecimal("0,004")
	require.NoError(t, err)
	require.False(t, d.IsZero())
	require.False(t, HasScale(d))
	require.True(t, HasScale(decimal.RequireFromString("7.25")))

	_, err = ParseDecimal("doce")
	require.Error(t, err)
}

func TestPagination(t *testing.T) {
	p := NewPagination(2, 10, 35)
	require.Equal(t, 4, p.TotalPages)
	require.Equal(t, 10, p.Offset())
	require.True(t, p.HasPrev())
	require.True(t, p.HasNext())

	empty := NewPagination(0, 0, 0)
	require.Equal(t, 1, empty.Page)
	require.Equal(t, DefaultPerPage, empty.PerPage)
	require.Equal(t, 1, empty.TotalPages)
	require.False(t, empty.HasNext())
}
