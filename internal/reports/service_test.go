package reports

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sma-almacen/sma/internal/inventory"
	"github.com/sma-almacen/sma/internal/masterdata/items"
	"github.com/sma-almacen/sma/internal/rbac"
	"github.com/sma-almacen/sma/internal/shared"
	_ "github.com/sma-almacen/sma/testing"
)

type catalogStub struct {
	list []items.Item
	err  error
}

func (c catalogStub) List(ctx context.Context, filter items.ListFilter) ([]items.Item, error) {
	return c.list, c.err
}

type ledgerStub struct {
	list []inventory.Movement
}

func (l ledgerStub) MovementsForReport(ctx context.Context) ([]inventory.Movement, error) {
	return l.list, nil
}

type kpiStub struct{}

func (kpiStub) InventoryValue(ctx context.Context) (decimal.Decimal, error) {
	return decimal.RequireFromString("1068.875"), nil
}

func (kpiStub) MovementValue(ctx context.Context, kind string, since time.Time) (decimal.Decimal, error) {
	if kind == string(inventory.KindEntry) {
		return decimal.RequireFromString("500"), nil
	}
	return decimal.RequireFromString("42.1"), nil
}

func (kpiStub) ValueByClass(ctx context.Context) ([]ClassValue, error) {
	return []ClassValue{{ClassName: "Papelería", Value: decimal.RequireFromString("1068.875")}}, nil
}

type metricsSpy struct {
	calls []string
}

func (m *metricsSpy) ObserveReport(reportType, format string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.calls = append(m.calls, reportType+":"+format+":"+outcome)
}

func newTestService(t *testing.T, catalog CatalogSource, ledger LedgerSource) (*Service, *Store, *metricsSpy) {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	metrics := &metricsSpy{}
	svc := NewService(catalog, ledger, kpiStub{}, store, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC) }
	return svc, store, metrics
}

func TestGenerateInventoryWritesFile(t *testing.T) {
	svc, store, metrics := newTestService(t, catalogStub{list: catalogFixture()}, ledgerStub{})

	file, err := svc.GenerateInventory(context.Background(), "Existencias Mayo", FormatCSV)
	require.NoError(t, err)
	require.Equal(t, "Existencias_Mayo_20240601_093000.csv", file.Name)
	require.Equal(t, "CSV", file.Format)

	path, err := store.Resolve(file.Name)
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), "Hojas blancas")
	require.Equal(t, []string{"inventory:CSV:ok"}, metrics.calls)
}

func TestGenerateInventoryDefaultsType(t *testing.T) {
	svc, _, _ := newTestService(t, catalogStub{list: catalogFixture()}, ledgerStub{})
	file, err := svc.GenerateInventory(context.Background(), "", FormatXLSX)
	require.NoError(t, err)
	require.Equal(t, "Inventario_Total_20240601_093000.xlsx", file.Name)
}

func TestGenerateFailureLeavesNoFile(t *testing.T) {
	svc, store, metrics := newTestService(t, catalogStub{err: errors.New("db down")}, ledgerStub{})
	_, err := svc.GenerateInventory(context.Background(), "", FormatXLSX)
	require.Error(t, err)

	_, err = store.Create("Inventario_Total_x.csv", func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("disk full")
	})
	require.Error(t, err)

	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Equal(t, []string{"inventory:XLSX:error"}, metrics.calls)
}

func TestGenerateMovementsWithoutLedger(t *testing.T) {
	svc, store, _ := newTestService(t, catalogStub{}, ledgerStub{})
	_, err := svc.GenerateMovements(context.Background(), FormatXLSX)
	require.ErrorIs(t, err, ErrNoMovements)
	files, err := store.List()
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestGeneratePDFNotImplemented(t *testing.T) {
	svc, store, _ := newTestService(t, catalogStub{list: catalogFixture()}, ledgerStub{list: ledgerFixture()})
	_, err := svc.GenerateInventory(context.Background(), "", FormatPDF)
	require.ErrorIs(t, err, ErrPDFNotImplemented)
	_, err = svc.GenerateMovements(context.Background(), FormatPDF)
	require.ErrorIs(t, err, ErrPDFNotImplemented)
	files, err := store.List()
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestStoreConfinesDownloads(t *testing.T) {
	parent := t.TempDir()
	secret := filepath.Join(parent, "secret.csv")
	require.NoError(t, os.WriteFile(secret, []byte("x"), 0o600))
	store, err := NewStore(filepath.Join(parent, "reports"))
	require.NoError(t, err)
	require.NoError(t, os.Symlink(secret, filepath.Join(store.Root(), "link.csv")))
	require.NoError(t, os.Mkdir(filepath.Join(store.Root(), "sub"), 0o750))

	for _, name := range []string{"../secret.csv", "../../etc/passwd", "/etc/passwd", "link.csv", "sub", "", "missing.xlsx"} {
		_, err := store.Resolve(name)
		require.ErrorIs(t, err, shared.ErrNotFound, name)
	}

	_, err = store.Create("ok.csv", func(w io.Writer) error {
		_, err := w.Write([]byte("a,b\n"))
		return err
	})
	require.NoError(t, err)
	_, err = store.Resolve("ok.csv")
	require.NoError(t, err)

	_, err = store.Create("../escape.csv", func(w io.Writer) error { return nil })
	require.Error(t, err)
}

func TestStoreListAndPrune(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	old := time.Now().Add(-48 * time.Hour)
	for _, name := range []string{"a.xlsx", "b.csv", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(store.Root(), name), []byte("x"), 0o600))
	}
	require.NoError(t, os.Chtimes(filepath.Join(store.Root(), "a.xlsx"), old, old))

	files, err := store.List()
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, "b.csv", files[0].Name)

	removed, err := store.Prune(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	require.Equal(t, []string{"a.xlsx"}, removed)
	files, err = store.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestDashboardAggregates(t *testing.T) {
	svc, store, _ := newTestService(t, catalogStub{list: catalogFixture()}, ledgerStub{})
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), "Inventario_Total_20240101_000000.xlsx"), []byte("x"), 0o600))

	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1068.88", d.KPIs.InventoryValue.StringFixed(2))
	require.Equal(t, "500.00", d.KPIs.EntriesValue.StringFixed(2))
	require.Equal(t, "42.10", d.KPIs.ExitsValue.StringFixed(2))
	require.Equal(t, []string{"Papelería"}, d.ChartLabels())
	require.Equal(t, []float64{1068.88}, d.ChartValues())
	require.Len(t, d.Files, 1)
}

func TestDownloadHandler(t *testing.T) {
	svc, store, _ := newTestService(t, catalogStub{list: catalogFixture()}, ledgerStub{})
	file, err := svc.GenerateInventory(context.Background(), "", FormatCSV)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(store.Root()), "outside.csv"), []byte("secret"), 0o600))

	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, nil, nil, rbac.Middleware{}, 5)
	r := chi.NewRouter()
	r.Get("/reports/download/{filename}", h.download)

	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, DownloadPath(file.Name), nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Header().Get("Content-Disposition"), file.Name)
	require.Contains(t, res.Body.String(), "Hojas blancas")

	res = httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/reports/download/..%2Foutside.csv", nil))
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestContentType(t *testing.T) {
	require.Equal(t, "application/pdf", ContentType("a.pdf"))
	require.Equal(t, "application/octet-stream", ContentType("a.unknownext"))
}

func TestDashboardBarsScaleToLargestClass(t *testing.T) {
	d := Dashboard{KPIs: KPIs{ByClass: []ClassValue{
		{ClassName: "Limpieza", Value: decimal.RequireFromString("200")},
		{ClassName: "Papelería", Value: decimal.RequireFromString("50")},
		{ClassName: "Sin stock", Value: decimal.Zero},
	}}}

	bars := d.Bars()
	require.Len(t, bars, 3)
	require.Equal(t, 100, bars[0].Percent)
	require.Equal(t, 25, bars[1].Percent)
	require.Equal(t, 0, bars[2].Percent)
	require.Empty(t, Dashboard{}.Bars())
}
