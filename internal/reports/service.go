package reports

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sma-almacen/sma/internal/inventory"
	"github.com/sma-almacen/sma/internal/masterdata/items"
)

// CatalogSource lists catalog items for the inventory export.
type CatalogSource interface {
	List(ctx context.Context, filter items.ListFilter) ([]items.Item, error)
}

// LedgerSource returns the full ledger for the movement export.
type LedgerSource interface {
	MovementsForReport(ctx context.Context) ([]inventory.Movement, error)
}

// MetricsPort counts generated reports.
type MetricsPort interface {
	ObserveReport(reportType, format string, err error)
}

// Service builds exports and the report dashboard.
type Service struct {
	catalog CatalogSource
	ledger  LedgerSource
	repo    Repository
	store   *Store
	metrics MetricsPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the report generator. metrics may be nil.
func NewService(catalog CatalogSource, ledger LedgerSource, repo Repository, store *Store, metrics MetricsPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog: catalog,
		ledger:  ledger,
		repo:    repo,
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// GenerateInventory writes the inventory export. reportType is slugged into
// the file name; empty means InventoryReportType.
func (s *Service) GenerateInventory(ctx context.Context, reportType string, format Format) (file GeneratedFile, err error) {
	if reportType == "" {
		reportType = InventoryReportType
	}
	defer func() { s.observe("inventory", format, err) }()
	if format == FormatPDF {
		return GeneratedFile{}, ErrPDFNotImplemented
	}
	list, err := s.catalog.List(ctx, items.ListFilter{})
	if err != nil {
		return GeneratedFile{}, fmt.Errorf("load catalog: %w", err)
	}
	rows := InventoryRows(list)
	return s.write(FileName(reportType, s.now(), format), func(w io.Writer) error {
		if format == FormatCSV {
			return WriteInventoryCSV(w, rows)
		}
		return WriteInventoryXLSX(w, rows)
	})
}

// GenerateMovements writes the ledger export, newest movement first.
func (s *Service) GenerateMovements(ctx context.Context, format Format) (file GeneratedFile, err error) {
	defer func() { s.observe("movements", format, err) }()
	if format == FormatPDF {
		return GeneratedFile{}, ErrPDFNotImplemented
	}
	movements, err := s.ledger.MovementsForReport(ctx)
	if err != nil {
		return GeneratedFile{}, fmt.Errorf("load movements: %w", err)
	}
	if len(movements) == 0 {
		return GeneratedFile{}, ErrNoMovements
	}
	rows := MovementRows(movements)
	return s.write(FileName(MovementsReportType, s.now(), format), func(w io.Writer) error {
		if format == FormatCSV {
			return WriteMovementsCSV(w, rows)
		}
		return WriteMovementsXLSX(w, rows)
	})
}

func (s *Service) write(name string, fn func(io.Writer) error) (GeneratedFile, error) {
	file, err := s.store.Create(name, fn)
	if err != nil {
		return GeneratedFile{}, fmt.Errorf("write %s: %w", name, err)
	}
	s.logger.Info("report generated", slog.String("file", file.Name), slog.Int64("bytes", file.Size))
	return file, nil
}

func (s *Service) observe(reportType string, format Format, err error) {
	if s.metrics != nil {
		s.metrics.ObserveReport(reportType, string(format), err)
	}
}

// Dashboard loads the KPIs concurrently together with the file listing.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	since := s.now().Add(-KPIWindow)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.repo.InventoryValue(gctx)
		d.KPIs.InventoryValue = v.Round(2)
		return err
	})
	g.Go(func() error {
		v, err := s.repo.MovementValue(gctx, string(inventory.KindEntry), since)
		d.KPIs.EntriesValue = v.Round(2)
		return err
	})
	g.Go(func() error {
		v, err := s.repo.MovementValue(gctx, string(inventory.KindExit), since)
		d.KPIs.ExitsValue = v.Round(2)
		return err
	})
	g.Go(func() error {
		v, err := s.repo.ValueByClass(gctx)
		d.KPIs.ByClass = v
		return err
	})
	g.Go(func() error {
		files, err := s.store.List()
		d.Files = files
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// Open returns a confined generated file for download.
func (s *Service) Open(name string) (*os.File, GeneratedFile, error) {
	return s.store.Open(name)
}

// Prune removes generated files older than retention.
func (s *Service) Prune(retention time.Duration) ([]string, error) {
	return s.store.Prune(s.now().Add(-retention))
}
