package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/sma-almacen/sma/internal/inventory"
)

// StockReconciler lists items whose stock disagrees with the ledger.
type StockReconciler interface {
	Reconcile(ctx context.Context) ([]inventory.StockMismatch, error)
}

// MismatchGauge publishes the mismatch count.
type MismatchGauge interface {
	SetStockMismatches(n int)
}

// InventoryIntegrityJob checks the ledger invariant. It never writes.
type InventoryIntegrityJob struct {
	reconciler StockReconciler
	logger     *slog.Logger
	metrics    JobMetrics
	gauge      MismatchGauge
}

// NewInventoryIntegrityJob builds the handler. metrics and gauge may be nil.
func NewInventoryIntegrityJob(reconciler StockReconciler, logger *slog.Logger, metrics JobMetrics, gauge MismatchGauge) *InventoryIntegrityJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &InventoryIntegrityJob{reconciler: reconciler, logger: logger, metrics: metrics, gauge: gauge}
}

// Handle runs the scan.
func (j *InventoryIntegrityJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.reconciler == nil {
		return errors.New("inventory integrity: handler not configured")
	}
	defer func() {
		if j.metrics != nil {
			j.metrics.ObserveJob(TaskInventoryIntegrity, err)
		}
	}()

	mismatches, err := j.reconciler.Reconcile(ctx)
	if err != nil {
		j.logger.Error("inventory integrity scan failed", slog.Any("error", err))
		return err
	}
	for _, m := range mismatches {
		j.logger.Error("stock does not match ledger",
			slog.Int64("item_id", m.ItemID),
			slog.String("description", m.Description),
			slog.String("stock", m.Stock.String()),
			slog.String("ledger_sum", m.LedgerSum.String()))
	}
	if j.gauge != nil {
		j.gauge.SetStockMismatches(len(mismatches))
	}
	j.logger.Info("inventory integrity scan completed", slog.Int("mismatches", len(mismatches)))
	return nil
}
