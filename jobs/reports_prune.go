package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// ReportPruner removes generated files older than retention.
type ReportPruner interface {
	Prune(retention time.Duration) ([]string, error)
}

// JobMetrics records job outcomes.
type JobMetrics interface {
	ObserveJob(task string, err error)
}

// ReportsPruneJob enforces report file retention.
type ReportsPruneJob struct {
	pruner    ReportPruner
	retention time.Duration
	logger    *slog.Logger
	metrics   JobMetrics
}

// NewReportsPruneJob builds the handler. retention is used when the task
// payload does not carry one.
func NewReportsPruneJob(pruner ReportPruner, retention time.Duration, logger *slog.Logger, metrics JobMetrics) *ReportsPruneJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportsPruneJob{pruner: pruner, retention: retention, logger: logger, metrics: metrics}
}

// Handle executes the prune.
func (j *ReportsPruneJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.pruner == nil {
		return errors.New("reports prune: handler not configured")
	}
	var payload ReportsPrunePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	retention := j.retention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}
	if retention <= 0 {
		return asynq.SkipRetry
	}
	defer func() {
		if j.metrics != nil {
			j.metrics.ObserveJob(TaskReportsPrune, err)
		}
	}()

	start := time.Now()
	removed, err := j.pruner.Prune(retention)
	if err != nil {
		j.logger.Error("prune reports failed", slog.Any("error", err))
		return err
	}
	j.logger.Info("pruned reports",
		slog.Int("removed", len(removed)),
		slog.Duration("retention", retention),
		slog.Duration("duration", time.Since(start)))
	return nil
}
