package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportsPrune deletes generated report files past retention.
	TaskReportsPrune = "reports:prune"
	// TaskInventoryIntegrity compares item stock with the ledger.
	TaskInventoryIntegrity = "inventory:integrity"
)

// ReportsPrunePayload overrides the configured retention when set.
type ReportsPrunePayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// NewReportsPruneTask constructs the retention task.
func NewReportsPruneTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(ReportsPrunePayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsPrune, data), nil
}

// NewInventoryIntegrityTask constructs the read-only stock scan task.
func NewInventoryIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskInventoryIntegrity, nil)
}
