package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeCVExport 简历导出任务类型。
const TypeCVExport = "cv:export"

// CVExportPayload 导出任务的载荷。
// 只携带身份主键与关联 ID，记录内容由 worker 重新加载，避免陈旧快照。
type CVExportPayload struct {
	OwnerEmail    string `json:"owner_email"`
	CorrelationID string `json:"correlation_id"`
}

// NewCVExportTask 构造导出任务。
func NewCVExportTask(ownerEmail, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(CVExportPayload{
		OwnerEmail:    ownerEmail,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal cv export payload: %w", err)
	}
	return asynq.NewTask(TypeCVExport, payload), nil
}
