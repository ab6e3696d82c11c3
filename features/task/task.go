package task

import (
	"encoding/json"
	"time"
)

// FailedTask is a persisted task failure. Payload holds the ingest envelope
// so the batch can be republished as-is.
type FailedTask struct {
	ID           string          `json:"id"`
	TaskID       string          `json:"task_id"`
	DatasourceID string          `json:"datasource_id"`
	TableName    string          `json:"table_name,omitempty"`
	FailureKind  string          `json:"failure_kind"`
	Error        string          `json:"error"`
	Payload      json.RawMessage `json:"payload"`
	Retries      int             `json:"retries"`
	CreatedAt    time.Time       `json:"created_at"`
}
