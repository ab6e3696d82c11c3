package queue

import "time"

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Finished reports whether s is a terminal status.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is the record of one embedding/upsert job for a datasource.
type Task struct {
	ID           string     `json:"id"`
	DatasourceID string     `json:"datasource_id"`
	TableName    string     `json:"table_name,omitempty"`
	Status       Status     `json:"status"`
	FailureKind  string     `json:"failure_kind,omitempty"`
	Error        string     `json:"error,omitempty"`
	Records      int        `json:"records"`
	Points       int        `json:"points"`
	EnqueuedAt   time.Time  `json:"enqueued_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
