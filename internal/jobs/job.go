package jobs

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a batch job. Exactly these five values
// are ever persisted.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is immutable. Completed, failed and cancelled
// jobs never transition again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Job is the persisted job record, stored JSON-encoded under the job's
// status key.
type Job struct {
	JobID     string          `json:"job_id"`
	Request   json.RawMessage `json:"request"`
	Status    Status          `json:"status"`
	Progress  *int            `json:"progress,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
