// Package generation owns README generation jobs: their record, the executor
// that runs them and the service the API talks to.
package generation

import "time"

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether a job in this status carries a result.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	TargetReference string `gorm:"type:varchar(512);not null" json:"repo_url"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Generated document when completed, failure description when failed.
	Result *string `gorm:"type:longtext" json:"result"`

	// Attempts claimed since the job was last (re)submitted.
	Attempts int `gorm:"not null;default:0" json:"attempts"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Job) TableName() string { return "generation_jobs" }
