package entity

import "time"

// JobStatus is the lifecycle status of an export job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// ExportJob mirrors the `export_jobs` PostgreSQL table. Jobs are never
// deleted; they double as the billing audit trail. Exactly one consumption
// transaction exists per completed job and none per failed job.
type ExportJob struct {
	ID               string
	UserID           string
	TargetBusinessID *string
	Query            string
	Location         string
	Status           JobStatus
	Cost             int
	DownloadHandle   *string // set only on completion
	FailReason       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
