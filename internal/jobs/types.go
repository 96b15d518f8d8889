// Package jobs runs statement ingestions in the background and tracks their
// progress so callers can poll or cancel them.
package jobs

import (
	"context"
	"time"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed. Failed jobs are not retried;
	// a caller re-enqueues the statement to try again.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCanceled indicates the job was canceled before it finished.
	JobStatusCanceled JobStatus = "canceled"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCanceled
}

// IngestJob is one background ingestion of a statement.
type IngestJob struct {
	JobID       string     `json:"job_id"`
	StatementID string     `json:"statement_id"`
	Status      JobStatus  `json:"status"`
	Progress    float64    `json:"progress"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error and ErrorKind describe the failure of a failed or canceled job.
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// ProgressFunc reports the completed fraction of a running job.
type ProgressFunc func(fraction float64)

// JobHandler processes a job, reporting progress through report.
type JobHandler func(ctx context.Context, job *IngestJob, report ProgressFunc) error

// Publisher enqueues jobs.
type Publisher interface {
	PublishIngest(ctx context.Context, job *IngestJob) error
	Close() error
}

// Consumer runs enqueued jobs.
type Consumer interface {
	// Start launches the workers. The handler is called for each job.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// Canceler cancels a pending or running job.
type Canceler interface {
	Cancel(ctx context.Context, jobID string) (*IngestJob, error)
}

// JobStore stores job state.
type JobStore interface {
	SaveJob(ctx context.Context, job *IngestJob) error
	GetJob(ctx context.Context, jobID string) (*IngestJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestJob, error)
	UpdateProgress(ctx context.Context, jobID string, fraction float64) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	StatementID string
	Status      JobStatus
	Limit       int
	Offset      int
}
