// Package jobs runs full-document scans in the background so API clients
// can poll for results instead of holding a request open.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/quarterly-extractor/internal/extract"
	"github.com/dvloznov/quarterly-extractor/internal/pipeline"
)

// ErrJobNotFound is returned by a JobStore for unknown IDs.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueClosed is returned when publishing to a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// ScanJob is a queued scan of one document.
type ScanJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Document is the report to scan. Only its name is reported.
	Document extract.Document `json:"-"`

	// DocumentName is the file name or gs:// URI the job was created from.
	DocumentName string `json:"document"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// Result is set once the job completes.
	Result *pipeline.ScanResult `json:"result,omitempty"`
}

// Publisher enqueues scan jobs.
type Publisher interface {
	PublishScan(ctx context.Context, job *ScanJob) error
	Close() error
}

// Consumer runs queued jobs through a handler.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job and stores its outcome on it. An error marks
// the job for retry.
type JobHandler func(ctx context.Context, job *ScanJob) error

// JobStore keeps job state for polling.
type JobStore interface {
	SaveJob(ctx context.Context, job *ScanJob) error
	GetJob(ctx context.Context, jobID string) (*ScanJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ScanJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}

// Scanner is the part of pipeline.Service a scan job needs.
type Scanner interface {
	Scan(ctx context.Context, doc extract.Document) (*pipeline.ScanResult, error)
}

// ScanHandler returns a JobHandler that scans the job's document.
func ScanHandler(s Scanner) JobHandler {
	return func(ctx context.Context, job *ScanJob) error {
		res, err := s.Scan(ctx, job.Document)
		if err != nil {
			return err
		}
		job.Result = res
		return nil
	}
}
