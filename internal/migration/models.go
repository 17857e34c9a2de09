package migration

import (
	"sync"
	"sync/atomic"
	"time"

	"memstore-backup/internal/store"
)

// JobStatus represents the lifecycle state of a migration job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusPartial   JobStatus = "partial"
)

// Job tracks a running migration. Counters only ever increase while the job
// runs and are safe to read from other goroutines.
type Job struct {
	JobID          string
	Collection     string
	SourceDim      int
	TargetDim      int
	BatchSize      int
	MaxConcurrency int
	DryRun         bool

	// Filter limits the migration to points it accepts. Nil migrates
	// every point.
	Filter func(store.Point) bool

	status    atomic.Value
	processed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64

	mu     sync.Mutex
	errors []string
}

// NewJob creates a job in pending state
func NewJob(jobID string, config DimensionConfig, sourceDim int) *Job {
	job := &Job{
		JobID:          jobID,
		Collection:     config.Collection,
		SourceDim:      sourceDim,
		TargetDim:      config.TargetDimension,
		BatchSize:      config.BatchSize,
		MaxConcurrency: config.MaxConcurrency,
		DryRun:         config.DryRun,
		Filter:         config.Filter,
	}
	job.status.Store(JobStatusPending)
	return job
}

// Status returns the current job status
func (j *Job) Status() JobStatus {
	return j.status.Load().(JobStatus)
}

// SetStatus moves the job to a new status
func (j *Job) SetStatus(status JobStatus) {
	j.status.Store(status)
}

// RecordSuccess counts n points as processed and migrated
func (j *Job) RecordSuccess(n int64) {
	j.processed.Add(n)
	j.succeeded.Add(n)
}

// RecordFailure counts n points as processed and failed, keeping the error
func (j *Job) RecordFailure(n int64, err error) {
	j.processed.Add(n)
	j.failed.Add(n)

	j.mu.Lock()
	j.errors = append(j.errors, err.Error())
	j.mu.Unlock()
}

// Processed returns the number of points the job has looked at
func (j *Job) Processed() int64 { return j.processed.Load() }

// Succeeded returns the number of points migrated without error
func (j *Job) Succeeded() int64 { return j.succeeded.Load() }

// Failed returns the number of points that hit an error
func (j *Job) Failed() int64 { return j.failed.Load() }

// Errors returns a copy of the accumulated error list
func (j *Job) Errors() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]string, len(j.errors))
	copy(out, j.errors)
	return out
}

// Result is the immutable outcome of one migration run
type Result struct {
	JobID           string        `json:"job_id"`
	Collection      string        `json:"collection"`
	SourceDim       int           `json:"source_dimension"`
	TargetDim       int           `json:"target_dimension"`
	DryRun          bool          `json:"dry_run"`
	Status          JobStatus     `json:"status"`
	Processed       int64         `json:"processed"`
	Succeeded       int64         `json:"succeeded"`
	Failed          int64         `json:"failed"`
	Errors          []string      `json:"errors,omitempty"`
	AlreadyMigrated bool          `json:"already_migrated"`
	BeforeChecksum  string        `json:"before_checksum"`
	AfterChecksum   string        `json:"after_checksum"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
}

// Success reports whether the run finished without blocking errors
func (r *Result) Success() bool {
	return r.Status == JobStatusCompleted
}

// IdempotencyCheck holds the two dry runs of an idempotency verification
type IdempotencyCheck struct {
	FirstRun   *Result `json:"first_run"`
	SecondRun  *Result `json:"second_run"`
	Consistent bool    `json:"consistent"`
}
