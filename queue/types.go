package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zero-day-ai/verdict/analyzer"
	"github.com/zero-day-ai/verdict/fusion"
	"github.com/zero-day-ai/verdict/record"
)

// Job is one artifact submitted for analysis.
type Job struct {
	// JobID is a UUID correlating the job with its outcome.
	JobID string `json:"job_id"`

	// Artifact is the item to analyze.
	Artifact analyzer.Artifact `json:"artifact"`

	// TraceID is the distributed tracing trace ID of the submitter, if any.
	TraceID string `json:"trace_id,omitempty"`

	// SubmittedAt is the Unix timestamp in milliseconds when the job was submitted.
	SubmittedAt int64 `json:"submitted_at"`
}

// NewJob wraps a in a job with a fresh ID.
func NewJob(a analyzer.Artifact) Job {
	return Job{
		JobID:       uuid.NewString(),
		Artifact:    a,
		SubmittedAt: time.Now().UnixMilli(),
	}
}

// Outcome is the result of processing a Job. It is published to the job's
// result channel.
type Outcome struct {
	// JobID correlates the outcome with its job.
	JobID string `json:"job_id"`

	// RunID is the pipeline run that produced the decision.
	RunID string `json:"run_id,omitempty"`

	// Records holds the canonical record of every role.
	Records []record.Record `json:"records,omitempty"`

	// Decision is the fused decision. Nil if Error is set.
	Decision *fusion.Decision `json:"decision,omitempty"`

	// Error describes why the job could not be processed.
	Error string `json:"error,omitempty"`

	// WorkerID is the unique identifier of the worker that processed the job.
	WorkerID string `json:"worker_id"`

	// StartedAt is the Unix timestamp in milliseconds when processing started.
	StartedAt int64 `json:"started_at"`

	// CompletedAt is the Unix timestamp in milliseconds when processing completed.
	CompletedAt int64 `json:"completed_at"`
}

// IsValid checks that the job can be processed.
func (j *Job) IsValid() error {
	if j.JobID == "" {
		return errors.New("job_id is required")
	}
	if j.SubmittedAt <= 0 {
		return fmt.Errorf("submitted_at must be positive, got %d", j.SubmittedAt)
	}
	return nil
}

// Age returns the duration since the job was submitted.
func (j *Job) Age() time.Duration {
	if j.SubmittedAt <= 0 {
		return 0
	}
	return time.Duration(time.Now().UnixMilli()-j.SubmittedAt) * time.Millisecond
}

// HasError returns true if the job could not be processed.
func (o *Outcome) HasError() bool {
	return o.Error != ""
}

// Duration returns the wall-clock time the worker spent on the job.
func (o *Outcome) Duration() time.Duration {
	if o.StartedAt <= 0 || o.CompletedAt <= 0 {
		return 0
	}
	return time.Duration(o.CompletedAt-o.StartedAt) * time.Millisecond
}

// IsValid checks that the outcome is complete.
func (o *Outcome) IsValid() error {
	if o.JobID == "" {
		return errors.New("job_id is required")
	}
	if o.WorkerID == "" {
		return errors.New("worker_id is required")
	}
	if o.StartedAt <= 0 {
		return fmt.Errorf("started_at must be positive, got %d", o.StartedAt)
	}
	if o.CompletedAt < o.StartedAt {
		return fmt.Errorf("completed_at (%d) cannot be before started_at (%d)", o.CompletedAt, o.StartedAt)
	}
	if !o.HasError() && o.Decision == nil {
		return errors.New("decision is required when error is empty")
	}
	return nil
}

// MalformedJobError is returned by Pop for a payload that is not a valid job.
// JobID is set when the payload carried one, so the submitter can still be
// told about the failure.
type MalformedJobError struct {
	JobID   string
	Payload string
	Err     error
}

func (e *MalformedJobError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("malformed job %s: %v", e.JobID, e.Err)
	}
	return fmt.Sprintf("malformed job: %v", e.Err)
}

func (e *MalformedJobError) Unwrap() error {
	return e.Err
}
