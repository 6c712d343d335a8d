package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus enumerates the lifecycle states of a grading job.
// Transitions are monotonic: queued → processing → completed|failed.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status is completed or failed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobResult summarizes a completed grading run.
type JobResult struct {
	Score          int `json:"score"`
	Total          int `json:"total"`
	CorrectAnswers int `json:"correct_answers"`
}

// SubmissionJob tracks one asynchronous grading request. The job ID is
// client-visible and assigned before the payload is enqueued.
type SubmissionJob struct {
	JobID        uuid.UUID  `json:"job_id"`
	StudentID    uuid.UUID  `json:"student_id"`
	PaperID      uuid.UUID  `json:"paper_id"`
	InstituteID  uuid.UUID  `json:"institute_id"`
	Status       JobStatus  `json:"status"`
	SubmissionID *uuid.UUID `json:"submission_id,omitempty"`
	Result       *JobResult `json:"result,omitempty"`
	Error        *string    `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Attempts     int        `json:"attempts"`
}
