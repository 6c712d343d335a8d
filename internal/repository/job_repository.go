package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grading/internal/model"
)

// JobRepository handles grading job data access.
type JobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

// Create inserts a new queued job.
func (r *JobRepository) Create(ctx context.Context, j *model.SubmissionJob) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO submission_jobs (job_id, student_id, paper_id, institute_id, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		j.JobID, j.StudentID, j.PaperID, j.InstituteID, model.JobStatusQueued,
	).Scan(&j.CreatedAt)
}

// GetByJobID retrieves a job snapshot.
func (r *JobRepository) GetByJobID(ctx context.Context, jobID uuid.UUID) (*model.SubmissionJob, error) {
	j := &model.SubmissionJob{}
	var score, total, correct *int
	err := r.pool.QueryRow(ctx,
		`SELECT job_id, student_id, paper_id, institute_id, status, submission_id,
		        result_score, result_total, result_correct, error,
		        created_at, started_at, completed_at, attempts
		 FROM submission_jobs
		 WHERE job_id = $1`, jobID,
	).Scan(&j.JobID, &j.StudentID, &j.PaperID, &j.InstituteID, &j.Status, &j.SubmissionID,
		&score, &total, &correct, &j.Error,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.Attempts)
	if err != nil {
		return nil, err
	}
	if score != nil && total != nil && correct != nil {
		j.Result = &model.JobResult{Score: *score, Total: *total, CorrectAnswers: *correct}
	}
	return j, nil
}

// MarkProcessing moves a queued or already-processing job to processing,
// stamping started_at and incrementing the attempt counter. A terminal
// job is left untouched and a missing job is a no-op.
func (r *JobRepository) MarkProcessing(ctx context.Context, jobID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE submission_jobs
		 SET status = $1, started_at = NOW(), attempts = attempts + 1
		 WHERE job_id = $2 AND status IN ($3, $1)`,
		model.JobStatusProcessing, jobID, model.JobStatusQueued)
	return err
}

// MarkCompleted records the grading result and submission reference.
// Re-marking an already-terminal job is last-write-wins, never an error.
func (r *JobRepository) MarkCompleted(ctx context.Context, jobID, submissionID uuid.UUID, result model.JobResult) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE submission_jobs
		 SET status = $1, submission_id = $2,
		     result_score = $3, result_total = $4, result_correct = $5,
		     error = NULL, completed_at = NOW()
		 WHERE job_id = $6`,
		model.JobStatusCompleted, submissionID,
		result.Score, result.Total, result.CorrectAnswers, jobID)
	return err
}

// MarkFailed records a failure with its error text.
func (r *JobRepository) MarkFailed(ctx context.Context, jobID uuid.UUID, errText string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE submission_jobs
		 SET status = $1, error = $2, completed_at = NOW()
		 WHERE job_id = $3`,
		model.JobStatusFailed, errText, jobID)
	return err
}

// DeleteTerminalBefore removes completed/failed jobs whose completed_at is
// older than the cutoff. Returns the number of rows removed.
func (r *JobRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM submission_jobs
		 WHERE status IN ($1, $2) AND completed_at < $3`,
		model.JobStatusCompleted, model.JobStatusFailed, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
