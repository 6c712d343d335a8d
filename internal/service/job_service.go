package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/queue"
)

// JobStore is the job lifecycle surface the ingress path needs.
type JobStore interface {
	Create(ctx context.Context, j *model.SubmissionJob) error
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*model.SubmissionJob, error)
	MarkFailed(ctx context.Context, jobID uuid.UUID, errText string) error
}

// TaskQueue is the producer side of the submission queue.
type TaskQueue interface {
	Enqueue(ctx context.Context, task queue.Task) (string, error)
}

// JobService accepts grading requests and exposes job status polling.
type JobService struct {
	jobs  JobStore
	queue TaskQueue
	log   zerolog.Logger
}

// NewJobService creates a new JobService.
func NewJobService(jobs JobStore, q TaskQueue, log zerolog.Logger) *JobService {
	return &JobService{
		jobs:  jobs,
		queue: q,
		log:   log.With().Str("component", "job_service").Logger(),
	}
}

// Submit creates a queued job and enqueues the grading task. The job id
// is assigned before enqueue so the client can poll immediately. If the
// queue rejects the task the job is marked failed right away rather than
// leaving the client stuck on "queued" forever.
func (s *JobService) Submit(ctx context.Context, req model.CreateSubmissionRequest) (*model.SubmissionJob, error) {
	job := &model.SubmissionJob{
		JobID:       uuid.New(),
		StudentID:   req.StudentID,
		PaperID:     req.PaperID,
		InstituteID: req.InstituteID,
		Status:      model.JobStatusQueued,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	answers := make([]queue.Answer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, queue.Answer{Answer: a.Answer})
	}

	task := queue.Task{
		JobID:       job.JobID,
		StudentID:   req.StudentID,
		PaperID:     req.PaperID,
		InstituteID: req.InstituteID,
		Answers:     answers,
	}
	if _, err := s.queue.Enqueue(ctx, task); err != nil {
		s.log.Error().Err(err).Str("job_id", job.JobID.String()).Msg("enqueue failed, marking job failed")
		if markErr := s.jobs.MarkFailed(ctx, job.JobID, "queue unavailable: "+err.Error()); markErr != nil {
			s.log.Error().Err(markErr).Str("job_id", job.JobID.String()).Msg("mark failed after enqueue error")
		}
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	s.log.Info().
		Str("job_id", job.JobID.String()).
		Str("paper_id", req.PaperID.String()).
		Msg("submission enqueued")
	return job, nil
}

// Status returns a snapshot of the job's lifecycle.
func (s *JobService) Status(ctx context.Context, jobID uuid.UUID) (*model.SubmissionJob, error) {
	job, err := s.jobs.GetByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}
