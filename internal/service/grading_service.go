package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/queue"
)

// GradingJobStore is the job lifecycle surface the worker needs.
type GradingJobStore interface {
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*model.SubmissionJob, error)
	MarkProcessing(ctx context.Context, jobID uuid.UUID) error
	MarkCompleted(ctx context.Context, jobID, submissionID uuid.UUID, result model.JobResult) error
	MarkFailed(ctx context.Context, jobID uuid.UUID, errText string) error
}

// PaperStore is the read-only paper access the worker needs.
type PaperStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Paper, error)
}

// SubmissionWriter persists graded submissions.
type SubmissionWriter interface {
	Create(ctx context.Context, s *model.Submission) error
}

// GradingService grades one queued submission task against its paper's
// answer key and records the outcome on the job.
type GradingService struct {
	jobs   GradingJobStore
	papers PaperStore
	subs   SubmissionWriter
	log    zerolog.Logger
}

// NewGradingService creates a new GradingService.
func NewGradingService(jobs GradingJobStore, papers PaperStore, subs SubmissionWriter, log zerolog.Logger) *GradingService {
	return &GradingService{
		jobs:   jobs,
		papers: papers,
		subs:   subs,
		log:    log.With().Str("component", "grading_service").Logger(),
	}
}

// Process grades a single task. The queue delivers at least once, so a
// redelivered task whose job already completed is skipped without
// creating a second submission. On failure the job is marked failed and
// the error returned; the caller still deletes the message so a poison
// payload cannot loop forever.
func (s *GradingService) Process(ctx context.Context, task queue.Task) error {
	if job, err := s.jobs.GetByJobID(ctx, task.JobID); err == nil && job.Status == model.JobStatusCompleted {
		s.log.Info().Str("job_id", task.JobID.String()).Msg("job already completed, skipping redelivery")
		return nil
	}

	if err := s.jobs.MarkProcessing(ctx, task.JobID); err != nil {
		s.log.Error().Err(err).Str("job_id", task.JobID.String()).Msg("mark processing failed")
	}

	paper, err := s.papers.GetByID(ctx, task.PaperID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.fail(ctx, task.JobID, ErrPaperNotFound)
		}
		return s.fail(ctx, task.JobID, fmt.Errorf("load paper: %w", err))
	}

	results, score := gradeAnswers(paper.Questions, task.Answers)

	sub := &model.Submission{
		StudentID:   task.StudentID,
		PaperID:     task.PaperID,
		InstituteID: task.InstituteID,
		Answers:     results,
		Status:      model.SubmissionStatusDone,
		SubmittedAt: time.Now().UTC(),
		Score:       &score,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return s.fail(ctx, task.JobID, fmt.Errorf("persist submission: %w", err))
	}

	result := model.JobResult{Score: score, Total: len(paper.Questions), CorrectAnswers: score}
	if err := s.jobs.MarkCompleted(ctx, task.JobID, sub.ID, result); err != nil {
		s.log.Error().Err(err).Str("job_id", task.JobID.String()).Msg("mark completed failed")
	}

	s.log.Info().
		Str("job_id", task.JobID.String()).
		Str("submission_id", sub.ID.String()).
		Int("score", score).
		Int("total", len(paper.Questions)).
		Msg("submission graded")
	return nil
}

func (s *GradingService) fail(ctx context.Context, jobID uuid.UUID, cause error) error {
	if err := s.jobs.MarkFailed(ctx, jobID, cause.Error()); err != nil {
		s.log.Error().Err(err).Str("job_id", jobID.String()).Msg("mark failed failed")
	}
	return cause
}

// gradeAnswers compares selected answers against the paper's ordered
// question list. A question with no corresponding answer counts as
// incorrect with selected answer -1. Correctly-answered questions are
// marked reviewed; incorrect ones await the student's manual review.
func gradeAnswers(questions []model.Question, answers []queue.Answer) ([]model.QuestionResult, int) {
	results := make([]model.QuestionResult, 0, len(questions))
	score := 0

	for i, q := range questions {
		selected := -1
		if i < len(answers) {
			selected = answers[i].Answer
		}
		isCorrect := selected == q.CorrectAnswer
		if isCorrect {
			score++
		}
		results = append(results, model.QuestionResult{
			QuestionID:     q.ID,
			SelectedAnswer: selected,
			IsCorrect:      isCorrect,
			Reviewed:       isCorrect,
		})
	}
	return results, score
}
