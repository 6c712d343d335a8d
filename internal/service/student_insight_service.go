package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/model"
)

// StudentSubmissionReader lists submissions for student-centric reads.
type StudentSubmissionReader interface {
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.Submission, error)
	ListByPaper(ctx context.Context, paperID uuid.UUID) ([]model.Submission, error)
}

// PaperScoreRow compares a student's percentage on one paper with the
// average percentage of everyone who wrote it.
type PaperScoreRow struct {
	PaperID        uuid.UUID `json:"paper_id"`
	PaperTitle     string    `json:"paper_title"`
	AverageMarks   float64   `json:"average_marks"`
	StudentMarks   float64   `json:"student_marks"`
	TotalQuestions int       `json:"total_questions"`
}

// IncorrectEntry is one incorrectly-answered question within a summary.
type IncorrectEntry struct {
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedAnswer int       `json:"selected_answer"`
	CorrectAnswer  int       `json:"correct_answer"`
	Reviewed       bool      `json:"reviewed"`
}

// IncorrectSubmission groups a submission's incorrect answers by
// question category.
type IncorrectSubmission struct {
	SubmissionID uuid.UUID                   `json:"submission_id"`
	PaperTitle   string                      `json:"paper_title"`
	Categories   map[string][]IncorrectEntry `json:"categories"`
}

// IncorrectSummary aggregates a student's incorrect answers across all
// their submissions.
type IncorrectSummary struct {
	TotalIncorrect int                   `json:"total_incorrect"`
	Reviewed       int                   `json:"reviewed"`
	PendingReview  int                   `json:"pending_review"`
	Submissions    []IncorrectSubmission `json:"submissions"`
}

// PaperOverview is the difficulty-banded summary of one paper's results.
type PaperOverview struct {
	AvgScore   float64 `json:"avg_score"`
	Max        int     `json:"max"`
	Min        int     `json:"min"`
	Total      int     `json:"total"`
	Difficulty string  `json:"difficulty"`
}

// StudentInsightService serves student-centric analytics reads: per-paper
// scores against the field, incorrect-answer summaries, and per-paper
// overviews.
type StudentInsightService struct {
	papers PaperStore
	subs   StudentSubmissionReader
	log    zerolog.Logger
}

// NewStudentInsightService creates a new StudentInsightService.
func NewStudentInsightService(papers PaperStore, subs StudentSubmissionReader, log zerolog.Logger) *StudentInsightService {
	return &StudentInsightService{
		papers: papers,
		subs:   subs,
		log:    log.With().Str("component", "student_insight_service").Logger(),
	}
}

// PaperScores returns, for every paper the student attempted, their
// percentage next to the average percentage of all writers.
func (s *StudentInsightService) PaperScores(ctx context.Context, studentID uuid.UUID) ([]PaperScoreRow, error) {
	own, err := s.subs.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student submissions: %w", err)
	}

	seen := make(map[uuid.UUID]bool)
	rows := make([]PaperScoreRow, 0, len(own))
	for _, sub := range own {
		if seen[sub.PaperID] {
			continue
		}
		seen[sub.PaperID] = true

		paper, err := s.papers.GetByID(ctx, sub.PaperID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue // Paper was removed; skip its submissions
			}
			return nil, fmt.Errorf("load paper: %w", err)
		}
		total := len(paper.Questions)
		if total == 0 {
			total = 1
		}

		all, err := s.subs.ListByPaper(ctx, sub.PaperID)
		if err != nil {
			return nil, fmt.Errorf("list paper submissions: %w", err)
		}
		sum := 0.0
		for _, other := range all {
			sum += percentage(other.EffectiveScore(), total)
		}
		avg := 0.0
		if len(all) > 0 {
			avg = round2(sum / float64(len(all)))
		}

		rows = append(rows, PaperScoreRow{
			PaperID:        paper.ID,
			PaperTitle:     paper.Title,
			AverageMarks:   avg,
			StudentMarks:   round2(percentage(sub.EffectiveScore(), total)),
			TotalQuestions: len(paper.Questions),
		})
	}
	return rows, nil
}

// IncorrectSummary groups the student's incorrect answers by question
// category with reviewed/pending counts.
func (s *StudentInsightService) IncorrectSummary(ctx context.Context, studentID uuid.UUID) (*IncorrectSummary, error) {
	subs, err := s.subs.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student submissions: %w", err)
	}

	summary := &IncorrectSummary{Submissions: []IncorrectSubmission{}}
	for _, sub := range subs {
		paper, err := s.papers.GetByID(ctx, sub.PaperID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("load paper: %w", err)
		}

		questions := make(map[uuid.UUID]model.Question, len(paper.Questions))
		for _, q := range paper.Questions {
			questions[q.ID] = q
		}

		categories := make(map[string][]IncorrectEntry)
		for _, ans := range sub.Answers {
			if ans.IsCorrect {
				continue
			}
			summary.TotalIncorrect++
			if ans.Reviewed {
				summary.Reviewed++
			} else {
				summary.PendingReview++
			}

			q, ok := questions[ans.QuestionID]
			if !ok {
				continue
			}
			category := q.Category
			if category == "" {
				category = "Uncategorized"
			}
			categories[category] = append(categories[category], IncorrectEntry{
				QuestionID:     ans.QuestionID,
				SelectedAnswer: ans.SelectedAnswer,
				CorrectAnswer:  q.CorrectAnswer,
				Reviewed:       ans.Reviewed,
			})
		}

		if len(categories) > 0 {
			summary.Submissions = append(summary.Submissions, IncorrectSubmission{
				SubmissionID: sub.ID,
				PaperTitle:   paper.Title,
				Categories:   categories,
			})
		}
	}
	return summary, nil
}

// Overview computes avg/max/min/total for a paper, optionally restricted
// to one institute, with a difficulty band derived from the average
// percentage: under 40% is Hard, over 70% is Easy, otherwise Moderate.
func (s *StudentInsightService) Overview(ctx context.Context, paperID uuid.UUID, instituteID *uuid.UUID) (*PaperOverview, error) {
	paper, err := s.papers.GetByID(ctx, paperID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaperNotFound
		}
		return nil, fmt.Errorf("load paper: %w", err)
	}

	subs, err := s.subs.ListByPaper(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	if instituteID != nil {
		filtered := subs[:0]
		for _, sub := range subs {
			if sub.InstituteID == *instituteID {
				filtered = append(filtered, sub)
			}
		}
		subs = filtered
	}
	if len(subs) == 0 {
		return &PaperOverview{Difficulty: "Moderate"}, nil
	}

	sum := 0
	maxScore := subs[0].EffectiveScore()
	minScore := maxScore
	for _, sub := range subs {
		eff := sub.EffectiveScore()
		sum += eff
		if eff > maxScore {
			maxScore = eff
		}
		if eff < minScore {
			minScore = eff
		}
	}
	avg := float64(sum) / float64(len(subs))

	total := len(paper.Questions)
	if total == 0 {
		total = 1
	}
	difficulty := "Moderate"
	switch percent := avg / float64(total) * 100; {
	case percent < 40:
		difficulty = "Hard"
	case percent > 70:
		difficulty = "Easy"
	}

	return &PaperOverview{
		AvgScore:   round2(avg),
		Max:        maxScore,
		Min:        minScore,
		Total:      len(subs),
		Difficulty: difficulty,
	}, nil
}

func percentage(score, total int) float64 {
	return float64(score) / float64(total) * 100
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
