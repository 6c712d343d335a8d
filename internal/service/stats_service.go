package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/model"
)

// topStudentsLimit caps the per-institute top-scorer references.
const topStudentsLimit = 5

// SubmissionReader lists completed submissions for aggregation.
type SubmissionReader interface {
	ListDoneByPaper(ctx context.Context, paperID uuid.UUID) ([]model.Submission, error)
}

// StatsStore persists and retrieves paper stats documents.
type StatsStore interface {
	Get(ctx context.Context, paperID uuid.UUID) (*model.PaperStats, error)
	Replace(ctx context.Context, st *model.PaperStats) error
}

// StatsService recomputes a paper's aggregate statistics from scratch and
// atomically replaces the stored document. Running it twice with no new
// submissions yields identical arrays.
type StatsService struct {
	papers PaperStore
	subs   SubmissionReader
	stats  StatsStore
	log    zerolog.Logger
}

// NewStatsService creates a new StatsService.
func NewStatsService(papers PaperStore, subs SubmissionReader, stats StatsStore, log zerolog.Logger) *StatsService {
	return &StatsService{
		papers: papers,
		subs:   subs,
		stats:  stats,
		log:    log.With().Str("component", "stats_service").Logger(),
	}
}

// Build aggregates per-question incorrect counts and per-institute
// descriptive statistics for the paper, then fully replaces the stats
// document in one write. A failure before that final write leaves the
// previous document untouched.
func (s *StatsService) Build(ctx context.Context, paperID uuid.UUID) (*model.PaperStats, error) {
	paper, err := s.papers.GetByID(ctx, paperID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaperNotFound
		}
		return nil, fmt.Errorf("load paper: %w", err)
	}

	subs, err := s.subs.ListDoneByPaper(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	st := &model.PaperStats{
		PaperID:         paperID,
		QuestionResults: buildQuestionResults(paper.Questions, subs),
		InstituteStats:  buildInstituteStats(subs),
		UpdatedAt:       time.Now().UTC(),
	}

	if err := s.stats.Replace(ctx, st); err != nil {
		return nil, fmt.Errorf("replace stats: %w", err)
	}

	s.log.Info().
		Str("paper_id", paperID.String()).
		Int("questions", len(st.QuestionResults)).
		Int("institutes", len(st.InstituteStats)).
		Int("submissions", len(subs)).
		Msg("paper stats rebuilt")
	return st, nil
}

// buildQuestionResults tallies incorrect answers per question. Every
// question of the paper appears in order, zero-filled when nobody got
// it wrong.
func buildQuestionResults(questions []model.Question, subs []model.Submission) []model.QuestionStat {
	incorrect := make(map[uuid.UUID]int)
	for _, sub := range subs {
		for _, a := range sub.Answers {
			if !a.IsCorrect {
				incorrect[a.QuestionID]++
			}
		}
	}

	results := make([]model.QuestionStat, 0, len(questions))
	for _, q := range questions {
		results = append(results, model.QuestionStat{
			QuestionID:     q.ID,
			TotalIncorrect: incorrect[q.ID],
		})
	}
	return results
}

// buildInstituteStats groups submissions by institute and computes count,
// average (2 decimals), max, min over effective scores plus the top
// scorers. Institutes are emitted in id order so repeated runs produce
// identical arrays.
func buildInstituteStats(subs []model.Submission) []model.InstituteStat {
	byInstitute := make(map[uuid.UUID][]model.Submission)
	for _, sub := range subs {
		byInstitute[sub.InstituteID] = append(byInstitute[sub.InstituteID], sub)
	}

	instituteIDs := make([]uuid.UUID, 0, len(byInstitute))
	for id := range byInstitute {
		instituteIDs = append(instituteIDs, id)
	}
	sort.Slice(instituteIDs, func(i, j int) bool {
		return instituteIDs[i].String() < instituteIDs[j].String()
	})

	stats := make([]model.InstituteStat, 0, len(instituteIDs))
	for _, instID := range instituteIDs {
		group := byInstitute[instID]

		sum := 0
		maxScore := group[0].EffectiveScore()
		minScore := maxScore
		for _, sub := range group {
			eff := sub.EffectiveScore()
			sum += eff
			if eff > maxScore {
				maxScore = eff
			}
			if eff < minScore {
				minScore = eff
			}
		}
		avg := math.Round(float64(sum)/float64(len(group))*100) / 100

		stats = append(stats, model.InstituteStat{
			InstituteID:   instID,
			TotalStudents: len(group),
			AverageMarks:  avg,
			MaxMarks:      maxScore,
			MinMarks:      minScore,
			TopStudents:   topSubmissionIDs(group, topStudentsLimit),
		})
	}
	return stats
}

// topSubmissionIDs selects the highest-scoring submissions, breaking ties
// by earliest submission time, then by id, so the selection is stable
// across runs on identical input.
func topSubmissionIDs(subs []model.Submission, limit int) []uuid.UUID {
	ordered := make([]model.Submission, len(subs))
	copy(ordered, subs)

	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.EffectiveScore() != b.EffectiveScore() {
			return a.EffectiveScore() > b.EffectiveScore()
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	ids := make([]uuid.UUID, 0, len(ordered))
	for _, sub := range ordered {
		ids = append(ids, sub.ID)
	}
	return ids
}
