package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/repository"
)

// RankMerger lists completed submissions and merges computed ranks back
// onto them by id.
type RankMerger interface {
	ListDoneByPaper(ctx context.Context, paperID uuid.UUID) ([]model.Submission, error)
	UpdateRanks(ctx context.Context, updates []repository.RankUpdate) error
}

// RankingService computes competition-style ranks (ties share a rank, the
// next distinct score resumes at its 1-based position: 1,2,2,4) globally
// and within each institute. Ranks are recomputed fully on every
// invocation, never maintained incrementally.
type RankingService struct {
	papers PaperStore
	subs   RankMerger
	log    zerolog.Logger
}

// NewRankingService creates a new RankingService.
func NewRankingService(papers PaperStore, subs RankMerger, log zerolog.Logger) *RankingService {
	return &RankingService{
		papers: papers,
		subs:   subs,
		log:    log.With().Str("component", "ranking_service").Logger(),
	}
}

// Recalculate ranks all completed submissions for a paper by effective
// score descending and merges the results back by submission id. Returns
// the number of submissions ranked. The merge never deletes submissions;
// ids not present in the computed set are left untouched.
func (s *RankingService) Recalculate(ctx context.Context, paperID uuid.UUID) (int, error) {
	if _, err := s.papers.GetByID(ctx, paperID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrPaperNotFound
		}
		return 0, fmt.Errorf("load paper: %w", err)
	}

	subs, err := s.subs.ListDoneByPaper(ctx, paperID)
	if err != nil {
		return 0, fmt.Errorf("list submissions: %w", err)
	}
	if len(subs) == 0 {
		return 0, nil
	}

	globalRanks := competitionRanks(subs)

	byInstitute := make(map[uuid.UUID][]model.Submission)
	for _, sub := range subs {
		byInstitute[sub.InstituteID] = append(byInstitute[sub.InstituteID], sub)
	}
	instituteRanks := make(map[uuid.UUID]int, len(subs))
	for _, group := range byInstitute {
		for id, rank := range competitionRanks(group) {
			instituteRanks[id] = rank
		}
	}

	updates := make([]repository.RankUpdate, 0, len(subs))
	for _, sub := range subs {
		updates = append(updates, repository.RankUpdate{
			SubmissionID:  sub.ID,
			GlobalRank:    globalRanks[sub.ID],
			InstituteRank: instituteRanks[sub.ID],
		})
	}
	if err := s.subs.UpdateRanks(ctx, updates); err != nil {
		return 0, fmt.Errorf("merge ranks: %w", err)
	}

	s.log.Info().
		Str("paper_id", paperID.String()).
		Int("ranked", len(updates)).
		Msg("ranks recalculated")
	return len(updates), nil
}

// competitionRanks assigns each submission its competition rank by
// effective score descending: tied scores share a rank and the next
// distinct score's rank equals its 1-based position.
func competitionRanks(subs []model.Submission) map[uuid.UUID]int {
	ordered := make([]model.Submission, len(subs))
	copy(ordered, subs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EffectiveScore() > ordered[j].EffectiveScore()
	})

	ranks := make(map[uuid.UUID]int, len(ordered))
	rank := 0
	prevScore := 0
	for i, sub := range ordered {
		eff := sub.EffectiveScore()
		if i == 0 || eff != prevScore {
			rank = i + 1
			prevScore = eff
		}
		ranks[sub.ID] = rank
	}
	return ranks
}
