package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-grading/internal/model"
)

func TestRankingCompetitionStyle(t *testing.T) {
	paper := buildPaper([]int{0})
	papers := &fakePaperStore{papers: map[uuid.UUID]*model.Paper{paper.ID: paper}}
	subs := &fakeSubmissionStore{}
	svc := NewRankingService(papers, subs, testLogger())

	inst := uuid.New()
	now := time.Now()
	scores := []int{90, 90, 80, 70}
	ids := make([]uuid.UUID, len(scores))
	for i, score := range scores {
		sub := doneSubmission(paper.ID, inst, score, now, nil)
		ids[i] = sub.ID
		subs.subs = append(subs.subs, sub)
	}

	ranked, err := svc.Recalculate(context.Background(), paper.ID)
	require.NoError(t, err)
	require.Equal(t, 4, ranked)

	got := make(map[uuid.UUID]int)
	for _, u := range subs.rankUpdates {
		got[u.SubmissionID] = u.GlobalRank
	}
	// 90, 90, 80, 70 → 1, 1, 3, 4
	require.Equal(t, 1, got[ids[0]])
	require.Equal(t, 1, got[ids[1]])
	require.Equal(t, 3, got[ids[2]])
	require.Equal(t, 4, got[ids[3]])
}

func TestRankingInstitutePartition(t *testing.T) {
	paper := buildPaper([]int{0})
	papers := &fakePaperStore{papers: map[uuid.UUID]*model.Paper{paper.ID: paper}}
	subs := &fakeSubmissionStore{}
	svc := NewRankingService(papers, subs, testLogger())

	instA := uuid.New()
	instB := uuid.New()
	now := time.Now()
	a1 := doneSubmission(paper.ID, instA, 10, now, nil)
	a2 := doneSubmission(paper.ID, instA, 5, now, nil)
	b1 := doneSubmission(paper.ID, instB, 7, now, nil)
	subs.subs = append(subs.subs, a1, a2, b1)

	_, err := svc.Recalculate(context.Background(), paper.ID)
	require.NoError(t, err)

	global := make(map[uuid.UUID]int)
	institute := make(map[uuid.UUID]int)
	for _, u := range subs.rankUpdates {
		global[u.SubmissionID] = u.GlobalRank
		institute[u.SubmissionID] = u.InstituteRank
	}

	require.Equal(t, 1, global[a1.ID])
	require.Equal(t, 2, global[b1.ID])
	require.Equal(t, 3, global[a2.ID])

	// Institute ranks are computed within each institute only.
	require.Equal(t, 1, institute[a1.ID])
	require.Equal(t, 2, institute[a2.ID])
	require.Equal(t, 1, institute[b1.ID])
}

func TestRankingNoSubmissions(t *testing.T) {
	paper := buildPaper([]int{0})
	papers := &fakePaperStore{papers: map[uuid.UUID]*model.Paper{paper.ID: paper}}
	subs := &fakeSubmissionStore{}
	svc := NewRankingService(papers, subs, testLogger())

	ranked, err := svc.Recalculate(context.Background(), paper.ID)
	require.NoError(t, err)
	require.Zero(t, ranked)
	require.Empty(t, subs.rankUpdates)
}

func TestRankingUnknownPaper(t *testing.T) {
	svc := NewRankingService(&fakePaperStore{papers: map[uuid.UUID]*model.Paper{}}, &fakeSubmissionStore{}, testLogger())

	_, err := svc.Recalculate(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrPaperNotFound)
}
