package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-grading/internal/model"
)

// fakeStatsStore keeps the last replaced document per paper.
type fakeStatsStore struct {
	docs     map[uuid.UUID]*model.PaperStats
	replaces int
}

func newFakeStatsStore() *fakeStatsStore {
	return &fakeStatsStore{docs: make(map[uuid.UUID]*model.PaperStats)}
}

func (f *fakeStatsStore) Get(ctx context.Context, paperID uuid.UUID) (*model.PaperStats, error) {
	st, ok := f.docs[paperID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return st, nil
}

func (f *fakeStatsStore) Replace(ctx context.Context, st *model.PaperStats) error {
	f.docs[st.PaperID] = st
	f.replaces++
	return nil
}

func doneSubmission(paperID, instituteID uuid.UUID, score int, submittedAt time.Time, answers []model.QuestionResult) model.Submission {
	return model.Submission{
		ID:          uuid.New(),
		StudentID:   uuid.New(),
		PaperID:     paperID,
		InstituteID: instituteID,
		Answers:     answers,
		Status:      model.SubmissionStatusDone,
		SubmittedAt: submittedAt,
		Score:       intPtr(score),
	}
}

func TestStatsBuildZeroFillsEveryQuestion(t *testing.T) {
	paper := buildPaper([]int{0, 1, 2})
	papers := &fakePaperStore{papers: map[uuid.UUID]*model.Paper{paper.ID: paper}}
	subs := &fakeSubmissionStore{}
	store := newFakeStatsStore()
	svc := NewStatsService(papers, subs, store, testLogger())

	inst := uuid.New()
	// One student got question 2 wrong; nobody touched question 3 wrongly.
	subs.subs = append(subs.subs, doneSubmission(paper.ID, inst, 2, time.Now(), []model.QuestionResult{
		{QuestionID: paper.Questions[0].ID, IsCorrect: true},
		{QuestionID: paper.Questions[1].ID, IsCorrect: false},
		{QuestionID: paper.Questions[2].ID, IsCorrect: true},
	}))

	st, err := svc.Build(context.Background(), paper.ID)
	require.NoError(t, err)

	require.Len(t, st.QuestionResults, 3)
	require.Equal(t, paper.Questions[0].ID, st.QuestionResults[0].QuestionID)
	require.Equal(t, 0, st.QuestionResults[0].TotalIncorrect)
	require.Equal(t, 1, st.QuestionResults[1].TotalIncorrect)
	require.Equal(t, 0, st.QuestionResults[2].TotalIncorrect)
}

func TestStatsBuildInstituteAggregates(t *testing.T) {
	paper := buildPaper([]int{0, 1, 2, 3})
	papers := &fakePaperStore{papers: map[uuid.UUID]*model.Paper{paper.ID: paper}}
	subs := &fakeSubmissionStore{}
	store := newFakeStatsStore()
	svc := NewStatsService(papers, subs, store, testLogger())

	instA := uuid.New()
	instB := uuid.New()
	now := time.Now()
	subs.subs = append(subs.subs,
		doneSubmission(paper.ID, instA, 4, now, nil),
		doneSubmission(paper.ID, instA, 1, now, nil),
		doneSubmission(paper.ID, instB, 3, now, nil),
	)

	st, err := svc.Build(context.Background(), paper.ID)
	require.NoError(t, err)
	require.Len(t, st.InstituteStats, 2)

	byInst := make(map[uuid.UUID]model.InstituteStat)
	for _, is := range st.InstituteStats {
		byInst[is.InstituteID] = is
	}

	a := byInst[instA]
	require.Equal(t, 2, a.TotalStudents)
	require.Equal(t, 2.5, a.AverageMarks)
	require.Equal(t, 4, a.MaxMarks)
	require.Equal(t, 1, a.MinMarks)
	require.Len(t, a.TopStudents, 2)

	b := byInst[instB]
	require.Equal(t, 1, b.TotalStudents)
	require.Equal(t, 3.0, b.AverageMarks)
	require.Equal(t, 3, b.MaxMarks)
	require.Equal(t, 3, b.MinMarks)
}

func TestStatsBuildAverageRoundsToTwoDecimals(t *testing.T) {
	paper := buildPaper([]int{0, 1, 2})
	papers := &fakePaperStore{papers: map[uuid.UUID]*model.Paper{paper.ID: paper}}
	subs := &fakeSubmissionStore{}
	store := newFakeStatsStore()
	svc := NewStatsService(papers, subs, store, testLogger())

	inst := uuid.New()
	now := time.Now()
	// 1+1+2 over 3 students = 1.3333... → 1.33
	subs.subs = append(subs.subs,
		doneSubmission(paper.ID, inst, 1, now, nil),
		doneSubmission(paper.ID, inst, 1, now, nil),
		doneSubmission(paper.ID, inst, 2, now, nil),
	)

	st, err := svc.Build(context.Background(), paper.ID)
	require.NoError(t, err)
	require.Equal(t, 1.33, st.InstituteStats[0].AverageMarks)
}

func TestStatsBuildTopStudentsTieBreakBySubmissionTime(t *testing.T) {
	paper := buildPaper([]int{0})
	papers := &fakePaperStore{papers: map[uuid.UUID]*model.Paper{paper.ID: paper}}
	subs := &fakeSubmissionStore{}
	store := newFakeStatsStore()
	svc := NewStatsService(papers, subs, store, testLogger())

	inst := uuid.New()
	base := time.Now()
	later := doneSubmission(paper.ID, inst, 5, base.Add(time.Minute), nil)
	earlier := doneSubmission(paper.ID, inst, 5, base, nil)
	lower := doneSubmission(paper.ID, inst, 3, base.Add(-time.Hour), nil)
	for i := 0; i < 4; i++ {
		subs.subs = append(subs.subs, doneSubmission(paper.ID, inst, 1, base, nil))
	}
	subs.subs = append(subs.subs, later, earlier, lower)

	st, err := svc.Build(context.Background(), paper.ID)
	require.NoError(t, err)

	top := st.InstituteStats[0].TopStudents
	require.Len(t, top, 5)
	require.Equal(t, earlier.ID, top[0])
	require.Equal(t, later.ID, top[1])
	require.Equal(t, lower.ID, top[2])
}

func TestStatsBuildIsIdempotent(t *testing.T) {
	paper := buildPaper([]int{0, 1})
	papers := &fakePaperStore{papers: map[uuid.UUID]*model.Paper{paper.ID: paper}}
	subs := &fakeSubmissionStore{}
	store := newFakeStatsStore()
	svc := NewStatsService(papers, subs, store, testLogger())

	inst := uuid.New()
	now := time.Now()
	subs.subs = append(subs.subs,
		doneSubmission(paper.ID, inst, 2, now, nil),
		doneSubmission(paper.ID, inst, 1, now.Add(time.Second), nil),
	)

	first, err := svc.Build(context.Background(), paper.ID)
	require.NoError(t, err)
	second, err := svc.Build(context.Background(), paper.ID)
	require.NoError(t, err)

	require.Equal(t, first.QuestionResults, second.QuestionResults)
	require.Equal(t, first.InstituteStats, second.InstituteStats)
	require.Equal(t, 2, store.replaces)
}

func TestStatsBuildUnknownPaper(t *testing.T) {
	svc := NewStatsService(&fakePaperStore{papers: map[uuid.UUID]*model.Paper{}}, &fakeSubmissionStore{}, newFakeStatsStore(), testLogger())

	_, err := svc.Build(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrPaperNotFound)
}
