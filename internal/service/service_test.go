package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// fakePaperStore serves papers from memory; unknown ids behave like an
// empty query result.
type fakePaperStore struct {
	papers map[uuid.UUID]*model.Paper
}

func (f *fakePaperStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Paper, error) {
	p, ok := f.papers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

// fakeSubmissionStore keeps submissions in insertion order and records
// rank merges.
type fakeSubmissionStore struct {
	subs        []model.Submission
	rankUpdates []repository.RankUpdate
}

func (f *fakeSubmissionStore) Create(ctx context.Context, s *model.Submission) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	f.subs = append(f.subs, *s)
	return nil
}

func (f *fakeSubmissionStore) ListDoneByPaper(ctx context.Context, paperID uuid.UUID) ([]model.Submission, error) {
	var out []model.Submission
	for _, s := range f.subs {
		if s.PaperID == paperID && s.Status == model.SubmissionStatusDone {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubmissionStore) ListByPaper(ctx context.Context, paperID uuid.UUID) ([]model.Submission, error) {
	var out []model.Submission
	for _, s := range f.subs {
		if s.PaperID == paperID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubmissionStore) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.Submission, error) {
	var out []model.Submission
	for _, s := range f.subs {
		if s.StudentID == studentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubmissionStore) UpdateRanks(ctx context.Context, updates []repository.RankUpdate) error {
	f.rankUpdates = append([]repository.RankUpdate(nil), updates...)
	byID := make(map[uuid.UUID]repository.RankUpdate, len(updates))
	for _, u := range updates {
		byID[u.SubmissionID] = u
	}
	for i := range f.subs {
		if u, ok := byID[f.subs[i].ID]; ok {
			g, inst := u.GlobalRank, u.InstituteRank
			f.subs[i].GlobalRank = &g
			f.subs[i].InstituteRank = &inst
		}
	}
	return nil
}

// fakeJobStore tracks job lifecycle transitions in memory.
type fakeJobStore struct {
	jobs map[uuid.UUID]*model.SubmissionJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[uuid.UUID]*model.SubmissionJob)}
}

func (f *fakeJobStore) Create(ctx context.Context, j *model.SubmissionJob) error {
	j.CreatedAt = time.Now()
	stored := *j
	f.jobs[j.JobID] = &stored
	return nil
}

func (f *fakeJobStore) GetByJobID(ctx context.Context, jobID uuid.UUID) (*model.SubmissionJob, error) {
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	snapshot := *j
	return &snapshot, nil
}

func (f *fakeJobStore) MarkProcessing(ctx context.Context, jobID uuid.UUID) error {
	j, ok := f.jobs[jobID]
	if !ok || j.Status.IsTerminal() {
		return nil
	}
	j.Status = model.JobStatusProcessing
	now := time.Now()
	j.StartedAt = &now
	j.Attempts++
	return nil
}

func (f *fakeJobStore) MarkCompleted(ctx context.Context, jobID, submissionID uuid.UUID, result model.JobResult) error {
	j, ok := f.jobs[jobID]
	if !ok {
		return nil
	}
	j.Status = model.JobStatusCompleted
	j.SubmissionID = &submissionID
	j.Result = &result
	j.Error = nil
	now := time.Now()
	j.CompletedAt = &now
	return nil
}

func (f *fakeJobStore) MarkFailed(ctx context.Context, jobID uuid.UUID, errText string) error {
	j, ok := f.jobs[jobID]
	if !ok {
		return nil
	}
	j.Status = model.JobStatusFailed
	j.Error = &errText
	now := time.Now()
	j.CompletedAt = &now
	return nil
}

// buildPaper creates a paper with n questions whose correct answers
// follow the given key.
func buildPaper(key []int) *model.Paper {
	p := &model.Paper{
		ID:      uuid.New(),
		Title:   "Tryout Matematika",
		Subject: "Matematika",
		Year:    "2026",
	}
	for i, correct := range key {
		p.Questions = append(p.Questions, model.Question{
			ID:            uuid.New(),
			PaperID:       p.ID,
			Position:      i + 1,
			CorrectAnswer: correct,
			Category:      "aljabar",
		})
	}
	return p
}

func intPtr(v int) *int { return &v }
