package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/model"
)

// statsReadyGrace is how long after the latest window end clients are
// told to come back for the leaderboard.
const statsReadyGrace = 5 * time.Minute

// StudentDirectory resolves student display names and institute membership.
type StudentDirectory interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Student, error)
}

// InstituteDirectory resolves institute display names.
type InstituteDirectory interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Institute, error)
}

// PaperSummary is the paper header attached to every stats response.
type PaperSummary struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Subject        string    `json:"subject"`
	QuestionsCount int       `json:"questions_count"`
}

// QuestionResultView is one per-question tally enriched with the
// question's position within the paper.
type QuestionResultView struct {
	QuestionID     uuid.UUID `json:"question_id"`
	TotalIncorrect int       `json:"total_incorrect"`
	QuestionIndex  *int      `json:"question_index"`
}

// LeaderboardRow is one ranked submission with display names resolved.
type LeaderboardRow struct {
	StudentID     uuid.UUID `json:"student_id"`
	StudentName   string    `json:"student_name"`
	InstituteID   uuid.UUID `json:"institute_id"`
	InstituteName string    `json:"institute_name"`
	Score         int       `json:"score"`
	SubmittedAt   time.Time `json:"submitted_at"`
	OverallRank   int       `json:"overall_rank"`
	InstituteRank int       `json:"institute_rank"`
}

// InstituteLeaderboard is one institute's ranked rows.
type InstituteLeaderboard struct {
	InstituteID   uuid.UUID        `json:"institute_id"`
	InstituteName string           `json:"institute_name"`
	Leaderboard   []LeaderboardRow `json:"leaderboard"`
}

// PaperStatsView is the leaderboard read model. When stats have not been
// built yet OK is false, StatsNotReady is true and the availability
// fields tell the client when to come back.
type PaperStatsView struct {
	OK            bool `json:"ok"`
	StatsNotReady bool `json:"stats_not_ready,omitempty"`

	Paper                 PaperSummary           `json:"paper"`
	QuestionResultsSorted []QuestionResultView   `json:"question_results_sorted,omitempty"`
	OverallLeaderboard    []LeaderboardRow       `json:"overall_leaderboard,omitempty"`
	InstituteLeaderboards []InstituteLeaderboard `json:"institute_leaderboards,omitempty"`

	PaperEndTime     *time.Time `json:"paper_end_time,omitempty"`
	StatsAvailableAt *time.Time `json:"stats_available_at,omitempty"`
	Message          string     `json:"message,omitempty"`
}

// LeaderboardService assembles the stats/leaderboard read model from the
// stats document, the submissions and the directory stores.
type LeaderboardService struct {
	papers     PaperStore
	subs       SubmissionReader
	stats      StatsStore
	students   StudentDirectory
	institutes InstituteDirectory
	log        zerolog.Logger
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(papers PaperStore, subs SubmissionReader, stats StatsStore, students StudentDirectory, institutes InstituteDirectory, log zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		papers:     papers,
		subs:       subs,
		stats:      stats,
		students:   students,
		institutes: institutes,
		log:        log.With().Str("component", "leaderboard_service").Logger(),
	}
}

// Get returns the stats view for a paper, or the structured "come back
// later" view when the stats document has not been built yet.
func (s *LeaderboardService) Get(ctx context.Context, paperID uuid.UUID) (*PaperStatsView, error) {
	paper, err := s.papers.GetByID(ctx, paperID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaperNotFound
		}
		return nil, fmt.Errorf("load paper: %w", err)
	}

	summary := PaperSummary{
		ID:             paper.ID,
		Title:          paper.Title,
		Subject:        paper.Subject,
		QuestionsCount: len(paper.Questions),
	}

	stats, err := s.stats.Get(ctx, paperID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notReadyView(paper, summary), nil
		}
		return nil, fmt.Errorf("load stats: %w", err)
	}

	subs, err := s.subs.ListDoneByPaper(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	rows, err := s.buildRows(ctx, subs)
	if err != nil {
		return nil, err
	}

	return &PaperStatsView{
		OK:                    true,
		Paper:                 summary,
		QuestionResultsSorted: sortQuestionResults(paper.Questions, stats.QuestionResults),
		OverallLeaderboard:    rows,
		InstituteLeaderboards: groupByInstitute(rows),
	}, nil
}

func notReadyView(paper *model.Paper, summary PaperSummary) *PaperStatsView {
	view := &PaperStatsView{
		OK:            false,
		StatsNotReady: true,
		Paper:         summary,
		Message:       "Statistik paper sedang diproses. Silakan periksa kembali nanti.",
	}
	if latest := paper.LatestEndTime(); !latest.IsZero() {
		availableAt := latest.Add(statsReadyGrace)
		view.PaperEndTime = &latest
		view.StatsAvailableAt = &availableAt
		view.Message = "Papan peringkat akan tersedia lima menit setelah waktu akhir paper."
	}
	return view
}

func (s *LeaderboardService) buildRows(ctx context.Context, subs []model.Submission) ([]LeaderboardRow, error) {
	studentIDs := make([]uuid.UUID, 0, len(subs))
	instituteIDs := make([]uuid.UUID, 0, len(subs))
	seenInstitutes := make(map[uuid.UUID]bool)
	for _, sub := range subs {
		studentIDs = append(studentIDs, sub.StudentID)
		if !seenInstitutes[sub.InstituteID] {
			seenInstitutes[sub.InstituteID] = true
			instituteIDs = append(instituteIDs, sub.InstituteID)
		}
	}

	students, err := s.students.ListByIDs(ctx, studentIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve students: %w", err)
	}
	institutes, err := s.institutes.ListByIDs(ctx, instituteIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve institutes: %w", err)
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

	rows := make([]LeaderboardRow, 0, len(subs))
	for _, sub := range subs {
		row := LeaderboardRow{
			StudentID:     sub.StudentID,
			InstituteID:   sub.InstituteID,
			Score:         sub.EffectiveScore(),
			SubmittedAt:   sub.SubmittedAt,
			OverallRank:   globalRanks[sub.ID],
			InstituteRank: instituteRanks[sub.ID],
		}
		if st, ok := students[sub.StudentID]; ok {
			row.StudentName = st.Name
		}
		if inst, ok := institutes[sub.InstituteID]; ok {
			row.InstituteName = inst.Name
		}
		rows = append(rows, row)
	}

	// Display order only; ranks are already fixed.
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.StudentName < b.StudentName
	})
	return rows, nil
}

func sortQuestionResults(questions []model.Question, stats []model.QuestionStat) []QuestionResultView {
	index := make(map[uuid.UUID]int, len(questions))
	for i, q := range questions {
		index[q.ID] = i
	}

	views := make([]QuestionResultView, 0, len(stats))
	for _, qs := range stats {
		view := QuestionResultView{
			QuestionID:     qs.QuestionID,
			TotalIncorrect: qs.TotalIncorrect,
		}
		if i, ok := index[qs.QuestionID]; ok {
			pos := i
			view.QuestionIndex = &pos
		}
		views = append(views, view)
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].TotalIncorrect > views[j].TotalIncorrect
	})
	return views
}

func groupByInstitute(rows []LeaderboardRow) []InstituteLeaderboard {
	order := make([]uuid.UUID, 0)
	grouped := make(map[uuid.UUID]*InstituteLeaderboard)
	for _, row := range rows {
		lb, ok := grouped[row.InstituteID]
		if !ok {
			lb = &InstituteLeaderboard{
				InstituteID:   row.InstituteID,
				InstituteName: row.InstituteName,
			}
			grouped[row.InstituteID] = lb
			order = append(order, row.InstituteID)
		}
		lb.Leaderboard = append(lb.Leaderboard, row)
	}

	boards := make([]InstituteLeaderboard, 0, len(order))
	for _, id := range order {
		lb := grouped[id]
		sort.SliceStable(lb.Leaderboard, func(i, j int) bool {
			return lb.Leaderboard[i].InstituteRank < lb.Leaderboard[j].InstituteRank
		})
		boards = append(boards, *lb)
	}
	return boards
}
