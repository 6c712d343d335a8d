package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grading/internal/model"
)

// RankUpdate is one (submission, global rank, institute rank) merge entry.
type RankUpdate struct {
	SubmissionID  uuid.UUID
	GlobalRank    int
	InstituteRank int
}

// SubmissionRepository handles graded submission data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Create inserts a graded submission with its per-question results.
func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO submissions (student_id, paper_id, institute_id, answers, status, submitted_at, score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		s.StudentID, s.PaperID, s.InstituteID, answers, s.Status, s.SubmittedAt, s.Score,
	).Scan(&s.ID)
}

// ListDoneByPaper retrieves all completed submissions for a paper.
func (r *SubmissionRepository) ListDoneByPaper(ctx context.Context, paperID uuid.UUID) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, student_id, paper_id, institute_id, answers, status, submitted_at,
		        score, global_rank, institute_rank
		 FROM submissions
		 WHERE paper_id = $1 AND status = $2
		 ORDER BY submitted_at, id`, paperID, model.SubmissionStatusDone,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// ListByPaper retrieves all submissions for a paper regardless of status.
func (r *SubmissionRepository) ListByPaper(ctx context.Context, paperID uuid.UUID) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, student_id, paper_id, institute_id, answers, status, submitted_at,
		        score, global_rank, institute_rank
		 FROM submissions
		 WHERE paper_id = $1
		 ORDER BY submitted_at, id`, paperID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// ListByStudent retrieves all submissions for a student, newest paper first.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, student_id, paper_id, institute_id, answers, status, submitted_at,
		        score, global_rank, institute_rank
		 FROM submissions
		 WHERE student_id = $1
		 ORDER BY submitted_at DESC, id`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// UpdateRanks merges rank values back onto submissions by id using a
// single UNNEST bulk update. Non-matching ids are left untouched.
func (r *SubmissionRepository) UpdateRanks(ctx context.Context, updates []RankUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	n := len(updates)
	ids := make([]uuid.UUID, 0, n)
	globals := make([]int, 0, n)
	institutes := make([]int, 0, n)

	for _, u := range updates {
		ids = append(ids, u.SubmissionID)
		globals = append(globals, u.GlobalRank)
		institutes = append(institutes, u.InstituteRank)
	}

	query := `
		UPDATE submissions AS s
		SET global_rank = t.global_rank,
		    institute_rank = t.institute_rank
		FROM (
			SELECT
				u.id,
				u.global_rank,
				u.institute_rank
			FROM UNNEST(
				$1::uuid[],
				$2::int[],
				$3::int[]
			) AS u (id, global_rank, institute_rank)
		) AS t
		WHERE s.id = t.id
	`

	_, err := r.pool.Exec(ctx, query, ids, globals, institutes)
	return err
}

func scanSubmissions(rows pgx.Rows) ([]model.Submission, error) {
	var subs []model.Submission
	for rows.Next() {
		var s model.Submission
		var answers []byte
		if err := rows.Scan(&s.ID, &s.StudentID, &s.PaperID, &s.InstituteID, &answers,
			&s.Status, &s.SubmittedAt, &s.Score, &s.GlobalRank, &s.InstituteRank); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(answers, &s.Answers); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
