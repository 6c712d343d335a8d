package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grading/internal/model"
)

// PaperStatsRepository handles the one-row-per-paper stats documents.
type PaperStatsRepository struct {
	pool *pgxpool.Pool
}

// NewPaperStatsRepository creates a new PaperStatsRepository.
func NewPaperStatsRepository(pool *pgxpool.Pool) *PaperStatsRepository {
	return &PaperStatsRepository{pool: pool}
}

// Get retrieves the stats document for a paper.
func (r *PaperStatsRepository) Get(ctx context.Context, paperID uuid.UUID) (*model.PaperStats, error) {
	st := &model.PaperStats{}
	var questionResults, instituteStats []byte
	err := r.pool.QueryRow(ctx,
		`SELECT paper_id, question_results, institute_stats, updated_at
		 FROM paper_stats
		 WHERE paper_id = $1`, paperID,
	).Scan(&st.PaperID, &questionResults, &instituteStats, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questionResults, &st.QuestionResults); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(instituteStats, &st.InstituteStats); err != nil {
		return nil, err
	}
	return st, nil
}

// Replace atomically overwrites both stats arrays in one upsert. A
// unique-violation race on first creation is retried once as a plain
// update before the error is surfaced.
func (r *PaperStatsRepository) Replace(ctx context.Context, st *model.PaperStats) error {
	questionResults, err := json.Marshal(st.QuestionResults)
	if err != nil {
		return err
	}
	instituteStats, err := json.Marshal(st.InstituteStats)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO paper_stats (paper_id, question_results, institute_stats, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (paper_id) DO UPDATE
		 SET question_results = EXCLUDED.question_results,
		     institute_stats = EXCLUDED.institute_stats,
		     updated_at = NOW()`,
		st.PaperID, questionResults, instituteStats)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		_, retryErr := r.pool.Exec(ctx,
			`UPDATE paper_stats
			 SET question_results = $1, institute_stats = $2, updated_at = NOW()
			 WHERE paper_id = $3`,
			questionResults, instituteStats, st.PaperID)
		return retryErr
	}
	return err
}
