package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grading/internal/model"
)

// PaperRepository handles read-only paper access. Paper authoring lives
// in the main exstem backend.
type PaperRepository struct {
	pool *pgxpool.Pool
}

// NewPaperRepository creates a new PaperRepository.
func NewPaperRepository(pool *pgxpool.Pool) *PaperRepository {
	return &PaperRepository{pool: pool}
}

// GetByID retrieves a paper with its ordered question list and all
// availability windows.
func (r *PaperRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Paper, error) {
	p := &model.Paper{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, subject, year, category, created_at
		 FROM papers
		 WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.Subject, &p.Year, &p.Category, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, paper_id, position, correct_answer, category, subcategory
		 FROM questions
		 WHERE paper_id = $1
		 ORDER BY position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.PaperID, &q.Position, &q.CorrectAnswer, &q.Category, &q.Subcategory); err != nil {
			return nil, err
		}
		p.Questions = append(p.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	wrows, err := r.pool.Query(ctx,
		`SELECT id, paper_id, institute_id, start_time, end_time
		 FROM paper_availability
		 WHERE paper_id = $1
		 ORDER BY end_time`, id,
	)
	if err != nil {
		return nil, err
	}
	defer wrows.Close()

	for wrows.Next() {
		var w model.Availability
		if err := wrows.Scan(&w.ID, &w.PaperID, &w.InstituteID, &w.StartTime, &w.EndTime); err != nil {
			return nil, err
		}
		p.Windows = append(p.Windows, w)
	}
	return p, wrows.Err()
}

// ListWindowsEndingBetween returns availability windows whose end time
// falls in [from, to]. Used by the scheduler sweep.
func (r *PaperRepository) ListWindowsEndingBetween(ctx context.Context, from, to time.Time) ([]model.Availability, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, paper_id, institute_id, start_time, end_time
		 FROM paper_availability
		 WHERE end_time >= $1 AND end_time <= $2
		 ORDER BY end_time`, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []model.Availability
	for rows.Next() {
		var w model.Availability
		if err := rows.Scan(&w.ID, &w.PaperID, &w.InstituteID, &w.StartTime, &w.EndTime); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}
