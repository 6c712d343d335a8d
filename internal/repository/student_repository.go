package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grading/internal/model"
)

// StudentRepository resolves student directory records. Read-only: the
// main exstem backend owns student CRUD.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// ListByIDs retrieves the students with the given ids, keyed by id.
func (r *StudentRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Student, error) {
	students := make(map[uuid.UUID]model.Student, len(ids))
	if len(ids) == 0 {
		return students, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, institute_id
		 FROM students
		 WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s model.Student
		if err := rows.Scan(&s.ID, &s.Name, &s.InstituteID); err != nil {
			return nil, err
		}
		students[s.ID] = s
	}
	return students, rows.Err()
}
