package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grading/internal/model"
)

// InstituteRepository resolves institute directory records. Read-only.
type InstituteRepository struct {
	pool *pgxpool.Pool
}

// NewInstituteRepository creates a new InstituteRepository.
func NewInstituteRepository(pool *pgxpool.Pool) *InstituteRepository {
	return &InstituteRepository{pool: pool}
}

// ListByIDs retrieves the institutes with the given ids, keyed by id.
func (r *InstituteRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Institute, error) {
	institutes := make(map[uuid.UUID]model.Institute, len(ids))
	if len(ids) == 0 {
		return institutes, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, name
		 FROM institutes
		 WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var inst model.Institute
		if err := rows.Scan(&inst.ID, &inst.Name); err != nil {
			return nil, err
		}
		institutes[inst.ID] = inst
	}
	return institutes, rows.Err()
}
