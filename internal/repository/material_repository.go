package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skolara/skolara-backend/internal/model"
)

// MaterialRepository handles material data access.
type MaterialRepository struct {
	pool *pgxpool.Pool
}

// NewMaterialRepository creates a new MaterialRepository.
func NewMaterialRepository(pool *pgxpool.Pool) *MaterialRepository {
	return &MaterialRepository{pool: pool}
}

const materialColumns = `id, class_id, teacher_id, title, type, quiz_id, time_limit, due_date, status, created_at, updated_at`

func scanMaterial(row interface{ Scan(dest ...any) error }, m *model.Material) error {
	return row.Scan(&m.ID, &m.ClassID, &m.TeacherID, &m.Title, &m.Type, &m.QuizID,
		&m.TimeLimitMinutes, &m.DueDate, &m.Status, &m.CreatedAt, &m.UpdatedAt)
}

// GetByID retrieves a material by its UUID.
func (r *MaterialRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Material, error) {
	m := &model.Material{}
	err := scanMaterial(r.pool.QueryRow(ctx,
		`SELECT `+materialColumns+` FROM materials WHERE id = $1`, id), m)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Create inserts a new material.
func (r *MaterialRepository) Create(ctx context.Context, m *model.Material) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO materials (class_id, teacher_id, title, type, quiz_id, time_limit, due_date, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		m.ClassID, m.TeacherID, m.Title, m.Type, m.QuizID, m.TimeLimitMinutes, m.DueDate, m.Status,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// Update modifies an existing material's mutable fields.
func (r *MaterialRepository) Update(ctx context.Context, m *model.Material) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE materials
		 SET title = $1, quiz_id = $2, time_limit = $3, due_date = $4, updated_at = NOW()
		 WHERE id = $5`,
		m.Title, m.QuizID, m.TimeLimitMinutes, m.DueDate, m.ID)
	return err
}

// UpdateStatus changes a material's lifecycle status.
func (r *MaterialRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.MaterialStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE materials SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

// Delete removes a material.
func (r *MaterialRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM materials WHERE id = $1`, id)
	return err
}

// ListPublishedByClass retrieves published materials visible to a class.
func (r *MaterialRepository) ListPublishedByClass(ctx context.Context, classID int) ([]model.Material, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+materialColumns+` FROM materials
		 WHERE class_id = $1 AND status = $2
		 ORDER BY due_date NULLS LAST, created_at DESC`,
		classID, model.MaterialStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var materials []model.Material
	for rows.Next() {
		var m model.Material
		if err := scanMaterial(rows, &m); err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

// ListPublished retrieves all published materials (cache prewarm).
func (r *MaterialRepository) ListPublished(ctx context.Context) ([]model.Material, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+materialColumns+` FROM materials WHERE status = $1`,
		model.MaterialStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var materials []model.Material
	for rows.Next() {
		var m model.Material
		if err := scanMaterial(rows, &m); err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

// ListByTeacherPaginated retrieves a teacher's materials, newest first.
func (r *MaterialRepository) ListByTeacherPaginated(ctx context.Context, teacherID, limit, offset int) ([]model.Material, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM materials WHERE teacher_id = $1`, teacherID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+materialColumns+` FROM materials
		 WHERE teacher_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		teacherID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var materials []model.Material
	for rows.Next() {
		var m model.Material
		if err := scanMaterial(rows, &m); err != nil {
			return nil, 0, err
		}
		materials = append(materials, m)
	}
	return materials, total, rows.Err()
}
