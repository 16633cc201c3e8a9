package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skolara/skolara-backend/internal/model"
)

// DraftRepository handles quiz draft data access.
type DraftRepository struct {
	pool *pgxpool.Pool
}

// NewDraftRepository creates a new DraftRepository.
func NewDraftRepository(pool *pgxpool.Pool) *DraftRepository {
	return &DraftRepository{pool: pool}
}

// GetByStudentAndMaterial retrieves the draft for a student-material pair.
func (r *DraftRepository) GetByStudentAndMaterial(ctx context.Context, studentID int, materialID uuid.UUID) (*model.QuizDraft, error) {
	d := &model.QuizDraft{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, student_id, material_id, quiz_id, answers, started_at, updated_at
		 FROM quiz_drafts
		 WHERE student_id = $1 AND material_id = $2`, studentID, materialID,
	).Scan(&d.ID, &d.StudentID, &d.MaterialID, &d.QuizID, &d.Answers, &d.StartedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Upsert creates or overwrites a draft. Answers are always replaced as a
// whole (last write wins), but started_at is kept from the first insert so
// elapsed time stays monotonic across saves and devices.
func (r *DraftRepository) Upsert(ctx context.Context, d *model.QuizDraft) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO quiz_drafts (student_id, material_id, quiz_id, answers, started_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (student_id, material_id) DO UPDATE
		 SET answers = EXCLUDED.answers, updated_at = NOW()
		 RETURNING id, started_at, updated_at`,
		d.StudentID, d.MaterialID, d.QuizID, d.Answers, d.StartedAt,
	).Scan(&d.ID, &d.StartedAt, &d.UpdatedAt)
}

// Delete removes the draft for a student-material pair.
func (r *DraftRepository) Delete(ctx context.Context, studentID int, materialID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM quiz_drafts WHERE student_id = $1 AND material_id = $2`,
		studentID, materialID)
	return err
}

// AnsweredCountsByMaterial returns student ID → answered question count for
// every student with a draft on the given material. Feeds the monitor snapshot.
func (r *DraftRepository) AnsweredCountsByMaterial(ctx context.Context, materialID uuid.UUID) (map[int]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, (SELECT COUNT(*) FROM jsonb_object_keys(answers))
		 FROM quiz_drafts WHERE material_id = $1`, materialID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var studentID, count int
		if err := rows.Scan(&studentID, &count); err != nil {
			return nil, err
		}
		counts[studentID] = count
	}
	return counts, rows.Err()
}
