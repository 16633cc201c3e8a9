package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skolara/skolara-backend/internal/model"
)

// SubmissionResult combines student data with their submission details.
type SubmissionResult struct {
	StudentID   int                    `json:"student_id"`
	Name        string                 `json:"name"`
	NISN        string                 `json:"nisn"`
	Score       *float64               `json:"score"`
	Status      model.SubmissionStatus `json:"status"`
	SubmittedAt time.Time              `json:"submitted_at"`
}

// SubmissionRepository handles quiz submission data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// GetByStudentAndMaterial retrieves the submission for a student-material pair.
func (r *SubmissionRepository) GetByStudentAndMaterial(ctx context.Context, studentID int, materialID uuid.UUID) (*model.QuizSubmission, error) {
	s := &model.QuizSubmission{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, student_id, material_id, quiz_id, answers, score, status, submitted_at, graded_at
		 FROM quiz_submissions
		 WHERE student_id = $1 AND material_id = $2`, studentID, materialID,
	).Scan(&s.ID, &s.StudentID, &s.MaterialID, &s.QuizID, &s.Answers, &s.Score, &s.Status, &s.SubmittedAt, &s.GradedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a submission by its UUID.
func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.QuizSubmission, error) {
	s := &model.QuizSubmission{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, student_id, material_id, quiz_id, answers, score, status, submitted_at, graded_at
		 FROM quiz_submissions WHERE id = $1`, id,
	).Scan(&s.ID, &s.StudentID, &s.MaterialID, &s.QuizID, &s.Answers, &s.Score, &s.Status, &s.SubmittedAt, &s.GradedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new submission. The unique (student_id, material_id)
// constraint plus DO NOTHING makes a duplicate submit return pgx.ErrNoRows,
// which the service maps to the already-submitted conflict.
func (r *SubmissionRepository) Create(ctx context.Context, s *model.QuizSubmission) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO quiz_submissions (student_id, material_id, quiz_id, answers, status)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (student_id, material_id) DO NOTHING
		 RETURNING id, submitted_at`,
		s.StudentID, s.MaterialID, s.QuizID, s.Answers, model.SubmissionStatusSubmitted,
	).Scan(&s.ID, &s.SubmittedAt)
}

// SetScore marks a submission as graded with its final score.
func (r *SubmissionRepository) SetScore(ctx context.Context, id uuid.UUID, score float64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE quiz_submissions
		 SET score = $1, status = $2, graded_at = NOW()
		 WHERE id = $3`,
		score, model.SubmissionStatusGraded, id)
	return err
}

// ListByMaterial retrieves student results for a material, paginated.
func (r *SubmissionRepository) ListByMaterial(ctx context.Context, materialID uuid.UUID, page, perPage int) ([]SubmissionResult, int, error) {
	offset := (page - 1) * perPage

	baseQuery := `
		FROM quiz_submissions qs
		JOIN students s ON qs.student_id = s.id
		WHERE qs.material_id = $1
	`
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, materialID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT s.id, s.name, s.nisn, qs.score, qs.status, qs.submitted_at
		%s
		ORDER BY s.name ASC
		LIMIT $2 OFFSET $3`, baseQuery)

	rows, err := r.pool.Query(ctx, query, materialID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []SubmissionResult
	for rows.Next() {
		var sr SubmissionResult
		if err := rows.Scan(&sr.StudentID, &sr.Name, &sr.NISN, &sr.Score, &sr.Status, &sr.SubmittedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, sr)
	}
	return results, total, rows.Err()
}

// SubmittedStudentIDs returns the IDs of students who already submitted for
// the given material. Feeds the monitor snapshot.
func (r *SubmissionRepository) SubmittedStudentIDs(ctx context.Context, materialID uuid.UUID) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id FROM quiz_submissions WHERE material_id = $1`, materialID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
