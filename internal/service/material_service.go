package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/skolara/skolara-backend/internal/config"
	"github.com/skolara/skolara-backend/internal/model"
	"github.com/skolara/skolara-backend/internal/repository"
	"github.com/skolara/skolara-backend/internal/response"
)

// Domain Errors
var (
	ErrNotMaterialAuthor    = errors.New("not the author of this material")
	ErrMaterialHasNoQuiz    = errors.New("material has no quiz attached")
	ErrNoQuestions          = errors.New("quiz has no questions, cannot publish")
	ErrMaterialNotDraft     = errors.New("material status is not DRAFT")
	ErrMaterialNotPublished = errors.New("material status is not PUBLISHED")
	ErrMaterialHasResults   = errors.New("material has submissions and cannot be deleted")
)

// MaterialService handles material business logic and Redis cache warming.
type MaterialService struct {
	materialRepo *repository.MaterialRepository
	quizRepo     *repository.QuizRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewMaterialService creates a new MaterialService.
func NewMaterialService(
	materialRepo *repository.MaterialRepository,
	quizRepo *repository.QuizRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *MaterialService {
	return &MaterialService{
		materialRepo: materialRepo,
		quizRepo:     quizRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "material_service").Logger(),
	}
}

// GetByID retrieves a material by its UUID.
func (s *MaterialService) GetByID(ctx context.Context, id uuid.UUID) (*model.Material, error) {
	return s.materialRepo.GetByID(ctx, id)
}

// ListForStudent returns published materials visible to a student's class.
func (s *MaterialService) ListForStudent(ctx context.Context, classID int) ([]model.Material, error) {
	materials, err := s.materialRepo.ListPublishedByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	if materials == nil {
		materials = []model.Material{}
	}
	return materials, nil
}

// ListByTeacher retrieves a teacher's materials with pagination.
func (s *MaterialService) ListByTeacher(ctx context.Context, teacherID, page, perPage int) ([]model.Material, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	limit := perPage
	offset := (page - 1) * perPage

	materials, total, err := s.materialRepo.ListByTeacherPaginated(ctx, teacherID, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	if materials == nil {
		materials = []model.Material{}
	}

	totalPages := (total + perPage - 1) / perPage

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}

	return materials, pagination, nil
}

// Create inserts a new material as DRAFT.
func (s *MaterialService) Create(ctx context.Context, m *model.Material) error {
	m.Status = model.MaterialStatusDraft
	return s.materialRepo.Create(ctx, m)
}

// Update modifies a material's mutable fields (author only).
func (s *MaterialService) Update(ctx context.Context, m *model.Material, teacherID int) error {
	existing, err := s.materialRepo.GetByID(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("get material: %w", err)
	}
	if existing.TeacherID != teacherID {
		return ErrNotMaterialAuthor
	}
	return s.materialRepo.Update(ctx, m)
}

// Delete removes a material (author only).
func (s *MaterialService) Delete(ctx context.Context, id uuid.UUID, teacherID int) error {
	existing, err := s.materialRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get material: %w", err)
	}
	if existing.TeacherID != teacherID {
		return ErrNotMaterialAuthor
	}

	if err := s.materialRepo.Delete(ctx, id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
			return ErrMaterialHasResults
		}
		return err
	}
	return nil
}

// Publish changes material status to PUBLISHED and caches the quiz payload,
// answer key, points table, and time limit in Redis. This populates the fast
// lane the student-facing endpoints read from.
func (s *MaterialService) Publish(ctx context.Context, materialID uuid.UUID, teacherID int) error {
	material, err := s.materialRepo.GetByID(ctx, materialID)
	if err != nil {
		return fmt.Errorf("get material: %w", err)
	}

	if material.TeacherID != teacherID {
		return ErrNotMaterialAuthor
	}
	if material.Status != model.MaterialStatusDraft {
		return ErrMaterialNotDraft
	}

	if err := s.WarmMaterialCache(ctx, material); err != nil {
		return err
	}

	if err := s.materialRepo.UpdateStatus(ctx, materialID, model.MaterialStatusPublished); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("material_id", materialID.String()).Msg("Material published")
	return nil
}

// WarmMaterialCache loads a material's quiz payload, answer key, points, and
// time limit from PostgreSQL into Redis. Core cache-warming logic shared by
// Publish and PrewarmAllCaches.
func (s *MaterialService) WarmMaterialCache(ctx context.Context, material *model.Material) error {
	if material.Type == model.MaterialTypeQuiz && material.QuizID == nil {
		return ErrMaterialHasNoQuiz
	}

	// Time limit is cached regardless of quiz presence — the progress
	// endpoints read it when computing remaining time.
	limitKey := config.CacheKey.MaterialTimeLimitKey(material.ID.String())
	if err := s.rdb.Set(ctx, limitKey, material.TimeLimitMinutes, 0).Err(); err != nil {
		return fmt.Errorf("cache time limit: %w", err)
	}

	if material.QuizID == nil {
		return nil
	}

	quiz, err := s.quizRepo.GetByID(ctx, *material.QuizID)
	if err != nil {
		return fmt.Errorf("get quiz: %w", err)
	}

	questions, err := s.quizRepo.ListQuestions(ctx, quiz.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	// Build student-facing payload (without correct answers).
	studentQuestions := make([]model.QuestionForStudent, len(questions))
	answerKey := make(map[string]string, len(questions))
	points := make(map[string]string, len(questions))
	for i, q := range questions {
		studentQuestions[i] = model.QuestionForStudent{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Options:      q.Options,
			Points:       q.Points,
			OrderNum:     q.OrderNum,
		}
		answerKey[q.ID.String()] = q.CorrectAnswer
		points[q.ID.String()] = fmt.Sprintf("%d", q.Points)
	}

	payload := model.QuizPayload{
		QuizID:        quiz.ID,
		Title:         quiz.Title,
		QuizQuestions: studentQuestions,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	quizID := quiz.ID.String()
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.QuizPayloadKey(quizID), payloadJSON, 0)
	pipe.Del(ctx, config.CacheKey.QuizAnswerKeyKey(quizID))
	pipe.HSet(ctx, config.CacheKey.QuizAnswerKeyKey(quizID), answerKey)
	pipe.Del(ctx, config.CacheKey.QuizPointsKey(quizID))
	pipe.HSet(ctx, config.CacheKey.QuizPointsKey(quizID), points)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache quiz: %w", err)
	}

	return nil
}

// PrewarmAllCaches loads every published material into Redis. Called at
// startup BEFORE accepting traffic so lazy loading never races a thundering
// herd of students.
func (s *MaterialService) PrewarmAllCaches(ctx context.Context) error {
	materials, err := s.materialRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published: %w", err)
	}

	warmed := 0
	for i := range materials {
		if err := s.WarmMaterialCache(ctx, &materials[i]); err != nil {
			s.log.Warn().Err(err).
				Str("material_id", materials[i].ID.String()).
				Msg("Prewarm failed for material")
			continue
		}
		warmed++
	}

	s.log.Info().Int("count", warmed).Msg("Material caches prewarmed")
	return nil
}
