package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/skolara/skolara-backend/internal/config"
	"github.com/skolara/skolara-backend/internal/model"
	"github.com/skolara/skolara-backend/internal/repository"
)

// ErrNotQuizAuthor is returned when a teacher edits a quiz they do not own.
var ErrNotQuizAuthor = errors.New("not the author of this quiz")

// QuizService handles quiz authoring and the student-facing quiz payload.
type QuizService struct {
	quizRepo *repository.QuizRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(quizRepo *repository.QuizRepository, rdb *redis.Client, log zerolog.Logger) *QuizService {
	return &QuizService{
		quizRepo: quizRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "quiz_service").Logger(),
	}
}

// Create inserts a new quiz.
func (s *QuizService) Create(ctx context.Context, q *model.Quiz) error {
	return s.quizRepo.Create(ctx, q)
}

// ListByTeacher retrieves a teacher's quizzes.
func (s *QuizService) ListByTeacher(ctx context.Context, teacherID int) ([]model.Quiz, error) {
	quizzes, err := s.quizRepo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if quizzes == nil {
		quizzes = []model.Quiz{}
	}
	return quizzes, nil
}

// GetWithQuestions retrieves a quiz and its full question list, answer key
// included. Teacher authoring view only.
func (s *QuizService) GetWithQuestions(ctx context.Context, quizID uuid.UUID, teacherID int) (*model.Quiz, []model.QuizQuestion, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, nil, fmt.Errorf("get quiz: %w", err)
	}
	if quiz.TeacherID != teacherID {
		return nil, nil, ErrNotQuizAuthor
	}

	questions, err := s.quizRepo.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	if questions == nil {
		questions = []model.QuizQuestion{}
	}
	return quiz, questions, nil
}

// ReplaceQuestions swaps a quiz's question list atomically (author only).
func (s *QuizService) ReplaceQuestions(ctx context.Context, quizID uuid.UUID, teacherID int, questions []model.QuestionInput) error {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return fmt.Errorf("get quiz: %w", err)
	}
	if quiz.TeacherID != teacherID {
		return ErrNotQuizAuthor
	}
	return s.quizRepo.ReplaceQuestions(ctx, quizID, questions)
}

// GetPayloadForStudent returns the student-facing quiz payload (no answer
// key) from Redis, falling back to PostgreSQL with a self-heal write when
// the cache was evicted.
func (s *QuizService) GetPayloadForStudent(ctx context.Context, quizID uuid.UUID) (*model.QuizPayload, error) {
	payloadKey := config.CacheKey.QuizPayloadKey(quizID.String())

	raw, err := s.rdb.Get(ctx, payloadKey).Result()
	if err == nil {
		var payload model.QuizPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("invalid payload in cache: %w", err)
		}
		return &payload, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis error getting payload: %w", err)
	}

	// Cache miss — rebuild from PostgreSQL.
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	questions, err := s.quizRepo.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	studentQuestions := make([]model.QuestionForStudent, len(questions))
	for i, q := range questions {
		studentQuestions[i] = model.QuestionForStudent{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Options:      q.Options,
			Points:       q.Points,
			OrderNum:     q.OrderNum,
		}
	}

	payload := &model.QuizPayload{
		QuizID:        quiz.ID,
		Title:         quiz.Title,
		QuizQuestions: studentQuestions,
	}

	// Self-heal so the next request hits the cache.
	if data, err := json.Marshal(payload); err == nil {
		_ = s.rdb.Set(ctx, payloadKey, data, 0)
	}

	return payload, nil
}

// GetAnswerKey returns questionID → correct answer for a quiz from Redis,
// rebuilding from PostgreSQL on a cache miss.
func (s *QuizService) GetAnswerKey(ctx context.Context, quizID uuid.UUID) (map[string]string, error) {
	keyKey := config.CacheKey.QuizAnswerKeyKey(quizID.String())

	answerKey, err := s.rdb.HGetAll(ctx, keyKey).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	if len(answerKey) > 0 {
		return answerKey, nil
	}

	questions, err := s.quizRepo.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	answerKey = make(map[string]string, len(questions))
	for _, q := range questions {
		answerKey[q.ID.String()] = q.CorrectAnswer
	}

	if len(answerKey) > 0 {
		_ = s.rdb.HSet(ctx, keyKey, answerKey)
	}

	return answerKey, nil
}

// GetPoints returns questionID → points for a quiz, same fast-lane strategy
// as GetAnswerKey.
func (s *QuizService) GetPoints(ctx context.Context, quizID uuid.UUID) (map[string]int, error) {
	pointsKey := config.CacheKey.QuizPointsKey(quizID.String())

	raw, err := s.rdb.HGetAll(ctx, pointsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("get points: %w", err)
	}

	points := make(map[string]int, len(raw))
	if len(raw) > 0 {
		for qid, v := range raw {
			var p int
			if _, err := fmt.Sscanf(v, "%d", &p); err != nil {
				return nil, fmt.Errorf("invalid points format in cache: %w", err)
			}
			points[qid] = p
		}
		return points, nil
	}

	questions, err := s.quizRepo.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	heal := make(map[string]string, len(questions))
	for _, q := range questions {
		points[q.ID.String()] = q.Points
		heal[q.ID.String()] = fmt.Sprintf("%d", q.Points)
	}

	if len(heal) > 0 {
		_ = s.rdb.HSet(ctx, pointsKey, heal)
	}

	return points, nil
}
