package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/skolara/skolara-backend/internal/config"
	"github.com/skolara/skolara-backend/internal/model"
	"github.com/skolara/skolara-backend/internal/repository"
)

// ErrAlreadySubmitted signals a duplicate terminal submission. The handler
// maps it to HTTP 409 so the client treats it as a success-equivalent and
// routes to the existing result.
var ErrAlreadySubmitted = errors.New("quiz already submitted")

// SubmissionService handles the terminal quiz submission: exactly-once
// insertion, in-memory grading, async score persistence, and draft cleanup.
type SubmissionService struct {
	submissionRepo *repository.SubmissionRepository
	draftRepo      *repository.DraftRepository
	quizService    *QuizService
	rdb            *redis.Client
	log            zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	submissionRepo *repository.SubmissionRepository,
	draftRepo *repository.DraftRepository,
	quizService *QuizService,
	rdb *redis.Client,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: submissionRepo,
		draftRepo:      draftRepo,
		quizService:    quizService,
		rdb:            rdb,
		log:            log.With().Str("component", "submission_service").Logger(),
	}
}

// Submit records a student's terminal submission. The unique constraint on
// (student, material) makes this exactly-once: a duplicate — double click,
// timer-expiry race, another device — returns the existing submission with
// ErrAlreadySubmitted. On success the draft state is cleared; cleanup
// failures are logged but never fail the submission.
func (s *SubmissionService) Submit(ctx context.Context, req *model.SubmitQuizRequest) (*model.QuizSubmission, error) {
	existing, err := s.submissionRepo.GetByStudentAndMaterial(ctx, req.StudentID, req.MaterialID)
	if err == nil {
		return existing, ErrAlreadySubmitted
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing submission: %w", err)
	}

	answers := req.Answers
	if answers == nil {
		answers = map[string]string{}
	}

	sub := &model.QuizSubmission{
		StudentID:  req.StudentID,
		MaterialID: req.MaterialID,
		QuizID:     req.QuizID,
		Answers:    answers,
		Status:     model.SubmissionStatusSubmitted,
	}

	if err := s.submissionRepo.Create(ctx, sub); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent submit won the race — surface the winner.
			winner, fetchErr := s.submissionRepo.GetByStudentAndMaterial(ctx, req.StudentID, req.MaterialID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent submit detected, but fetch failed: %w", fetchErr)
			}
			return winner, ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("create submission: %w", err)
	}

	// Grade in RAM and queue the score for persistence. Grading failure
	// leaves the submission as SUBMITTED for a later regrade; it never
	// rolls back the accepted submission.
	if score, err := s.grade(ctx, sub); err != nil {
		s.log.Error().Err(err).
			Str("submission_id", sub.ID.String()).
			Msg("Grading failed, submission left ungraded")
	} else {
		payload, _ := json.Marshal(map[string]interface{}{
			"submission_id": sub.ID.String(),
			"student_id":    sub.StudentID,
			"material_id":   sub.MaterialID.String(),
			"score":         score,
		})
		s.rdb.RPush(ctx, config.WorkerKey.PersistScoresQueue, payload)
	}

	s.cleanupDraft(ctx, sub)
	s.publishSubmitted(ctx, sub)

	return sub, nil
}

// GetResult returns a submission by ID for the student result view.
func (s *SubmissionService) GetResult(ctx context.Context, studentID int, materialID uuid.UUID) (*model.QuizSubmission, error) {
	return s.submissionRepo.GetByStudentAndMaterial(ctx, studentID, materialID)
}

// ListResults retrieves paginated submission results for a material.
func (s *SubmissionService) ListResults(ctx context.Context, materialID uuid.UUID, page, perPage int) ([]repository.SubmissionResult, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return s.submissionRepo.ListByMaterial(ctx, materialID, page, perPage)
}

// grade computes the points-weighted percentage score for a submission.
func (s *SubmissionService) grade(ctx context.Context, sub *model.QuizSubmission) (float64, error) {
	answerKey, err := s.quizService.GetAnswerKey(ctx, sub.QuizID)
	if err != nil {
		return 0, fmt.Errorf("get answer key: %w", err)
	}
	points, err := s.quizService.GetPoints(ctx, sub.QuizID)
	if err != nil {
		return 0, fmt.Errorf("get points: %w", err)
	}

	var earned, total float64
	for qID, correct := range answerKey {
		p := 1
		if v, ok := points[qID]; ok {
			p = v
		}
		total += float64(p)
		if given, ok := sub.Answers[qID]; ok && answersMatch(given, correct) {
			earned += float64(p)
		}
	}

	var score float64
	if total > 0 {
		score = earned / total * 100
	}
	return score, nil
}

// answersMatch compares a student answer against the key, tolerating
// surrounding whitespace and letter case for short answers.
func answersMatch(given, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(correct))
}

// cleanupDraft clears draft state after an accepted submission. Best effort:
// the submission is already durable, leftovers only cost Redis memory and
// are also swept by the scoring worker.
func (s *SubmissionService) cleanupDraft(ctx context.Context, sub *model.QuizSubmission) {
	mid := sub.MaterialID.String()
	if err := s.rdb.Del(ctx,
		config.CacheKey.DraftAnswersKey(mid, sub.StudentID),
		config.CacheKey.DraftStartKey(mid, sub.StudentID),
	).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Draft cache cleanup failed")
	}
	if err := s.draftRepo.Delete(ctx, sub.StudentID, sub.MaterialID); err != nil {
		s.log.Warn().Err(err).Msg("Draft row cleanup failed")
	}
}

func (s *SubmissionService) publishSubmitted(ctx context.Context, sub *model.QuizSubmission) {
	ev := model.MonitorEvent{
		Type:         model.MonitorEventSubmitted,
		StudentID:    sub.StudentID,
		SubmissionID: &sub.ID,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	channel := config.CacheKey.MaterialMonitorChannel(sub.MaterialID.String())
	if err := s.rdb.Publish(ctx, channel, data).Err(); err != nil {
		s.log.Debug().Err(err).Msg("Monitor publish failed")
	}
}
