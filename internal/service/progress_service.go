package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/skolara/skolara-backend/internal/config"
	"github.com/skolara/skolara-backend/internal/model"
	"github.com/skolara/skolara-backend/internal/repository"
)

// ProgressService handles the draft side of a quiz session: status lookup,
// debounced draft saves, and draft deletion. Redis is the hot store; the
// draft worker persists queued saves to PostgreSQL asynchronously.
type ProgressService struct {
	draftRepo      *repository.DraftRepository
	submissionRepo *repository.SubmissionRepository
	rdb            *redis.Client
	log            zerolog.Logger
}

// NewProgressService creates a new ProgressService.
func NewProgressService(
	draftRepo *repository.DraftRepository,
	submissionRepo *repository.SubmissionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ProgressService {
	return &ProgressService{
		draftRepo:      draftRepo,
		submissionRepo: submissionRepo,
		rdb:            rdb,
		log:            log.With().Str("component", "progress_service").Logger(),
	}
}

// GetProgress returns the draft/submission status for a student-material
// pair. A final submission always wins over any draft. Draft state is read
// from Redis with a PostgreSQL fallback that self-heals the cache.
func (s *ProgressService) GetProgress(ctx context.Context, studentID int, materialID uuid.UUID) (*model.ProgressStatus, error) {
	// 1. A final submission short-circuits everything else.
	sub, err := s.submissionRepo.GetByStudentAndMaterial(ctx, studentID, materialID)
	if err == nil {
		return &model.ProgressStatus{
			AlreadySubmitted: true,
			SubmissionID:     &sub.ID,
		}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check submission: %w", err)
	}

	// 2. Hot path: draft answers + start time from Redis.
	mid := materialID.String()
	answersKey := config.CacheKey.DraftAnswersKey(mid, studentID)
	startKey := config.CacheKey.DraftStartKey(mid, studentID)

	answers, err := s.rdb.HGetAll(ctx, answersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("get draft answers: %w", err)
	}

	startVal, err := s.rdb.Get(ctx, startKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get start time: %w", err)
	}

	if len(answers) > 0 || startVal != "" {
		var startMillis int64
		if startVal != "" {
			startMillis, err = strconv.ParseInt(startVal, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid start time format in cache: %w", err)
			}
		}
		return &model.ProgressStatus{
			Draft:            &model.DraftSnapshot{Answers: answers, StartTime: startMillis},
			TimeLimitMinutes: s.cachedTimeLimit(ctx, mid),
		}, nil
	}

	// 3. Cache miss — fall back to PostgreSQL (evicted cache or legacy
	// draft) and self-heal Redis so the next lookup is fast.
	draft, err := s.draftRepo.GetByStudentAndMaterial(ctx, studentID, materialID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.ProgressStatus{}, nil // No draft, fresh session.
		}
		return nil, fmt.Errorf("get draft: %w", err)
	}

	startMillis := draft.StartedAt.UnixMilli()
	pipe := s.rdb.Pipeline()
	if len(draft.Answers) > 0 {
		pipe.HSet(ctx, answersKey, draft.Answers)
	}
	pipe.Set(ctx, startKey, startMillis, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Draft cache self-heal failed")
	}

	if draft.Answers == nil {
		draft.Answers = map[string]string{}
	}
	return &model.ProgressStatus{
		Draft:            &model.DraftSnapshot{Answers: draft.Answers, StartTime: startMillis},
		TimeLimitMinutes: s.cachedTimeLimit(ctx, mid),
	}, nil
}

// cachedTimeLimit reads the material's time limit from the publish-time
// cache. Best effort: returns nil on miss or error.
func (s *ProgressService) cachedTimeLimit(ctx context.Context, materialID string) *int {
	val, err := s.rdb.Get(ctx, config.CacheKey.MaterialTimeLimitKey(materialID)).Result()
	if err != nil {
		return nil
	}
	limit, err := strconv.Atoi(val)
	if err != nil {
		return nil
	}
	return &limit
}

// SaveDraft overwrites the hot draft state in Redis and queues the full
// snapshot for asynchronous PostgreSQL persistence. Each save carries the
// complete answer set, so out-of-order persistence is last-write-wins and
// cannot corrupt state. The start time is written with SetNX: the first
// save fixes it and later saves never advance it.
func (s *ProgressService) SaveDraft(ctx context.Context, req *model.SaveDraftRequest) error {
	startMillis := req.StartTime
	if startMillis <= 0 {
		// Defensive fallback — the client timer sets the start time first
		// in the normal flow.
		startMillis = time.Now().UnixMilli()
	}

	mid := req.MaterialID.String()
	answersKey := config.CacheKey.DraftAnswersKey(mid, req.StudentID)
	startKey := config.CacheKey.DraftStartKey(mid, req.StudentID)

	pipe := s.rdb.Pipeline()
	pipe.SetNX(ctx, startKey, startMillis, 0)
	pipe.Del(ctx, answersKey)
	if len(req.Answers) > 0 {
		pipe.HSet(ctx, answersKey, req.Answers)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache draft: %w", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"student_id":  req.StudentID,
		"material_id": mid,
		"quiz_id":     req.QuizID.String(),
		"answers":     req.Answers,
		"start_time":  startMillis,
	})
	if err != nil {
		return fmt.Errorf("marshal draft payload: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistDraftsQueue, payload).Err(); err != nil {
		return fmt.Errorf("queue draft: %w", err)
	}

	s.publishMonitorEvent(ctx, mid, model.MonitorEvent{
		Type:          model.MonitorEventProgress,
		StudentID:     req.StudentID,
		AnsweredCount: countAnswered(req.Answers),
	})

	return nil
}

// DeleteDraft clears a student's draft state from Redis and PostgreSQL.
// The client calls this best-effort after a successful submission.
func (s *ProgressService) DeleteDraft(ctx context.Context, studentID int, materialID uuid.UUID) error {
	mid := materialID.String()
	if err := s.rdb.Del(ctx,
		config.CacheKey.DraftAnswersKey(mid, studentID),
		config.CacheKey.DraftStartKey(mid, studentID),
	).Err(); err != nil {
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("Draft cache clear failed")
	}

	if err := s.draftRepo.Delete(ctx, studentID, materialID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func (s *ProgressService) publishMonitorEvent(ctx context.Context, materialID string, ev model.MonitorEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.MaterialMonitorChannel(materialID), data).Err(); err != nil {
		s.log.Debug().Err(err).Msg("Monitor publish failed")
	}
}

// countAnswered counts non-empty answers, matching how the client counts
// them during reconciliation.
func countAnswered(answers map[string]string) int {
	n := 0
	for _, v := range answers {
		if v != "" {
			n++
		}
	}
	return n
}
