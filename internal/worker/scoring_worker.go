package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/skolara/skolara-backend/internal/config"
)

const (
	ScoreBatchSize    = 50
	ScoreBatchTimeout = 2 * time.Second
	ScorePollTimeout  = 1 * time.Second
)

// ScoringWorker consumes persist_scores_queue and marks submissions GRADED
// in batches. It also sweeps the Redis draft buffers for graded sessions.
type ScoringWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewScoringWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ScoringWorker {
	return &ScoringWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "scoring_worker").Logger(),
	}
}

type scorePayload struct {
	SubmissionID string  `json:"submission_id"`
	StudentID    int     `json:"student_id"`
	MaterialID   string  `json:"material_id"`
	Score        float64 `json:"score"`
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ScoringWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ScoringWorker started")

	batch := make([]*scorePayload, 0, ScoreBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ScoreBatchSize || time.Since(lastFlush) >= ScoreBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ScorePollTimeout, config.WorkerKey.PersistScoresQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p scorePayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

// ----------------------------------------------------------------
// Batch update wrapper
// ----------------------------------------------------------------

func (w *ScoringWorker) flushSafe(ctx context.Context, batch []*scorePayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkUpdateScores(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk score update failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistScoresQueue, raw)
			}
		}
		return
	}

	// After successful score updates → sweep leftover draft buffers in Redis.
	w.bulkClearDraftBuffers(ctx, batch)
}

// ----------------------------------------------------------------
// BULK PostgreSQL UPDATE using UNNEST + alias
// ----------------------------------------------------------------

func (w *ScoringWorker) bulkUpdateScores(ctx context.Context, batch []*scorePayload) error {
	n := len(batch)

	subIDs := make([]uuid.UUID, 0, n)
	scores := make([]float64, 0, n)
	gradedAts := make([]time.Time, n)

	now := time.Now()
	for i, p := range batch {
		sID, err := uuid.Parse(p.SubmissionID)
		if err != nil {
			return err
		}
		subIDs = append(subIDs, sID)
		scores = append(scores, p.Score)
		gradedAts[i] = now
	}

	query := `
		UPDATE quiz_submissions AS qs
		SET status = 'GRADED',
		    score = t.score,
		    graded_at = t.graded_at
		FROM (
			SELECT
				u.submission_id,
				u.score,
				u.graded_at
			FROM UNNEST(
				$1::uuid[],
				$2::float8[],
				$3::timestamptz[]
			) AS u (submission_id, score, graded_at)
		) AS t
		WHERE qs.id = t.submission_id
	`

	_, err := w.pool.Exec(ctx, query, subIDs, scores, gradedAts)
	return err
}

// ----------------------------------------------------------------
// BULK Redis DEL for leftover draft buffers
// ----------------------------------------------------------------

func (w *ScoringWorker) bulkClearDraftBuffers(ctx context.Context, batch []*scorePayload) {
	pipe := w.rdb.Pipeline()

	for _, p := range batch {
		pipe.Del(ctx, config.CacheKey.DraftAnswersKey(p.MaterialID, p.StudentID))
		pipe.Del(ctx, config.CacheKey.DraftStartKey(p.MaterialID, p.StudentID))
	}

	_, _ = pipe.Exec(ctx)
}

// ----------------------------------------------------------------
// FALLBACK single update
// ----------------------------------------------------------------

func (w *ScoringWorker) persistSingle(ctx context.Context, p *scorePayload) error {
	sID, err := uuid.Parse(p.SubmissionID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`UPDATE quiz_submissions
		 SET status = 'GRADED',
		     score = $1,
		     graded_at = NOW()
		 WHERE id = $2`,
		p.Score, sID,
	)

	return err
}
