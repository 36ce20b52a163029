package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ResultEvent is what the result store enqueues for every newly stored result.
type ResultEvent struct {
	ExamCategory string `json:"exam_category"`
	Percentage   int    `json:"percentage"`
	Passed       bool   `json:"passed"`
}

// CategoryStatsWorker folds completed results into the category_stats aggregate.
type CategoryStatsWorker struct {
	db  DB
	rdb *redis.Client
	log zerolog.Logger
}

func NewCategoryStatsWorker(db DB, rdb *redis.Client, log zerolog.Logger) *CategoryStatsWorker {
	return &CategoryStatsWorker{
		db:  db,
		rdb: rdb,
		log: log.With().Str("component", "category_stats_worker").Logger(),
	}
}

// ─── Worker loop with batching ──────────────────────────────────────────────

func (w *CategoryStatsWorker) Start(ctx context.Context) {
	w.log.Info().Msg("CategoryStatsWorker started")

	batch := make([]*ResultEvent, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownFlushTimeout)
			w.flushSafe(shutdownCtx, batch)
			cancel()
			return

		default:
			item, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			var ev ResultEvent
			if err := json.Unmarshal([]byte(item[1]), &ev); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			batch = append(batch, &ev)
		}
	}
}

// ─── Batch upsert wrapper ───────────────────────────────────────────────────

type categoryDelta struct {
	attempts   int32
	percentage int64
	passes     int32
}

// aggregate folds events into one delta per category, keeping first-seen order.
func aggregate(batch []*ResultEvent) ([]string, map[string]*categoryDelta) {
	order := make([]string, 0, len(batch))
	deltas := make(map[string]*categoryDelta, len(batch))
	for _, ev := range batch {
		d, ok := deltas[ev.ExamCategory]
		if !ok {
			d = &categoryDelta{}
			deltas[ev.ExamCategory] = d
			order = append(order, ev.ExamCategory)
		}
		d.attempts++
		d.percentage += int64(ev.Percentage)
		if ev.Passed {
			d.passes++
		}
	}
	return order, deltas
}

func (w *CategoryStatsWorker) flushSafe(ctx context.Context, batch []*ResultEvent) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkUpsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("Bulk stats upsert failed, using fallback")

		for _, ev := range batch {
			if err := w.upsertSingle(ctx, ev); err != nil {
				w.log.Error().Err(err).Str("exam_category", ev.ExamCategory).Msg("upsertSingle failed, requeueing")
				raw, _ := json.Marshal(ev)
				w.rdb.RPush(context.WithoutCancel(ctx), config.WorkerKey.PersistResultsQueue, raw)
			}
		}
	}
}

// ─── Bulk PostgreSQL UPSERT using UNNEST ────────────────────────────────────

const categoryStatsUpsert = `
	ON CONFLICT (exam_category) DO UPDATE
	SET attempts = category_stats.attempts + EXCLUDED.attempts,
	    total_percentage = category_stats.total_percentage + EXCLUDED.total_percentage,
	    passes = category_stats.passes + EXCLUDED.passes,
	    updated_at = NOW()`

func (w *CategoryStatsWorker) bulkUpsert(ctx context.Context, batch []*ResultEvent) error {
	order, deltas := aggregate(batch)

	categories := make([]string, 0, len(order))
	attempts := make([]int32, 0, len(order))
	percentages := make([]int64, 0, len(order))
	passes := make([]int32, 0, len(order))
	for _, c := range order {
		d := deltas[c]
		categories = append(categories, c)
		attempts = append(attempts, d.attempts)
		percentages = append(percentages, d.percentage)
		passes = append(passes, d.passes)
	}

	_, err := w.db.Exec(ctx, `
		INSERT INTO category_stats (exam_category, attempts, total_percentage, passes, updated_at)
		SELECT u.exam_category, u.attempts, u.total_percentage, u.passes, NOW()
		FROM UNNEST(
			$1::text[],
			$2::int[],
			$3::bigint[],
			$4::int[]
		) AS u (exam_category, attempts, total_percentage, passes)`+categoryStatsUpsert,
		categories, attempts, percentages, passes)
	return err
}

// ─── Fallback single upsert ─────────────────────────────────────────────────

func (w *CategoryStatsWorker) upsertSingle(ctx context.Context, ev *ResultEvent) error {
	passes := 0
	if ev.Passed {
		passes = 1
	}
	_, err := w.db.Exec(ctx, `
		INSERT INTO category_stats (exam_category, attempts, total_percentage, passes, updated_at)
		VALUES ($1, 1, $2, $3, NOW())`+categoryStatsUpsert,
		ev.ExamCategory, ev.Percentage, passes)
	return err
}
