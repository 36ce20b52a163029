package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DB is the part of pgxpool.Pool the batch workers need.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// ViolationWorker batches persist_violations_queue into exam_violations.
type ViolationWorker struct {
	db    DB
	rdb   *redis.Client
	log   zerolog.Logger
	retry time.Duration
}

func NewViolationWorker(db DB, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		db:    db,
		rdb:   rdb,
		log:   log.With().Str("component", "violation_worker").Logger(),
		retry: 2 * time.Second,
	}
}

func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ViolationWorker started")

	buffer := make([]*model.Violation, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Flush on size or age
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		// 2. Graceful shutdown
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistViolationsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			sleep(ctx, 3*time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var v model.Violation
		if err := json.Unmarshal([]byte(result[1]), &v); err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}
		buffer = append(buffer, &v)
	}
}

// flushSafe attempts bulk insert, then row-by-row insert, then requeue.
func (w *ViolationWorker) flushSafe(ctx context.Context, batch []*model.Violation) {
	if len(batch) == 0 {
		return
	}
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *ViolationWorker) bulkInsert(ctx context.Context, batch []*model.Violation) error {
	rows := make([][]any, 0, len(batch))
	for _, v := range batch {
		rows = append(rows, []any{v.StudentID, v.ExamCategory, v.Kind, v.Reason, v.RecordedAt})
	}

	_, err := w.db.CopyFrom(
		ctx,
		pgx.Identifier{"exam_violations"},
		[]string{"student_id", "exam_category", "kind", "reason", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *ViolationWorker) fallbackInsert(ctx context.Context, batch []*model.Violation) {
	requeueList := make([]*model.Violation, 0)

	for _, v := range batch {
		_, err := w.db.Exec(ctx,
			`INSERT INTO exam_violations (student_id, exam_category, kind, reason, recorded_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			v.StudentID, v.ExamCategory, v.Kind, v.Reason, v.RecordedAt,
		)
		if err == nil {
			continue
		}
		// A student deleted while events were queued can never be inserted.
		if isForeignKeyViolation(err) {
			w.log.Warn().Str("student_id", v.StudentID.String()).Msg("Dropping violation for deleted student")
			continue
		}
		w.log.Error().Err(err).Str("student_id", v.StudentID.String()).Msg("Insert failed, requeueing")
		requeueList = append(requeueList, v)
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *ViolationWorker) requeue(ctx context.Context, items []*model.Violation) {
	ctx = context.WithoutCancel(ctx)
	pipe := w.rdb.Pipeline()
	for _, v := range items {
		data, _ := json.Marshal(v)
		pipe.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue violations to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	sleep(ctx, w.retry)
}

func (w *ViolationWorker) shutdown(buffer []*model.Violation) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownFlushTimeout)
	defer cancel()
	w.flushSafe(shutdownCtx, buffer)
}
