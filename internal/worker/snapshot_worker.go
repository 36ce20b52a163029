package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SnapshotStore is the durable side of the session fast lane.
type SnapshotStore interface {
	Persist(ctx context.Context, s *model.ExamSession) (bool, error)
}

// SessionSnapshotWorker consumes persist_sessions_queue and upserts
// snapshots into PostgreSQL.
type SessionSnapshotWorker struct {
	store SnapshotStore
	rdb   *redis.Client
	log   zerolog.Logger
	retry time.Duration
}

// NewSessionSnapshotWorker creates a new SessionSnapshotWorker.
func NewSessionSnapshotWorker(store SnapshotStore, rdb *redis.Client, log zerolog.Logger) *SessionSnapshotWorker {
	return &SessionSnapshotWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "session_snapshot_worker").Logger(),
		retry: 5 * time.Second,
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *SessionSnapshotWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			drainCtx, cancel := context.WithTimeout(context.Background(), ShutdownFlushTimeout)
			w.drain(drainCtx)
			cancel()
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SessionSnapshotWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistSessionsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			sleep(ctx, w.retry)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if err := w.persist(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Msg("Persist error, requeueing")
		w.rdb.RPush(context.WithoutCancel(ctx), config.WorkerKey.PersistSessionsQueue, result[1])
		sleep(ctx, w.retry)
	}
}

// persist writes one raw snapshot. Malformed payloads are logged and dropped
// because retrying them can never succeed.
func (w *SessionSnapshotWorker) persist(ctx context.Context, raw string) error {
	var s model.ExamSession
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		w.log.Error().Err(err).Msg("Discarding malformed snapshot")
		return nil
	}

	written, err := w.store.Persist(ctx, &s)
	if err != nil {
		return err
	}
	if !written {
		w.log.Debug().Str("student_id", s.StudentID.String()).Msg("Stale snapshot skipped")
	}
	return nil
}

// drain processes all remaining items in the queue before shutdown.
func (w *SessionSnapshotWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistSessionsQueue).Result()
		if err != nil {
			break
		}
		if err := w.persist(ctx, raw); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(context.WithoutCancel(ctx), config.WorkerKey.PersistSessionsQueue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining snapshots")
	}
}
