package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/redis/go-redis/v9"
)

// SessionTTL bounds how long a snapshot lives in Redis without being touched.
const SessionTTL = 6 * time.Hour

// SessionRepository stores live exam snapshots. Redis holds the latest
// snapshot for fast reads; PostgreSQL receives it asynchronously through
// persist_sessions_queue.
type SessionRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool, rdb *redis.Client) *SessionRepository {
	return &SessionRepository{pool: pool, rdb: rdb}
}

// Save overwrites the cached snapshot and queues it for durable storage.
func (r *SessionRepository) Save(ctx context.Context, s *model.ExamSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.ExamSessionKey(s.StudentID.String()), data, SessionTTL)
	pipe.RPush(ctx, config.WorkerKey.PersistSessionsQueue, data)
	_, err = pipe.Exec(ctx)
	return err
}

// Load returns the latest snapshot, preferring Redis and falling back to
// PostgreSQL. A database hit re-warms the cache.
func (r *SessionRepository) Load(ctx context.Context, studentID uuid.UUID) (*model.ExamSession, error) {
	key := config.CacheKey.ExamSessionKey(studentID.String())

	data, err := r.rdb.Get(ctx, key).Bytes()
	if err == nil {
		s := &model.ExamSession{}
		if err := json.Unmarshal(data, s); err == nil {
			return s, nil
		}
	}

	s := &model.ExamSession{}
	err = r.pool.QueryRow(ctx,
		`SELECT student_id, exam_type, exam_category, answers, start_time, time_remaining,
		        current_question, is_fullscreen, updated_at
		 FROM exam_sessions WHERE student_id = $1`, studentID,
	).Scan(&s.StudentID, &s.ExamType, &s.ExamCategory, &s.Answers, &s.StartTime, &s.TimeRemaining,
		&s.CurrentQuestion, &s.IsFullscreen, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	if data, err := json.Marshal(s); err == nil {
		_ = r.rdb.Set(ctx, key, data, SessionTTL).Err()
	}
	return s, nil
}

// Delete removes the snapshot from both stores.
func (r *SessionRepository) Delete(ctx context.Context, studentID uuid.UUID) error {
	redisErr := r.rdb.Del(ctx, config.CacheKey.ExamSessionKey(studentID.String())).Err()
	_, pgErr := r.pool.Exec(ctx, `DELETE FROM exam_sessions WHERE student_id = $1`, studentID)
	return errors.Join(redisErr, pgErr)
}

// Persist upserts a snapshot into exam_sessions and mirrors the clock and
// position onto the student row. Snapshots for students that are no longer
// active, or older than the stored one, are ignored. It reports whether a
// row was written.
func (r *SessionRepository) Persist(ctx context.Context, s *model.ExamSession) (bool, error) {
	answers := s.Answers
	if answers == nil {
		answers = map[string]int{}
	}

	tag, err := r.pool.Exec(ctx,
		`WITH upsert AS (
			INSERT INTO exam_sessions (student_id, exam_type, exam_category, answers, start_time,
			                           time_remaining, current_question, is_fullscreen, updated_at)
			SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9
			WHERE EXISTS (SELECT 1 FROM students WHERE id = $1 AND status = 'active')
			ON CONFLICT (student_id) DO UPDATE
			SET answers = EXCLUDED.answers,
			    time_remaining = EXCLUDED.time_remaining,
			    current_question = EXCLUDED.current_question,
			    is_fullscreen = EXCLUDED.is_fullscreen,
			    updated_at = EXCLUDED.updated_at
			WHERE exam_sessions.updated_at <= EXCLUDED.updated_at
			RETURNING student_id
		)
		UPDATE students SET time_remaining = $6, current_question = $7
		WHERE id IN (SELECT student_id FROM upsert)`,
		s.StudentID, s.ExamType, s.ExamCategory, answers, s.StartTime,
		s.TimeRemaining, s.CurrentQuestion, s.IsFullscreen, s.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
