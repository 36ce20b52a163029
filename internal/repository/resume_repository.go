package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/redis/go-redis/v9"
)

// ResumeTTL outlives the longest exam with room for a late reconnect.
const ResumeTTL = 12 * time.Hour

// ResumeRepository keeps the per-device "current student" pointer in Redis.
type ResumeRepository struct {
	rdb *redis.Client
}

// NewResumeRepository creates a new ResumeRepository.
func NewResumeRepository(rdb *redis.Client) *ResumeRepository {
	return &ResumeRepository{rdb: rdb}
}

func (r *ResumeRepository) Set(ctx context.Context, deviceID string, studentID uuid.UUID) error {
	return r.rdb.Set(ctx, config.CacheKey.ResumeKey(deviceID), studentID.String(), ResumeTTL).Err()
}

// Get returns the student the device was last taking an exam as, or ErrNotFound.
func (r *ResumeRepository) Get(ctx context.Context, deviceID string) (uuid.UUID, error) {
	val, err := r.rdb.Get(ctx, config.CacheKey.ResumeKey(deviceID)).Result()
	if err == redis.Nil {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(val)
	if err != nil {
		_ = r.Clear(ctx, deviceID)
		return uuid.Nil, ErrNotFound
	}
	return id, nil
}

func (r *ResumeRepository) Clear(ctx context.Context, deviceID string) error {
	return r.rdb.Del(ctx, config.CacheKey.ResumeKey(deviceID)).Err()
}
