package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/redis/go-redis/v9"
)

// AdmissionRepository bridges token validation and exam start. A consumed
// token leaves a short-lived ticket that starting the exam redeems once.
type AdmissionRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAdmissionRepository creates a new AdmissionRepository.
func NewAdmissionRepository(rdb *redis.Client, ttl time.Duration) *AdmissionRepository {
	return &AdmissionRepository{rdb: rdb, ttl: ttl}
}

// Issue stores the ticket for a freshly consumed token.
func (r *AdmissionRepository) Issue(ctx context.Context, t *model.Token) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, config.CacheKey.AdmissionKey(t.Code), data, r.ttl).Err()
}

// Redeem atomically takes the ticket. A missing or expired ticket yields ErrNotFound.
func (r *AdmissionRepository) Redeem(ctx context.Context, code string) (*model.Token, error) {
	data, err := r.rdb.GetDel(ctx, config.CacheKey.AdmissionKey(code)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t := &model.Token{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Restore puts a redeemed ticket back, used when starting the exam fails
// after redemption so the student can try again.
func (r *AdmissionRepository) Restore(ctx context.Context, t *model.Token) error {
	return r.Issue(ctx, t)
}
