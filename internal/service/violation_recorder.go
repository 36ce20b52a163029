package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/redis/go-redis/v9"
)

// ViolationRecorder queues integrity violations for storage and announces
// them to the live monitor.
type ViolationRecorder struct {
	rdb     *redis.Client
	monitor *MonitorService
}

// NewViolationRecorder creates a new ViolationRecorder.
func NewViolationRecorder(rdb *redis.Client, monitor *MonitorService) *ViolationRecorder {
	return &ViolationRecorder{rdb: rdb, monitor: monitor}
}

// Record enqueues v onto persist_violations_queue and publishes it.
func (r *ViolationRecorder) Record(ctx context.Context, v model.Violation) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := r.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data).Err(); err != nil {
		return fmt.Errorf("queue violation: %w", err)
	}
	r.monitor.Publish(ctx, MonitorEvent{
		Type:         MonitorEventViolation,
		StudentID:    v.StudentID,
		ExamCategory: v.ExamCategory,
		Reason:       v.Reason,
		At:           v.RecordedAt,
	})
	return nil
}
