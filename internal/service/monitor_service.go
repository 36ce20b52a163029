package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/engine"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Monitor event types published on the monitor channel.
const (
	MonitorEventJoined       = "joined"
	MonitorEventResumed      = "resumed"
	MonitorEventViolation    = "violation"
	MonitorEventCompleted    = "completed"
	MonitorEventDisconnected = "disconnected"
)

// MonitorEvent is one live update pushed to admin monitors.
type MonitorEvent struct {
	Type         string    `json:"type"`
	StudentID    uuid.UUID `json:"student_id"`
	Name         string    `json:"name,omitempty"`
	ExamCategory string    `json:"exam_category,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Score        *int      `json:"score,omitempty"`
	Total        *int      `json:"total_questions,omitempty"`
	Percentage   *int      `json:"percentage,omitempty"`
	Passed       *bool     `json:"passed,omitempty"`
	At           time.Time `json:"at"`
}

// MonitorReader is the persisted side of the live monitor.
type MonitorReader interface {
	GetActiveStudents(ctx context.Context) ([]repository.ActiveStudent, error)
	GetViolationCounts(ctx context.Context) (map[uuid.UUID]int, error)
	GetStudentViolations(ctx context.Context, studentID uuid.UUID) ([]model.Violation, error)
}

// LiveStudent is an active student with the freshest progress available.
type LiveStudent struct {
	repository.ActiveStudent
	// Connected is true when this process runs the student's engine, in
	// which case the clock and answers are live rather than the last snapshot.
	Connected bool `json:"connected"`
}

// MonitorSnapshot is the full state sent when an admin opens the monitor.
type MonitorSnapshot struct {
	Students        []LiveStudent `json:"students"`
	TotalActive     int           `json:"total_active"`
	TotalViolations int           `json:"total_violations"`
}

// MonitorService orchestrates live exam monitoring.
type MonitorService struct {
	monitorRepo MonitorReader
	registry    *engine.Registry
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(monitorRepo MonitorReader, registry *engine.Registry, rdb *redis.Client, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		monitorRepo: monitorRepo,
		registry:    registry,
		rdb:         rdb,
		log:         log.With().Str("component", "monitor_service").Logger(),
	}
}

// Snapshot gathers active students and violation counts concurrently and
// overlays the live engine state for students connected to this process.
func (s *MonitorService) Snapshot(ctx context.Context) (*MonitorSnapshot, error) {
	var (
		active []repository.ActiveStudent
		counts map[uuid.UUID]int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		active, err = s.monitorRepo.GetActiveStudents(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.monitorRepo.GetViolationCounts(gctx)
		if err != nil {
			// Violation counts are best-effort.
			s.log.Warn().Err(err).Msg("Failed to load violation counts")
			counts = map[uuid.UUID]int{}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &MonitorSnapshot{Students: make([]LiveStudent, 0, len(active))}
	for _, a := range active {
		live := LiveStudent{ActiveStudent: a}
		live.Violations = counts[a.ID]
		if sess, ok := s.registry.Get(a.ID); ok {
			cur := sess.Snapshot()
			live.Connected = true
			live.TimeRemaining = cur.TimeRemaining
			live.CurrentQuestion = cur.CurrentQuestion
			live.Answered = len(cur.Answers)
		}
		snap.TotalViolations += live.Violations
		snap.Students = append(snap.Students, live)
	}
	snap.TotalActive = len(snap.Students)
	return snap, nil
}

// StudentViolations lists one student's recorded violations.
func (s *MonitorService) StudentViolations(ctx context.Context, studentID uuid.UUID) ([]model.Violation, error) {
	return s.monitorRepo.GetStudentViolations(ctx, studentID)
}

// Publish broadcasts ev to every connected monitor. Failures are logged
// only. A nil service publishes nothing.
func (s *MonitorService) Publish(ctx context.Context, ev MonitorEvent) {
	if s == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.MonitorChannel(), data).Err(); err != nil {
		s.log.Warn().Err(err).Str("type", ev.Type).Msg("Failed to publish monitor event")
	}
}

// Subscribe opens a subscription to the monitor channel. The caller closes it.
func (s *MonitorService) Subscribe(ctx context.Context) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.MonitorChannel())
}
