package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/engine"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"github.com/lpkmns/nihongo-exam/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StudentStore is the durable student table.
type StudentStore interface {
	Create(ctx context.Context, s *model.Student) error
	Update(ctx context.Context, s *model.Student) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Student, error)
	GetByToken(ctx context.Context, token string) (*model.Student, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.StudentStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionStore holds live session snapshots.
type SessionStore interface {
	Save(ctx context.Context, s *model.ExamSession) error
	Load(ctx context.Context, studentID uuid.UUID) (*model.ExamSession, error)
	Delete(ctx context.Context, studentID uuid.UUID) error
}

// ResultStore stores completed attempts. Create reports whether a new row was written.
type ResultStore interface {
	Create(ctx context.Context, res *model.ExamResult) (bool, error)
}

// QuestionLoader resolves the question sequence of a category.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, category string) ([]model.Question, error)
}

// ExamGateway is the engine's persistence surface over the repositories.
type ExamGateway struct {
	questions QuestionLoader
	students  StudentStore
	sessions  SessionStore
	results   ResultStore
	rdb       *redis.Client
	monitor   *MonitorService
	log       zerolog.Logger
}

var _ engine.Gateway = (*ExamGateway)(nil)

// NewExamGateway creates a new ExamGateway.
func NewExamGateway(
	questions QuestionLoader,
	students StudentStore,
	sessions SessionStore,
	results ResultStore,
	rdb *redis.Client,
	monitor *MonitorService,
	log zerolog.Logger,
) *ExamGateway {
	return &ExamGateway{
		questions: questions,
		students:  students,
		sessions:  sessions,
		results:   results,
		rdb:       rdb,
		monitor:   monitor,
		log:       log.With().Str("component", "exam_gateway").Logger(),
	}
}

func (g *ExamGateway) LoadQuestions(ctx context.Context, category string) ([]model.Question, error) {
	return g.questions.LoadQuestions(ctx, category)
}

func (g *ExamGateway) CreateStudent(ctx context.Context, st *model.Student) error {
	return g.students.Create(ctx, st)
}

func (g *ExamGateway) UpdateStudent(ctx context.Context, st *model.Student) error {
	return g.students.Update(ctx, st)
}

func (g *ExamGateway) SaveSession(ctx context.Context, sess *model.ExamSession) error {
	return g.sessions.Save(ctx, sess)
}

func (g *ExamGateway) LoadSession(ctx context.Context, studentID uuid.UUID) (*model.ExamSession, error) {
	sess, err := g.sessions.Load(ctx, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, engine.ErrSessionNotFound
	}
	return sess, err
}

func (g *ExamGateway) DeleteSession(ctx context.Context, studentID uuid.UUID) error {
	return g.sessions.Delete(ctx, studentID)
}

// SaveResult stores the result once. A newly stored result is queued for
// the category aggregate and announced to the live monitor.
func (g *ExamGateway) SaveResult(ctx context.Context, res *model.ExamResult) error {
	created, err := g.results.Create(ctx, res)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	ev, _ := json.Marshal(worker.ResultEvent{
		ExamCategory: res.ExamCategory,
		Percentage:   res.Percentage,
		Passed:       res.Passed,
	})
	if err := g.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, ev).Err(); err != nil {
		g.log.Warn().Err(err).Str("student_id", res.StudentID.String()).Msg("Failed to queue result for category stats")
	}

	g.monitor.Publish(ctx, MonitorEvent{
		Type:         MonitorEventCompleted,
		StudentID:    res.StudentID,
		Name:         res.StudentName,
		ExamCategory: res.ExamCategory,
		Score:        &res.Score,
		Total:        &res.TotalQuestions,
		Percentage:   &res.Percentage,
		Passed:       &res.Passed,
		At:           res.CompletedAt,
	})
	return nil
}

// ResumeMarker adapts the Redis resume pointer to engine.ResumeMarker,
// turning a missing pointer into uuid.Nil.
type ResumeMarker struct {
	repo *repository.ResumeRepository
}

var _ engine.ResumeMarker = (*ResumeMarker)(nil)

// NewResumeMarker creates a new ResumeMarker.
func NewResumeMarker(repo *repository.ResumeRepository) *ResumeMarker {
	return &ResumeMarker{repo: repo}
}

func (m *ResumeMarker) Set(ctx context.Context, deviceID string, studentID uuid.UUID) error {
	return m.repo.Set(ctx, deviceID, studentID)
}

func (m *ResumeMarker) Get(ctx context.Context, deviceID string) (uuid.UUID, error) {
	id, err := m.repo.Get(ctx, deviceID)
	if errors.Is(err, repository.ErrNotFound) {
		return uuid.Nil, nil
	}
	return id, err
}

func (m *ResumeMarker) Clear(ctx context.Context, deviceID string) error {
	return m.repo.Clear(ctx, deviceID)
}
