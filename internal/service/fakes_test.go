package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// ─── Tokens ─────────────────────────────────────────────────────────────────

type memTokens struct {
	mu         sync.Mutex
	tokens     map[string]*model.Token
	collisions int
}

func newMemTokens(tokens ...model.Token) *memTokens {
	m := &memTokens{tokens: make(map[string]*model.Token)}
	for i := range tokens {
		t := tokens[i]
		m.tokens[t.Code] = &t
	}
	return m
}

func (m *memTokens) Consume(_ context.Context, code string) (*model.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[code]
	if !ok || t.Used {
		return nil, repository.ErrTokenUsed
	}
	t.Used = true
	c := *t
	return &c, nil
}

func (m *memTokens) Create(_ context.Context, t *model.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collisions > 0 {
		m.collisions--
		return repository.ErrDuplicateCode
	}
	if _, ok := m.tokens[t.Code]; ok {
		return repository.ErrDuplicateCode
	}
	c := *t
	m.tokens[t.Code] = &c
	return nil
}

func (m *memTokens) List(context.Context, model.TokenFilter, int, int) ([]model.Token, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Token, 0, len(m.tokens))
	for _, t := range m.tokens {
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (m *memTokens) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[code]; !ok {
		return repository.ErrNotFound
	}
	delete(m.tokens, code)
	return nil
}

func (m *memTokens) Disable(ctx context.Context, code string) error {
	_, err := m.Consume(ctx, code)
	return err
}

func (m *memTokens) Stats(context.Context) (*model.TokenStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &model.TokenStats{Total: len(m.tokens)}
	for _, t := range m.tokens {
		if t.Used {
			s.Used++
		}
	}
	s.Available = s.Total - s.Used
	return s, nil
}

type memAdmissions struct {
	mu      sync.Mutex
	tickets map[string]model.Token
}

func newMemAdmissions() *memAdmissions {
	return &memAdmissions{tickets: make(map[string]model.Token)}
}

func (m *memAdmissions) Issue(_ context.Context, t *model.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.Code] = *t
	return nil
}

func (m *memAdmissions) Redeem(_ context.Context, code string) (*model.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(m.tickets, code)
	return &t, nil
}

func (m *memAdmissions) Restore(ctx context.Context, t *model.Token) error {
	return m.Issue(ctx, t)
}

// ─── Questions ──────────────────────────────────────────────────────────────

type memQuestions struct {
	err       error
	byCat     map[string][]model.Question
	deleted   []string
	createdID string
}

func (m *memQuestions) ListByCategory(_ context.Context, category string) ([]model.Question, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byCat[category], nil
}

func (m *memQuestions) List(context.Context, model.QuestionFilter) ([]model.Question, error) {
	return nil, m.err
}

func (m *memQuestions) GetByID(context.Context, string) (*model.Question, error) {
	return nil, repository.ErrNotFound
}

func (m *memQuestions) Create(_ context.Context, q *model.Question) error {
	m.createdID = q.ID
	return m.err
}

func (m *memQuestions) Update(context.Context, *model.Question) error { return m.err }

func (m *memQuestions) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return m.err
}

func (m *memQuestions) Stats(context.Context) (*model.QuestionStats, error) {
	return &model.QuestionStats{}, m.err
}

// ─── Students, sessions, results ────────────────────────────────────────────

type memStudents struct {
	mu       sync.Mutex
	students map[uuid.UUID]model.Student
}

func newMemStudents() *memStudents {
	return &memStudents{students: make(map[uuid.UUID]model.Student)}
}

func (m *memStudents) Create(_ context.Context, s *model.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	m.students[s.ID] = *s
	return nil
}

func (m *memStudents) Update(_ context.Context, s *model.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[s.ID]; !ok {
		return repository.ErrNotFound
	}
	m.students[s.ID] = *s
	return nil
}

func (m *memStudents) GetByID(_ context.Context, id uuid.UUID) (*model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (m *memStudents) GetByToken(_ context.Context, token string) (*model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.students {
		if s.Token == token {
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStudents) List(context.Context, model.StudentFilter, int, int) ([]model.Student, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *memStudents) UpdateStatus(_ context.Context, id uuid.UUID, status model.StudentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return repository.ErrNotFound
	}
	if s.Status == model.StudentStatusCompleted {
		return repository.ErrStudentCompleted
	}
	s.Status = status
	m.students[id] = s
	return nil
}

func (m *memStudents) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.students, id)
	return nil
}

func (m *memStudents) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.students)
}

type memSessions struct {
	mu       sync.Mutex
	saveErr  error
	sessions map[uuid.UUID]*model.ExamSession
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[uuid.UUID]*model.ExamSession)}
}

func (m *memSessions) Save(_ context.Context, s *model.ExamSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.sessions[s.StudentID] = s.Clone()
	return nil
}

func (m *memSessions) Load(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *memSessions) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

type memResults struct {
	mu      sync.Mutex
	results map[uuid.UUID]model.ExamResult
}

func newMemResults() *memResults {
	return &memResults{results: make(map[uuid.UUID]model.ExamResult)}
}

func (m *memResults) Create(_ context.Context, res *model.ExamResult) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[res.StudentID]; ok {
		return false, nil
	}
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	m.results[res.StudentID] = *res
	return true, nil
}

type memMarker struct {
	mu      sync.Mutex
	devices map[string]uuid.UUID
}

func newMemMarker() *memMarker {
	return &memMarker{devices: make(map[string]uuid.UUID)}
}

func (m *memMarker) Set(_ context.Context, deviceID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[deviceID] = id
	return nil
}

func (m *memMarker) Get(_ context.Context, deviceID string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.devices[deviceID], nil
}

func (m *memMarker) Clear(_ context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.devices, deviceID)
	return nil
}

var errBoom = errors.New("boom")
