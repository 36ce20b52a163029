package handler

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func hiraganaToken(code string) model.Token {
	return model.Token{
		Code:         code,
		ExamType:     model.ExamTypeHiragana,
		ExamCategory: "hiragana-basic",
		Difficulty:   model.DifficultyBeginner,
	}
}

// ─── Tokens ─────────────────────────────────────────────────────────────────

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]*model.Token
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

// noQuestions makes the question service fall back to the built-in bank.
type noQuestions struct{}

func (noQuestions) ListByCategory(context.Context, string) ([]model.Question, error) {
	return nil, nil
}
func (noQuestions) List(context.Context, model.QuestionFilter) ([]model.Question, error) {
	return nil, nil
}
func (noQuestions) GetByID(context.Context, string) (*model.Question, error) {
	return nil, repository.ErrNotFound
}
func (noQuestions) Create(context.Context, *model.Question) error { return nil }
func (noQuestions) Update(context.Context, *model.Question) error { return nil }
func (noQuestions) Delete(context.Context, string) error          { return nil }
func (noQuestions) Stats(context.Context) (*model.QuestionStats, error) {
	return &model.QuestionStats{}, nil
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
	delete(m.students, id)
	return nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.ExamSession
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[uuid.UUID]*model.ExamSession)}
}

func (m *memSessions) Save(_ context.Context, s *model.ExamSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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

// memResults serves both the exam gateway and the admin result screens.
type memResults struct {
	mu      sync.Mutex
	results []model.ExamResult
	listErr error
}

func (m *memResults) Create(_ context.Context, res *model.ExamResult) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.results {
		if r.StudentID == res.StudentID {
			return false, nil
		}
	}
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	m.results = append(m.results, *res)
	return true, nil
}

func (m *memResults) List(ctx context.Context, f model.ResultFilter, _, _ int) ([]model.ExamResult, int, error) {
	out, err := m.ListAll(ctx, f)
	return out, len(out), err
}

func (m *memResults) ListAll(context.Context, model.ResultFilter) ([]model.ExamResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]model.ExamResult(nil), m.results...), nil
}

func (m *memResults) GetByStudent(_ context.Context, id uuid.UUID) (*model.ExamResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.results {
		if r.StudentID == id {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memResults) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.results {
		if r.ID == id {
			m.results = append(m.results[:i], m.results[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memResults) Stats(context.Context) (*model.ResultStats, error) {
	return &model.ResultStats{}, nil
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

type memViolations struct {
	mu   sync.Mutex
	list []model.Violation
}

func (m *memViolations) Record(_ context.Context, v model.Violation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, v)
	return nil
}

func (m *memViolations) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.list)
}
