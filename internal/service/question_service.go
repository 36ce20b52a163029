package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lpkmns/nihongo-exam/internal/catalog"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/rs/zerolog"
)

// ErrBuiltinQuestion is returned when an admin tries to change the built-in bank.
var ErrBuiltinQuestion = errors.New("built-in questions cannot be modified")

// QuestionStore is the durable question bank.
type QuestionStore interface {
	ListByCategory(ctx context.Context, category string) ([]model.Question, error)
	List(ctx context.Context, f model.QuestionFilter) ([]model.Question, error)
	GetByID(ctx context.Context, id string) (*model.Question, error)
	Create(ctx context.Context, q *model.Question) error
	Update(ctx context.Context, q *model.Question) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*model.QuestionStats, error)
}

// QuestionService handles question business logic.
type QuestionService struct {
	questions QuestionStore
	log       zerolog.Logger
	now       func() time.Time
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questions QuestionStore, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		questions: questions,
		log:       log.With().Str("component", "question_service").Logger(),
		now:       time.Now,
	}
}

// LoadQuestions returns the fixed question sequence for a category. The
// built-in bank is served when the database has none or cannot be reached.
func (s *QuestionService) LoadQuestions(ctx context.Context, category string) ([]model.Question, error) {
	qs, err := s.questions.ListByCategory(ctx, category)
	if err != nil {
		s.log.Warn().Err(err).Str("category", category).Msg("Question lookup failed, serving built-in bank")
		return catalog.BuiltinQuestions(category), nil
	}
	if len(qs) == 0 {
		return catalog.BuiltinQuestions(category), nil
	}
	return qs, nil
}

// List returns questions matching the filter.
func (s *QuestionService) List(ctx context.Context, f model.QuestionFilter) ([]model.Question, error) {
	f.Search = strings.TrimSpace(f.Search)
	return s.questions.List(ctx, f)
}

// Get retrieves one question.
func (s *QuestionService) Get(ctx context.Context, id string) (*model.Question, error) {
	return s.questions.GetByID(ctx, id)
}

// Create adds a custom question with a freshly issued custom id.
func (s *QuestionService) Create(ctx context.Context, req model.QuestionRequest) (*model.Question, error) {
	q := fromRequest(req)
	q.ID = catalog.NewCustomQuestionID(s.now())
	q.IsCustom = true
	if err := s.questions.Create(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Update rewrites a custom question.
func (s *QuestionService) Update(ctx context.Context, id string, req model.QuestionRequest) (*model.Question, error) {
	if isProtected(id) {
		return nil, ErrBuiltinQuestion
	}
	q := fromRequest(req)
	q.ID = id
	q.IsCustom = true
	if err := s.questions.Update(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Delete removes a custom question.
func (s *QuestionService) Delete(ctx context.Context, id string) error {
	if isProtected(id) {
		return ErrBuiltinQuestion
	}
	return s.questions.Delete(ctx, id)
}

// Stats summarises the bank.
func (s *QuestionService) Stats(ctx context.Context) (*model.QuestionStats, error) {
	return s.questions.Stats(ctx)
}

func isProtected(id string) bool {
	return catalog.IsBuiltin(id) || !catalog.IsCustomQuestionID(id)
}

func fromRequest(req model.QuestionRequest) *model.Question {
	correct := 0
	if req.CorrectAnswer != nil {
		correct = *req.CorrectAnswer
	}
	return &model.Question{
		Type:          req.Type,
		Category:      strings.TrimSpace(req.Category),
		Chapter:       strings.TrimSpace(req.Chapter),
		Character:     strings.TrimSpace(req.Character),
		Question:      strings.TrimSpace(req.Question),
		Options:       req.Options,
		CorrectAnswer: correct,
		Difficulty:    req.Difficulty,
	}
}
