package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/engine"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"github.com/lpkmns/nihongo-exam/internal/response"
	"github.com/rs/zerolog"
)

var ErrInvalidStatus = errors.New("invalid student status")

// StudentAdminStore is the student data the admin screens need.
type StudentAdminStore interface {
	List(ctx context.Context, f model.StudentFilter, page, perPage int) ([]model.Student, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Student, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.StudentStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// StudentService handles student administration.
type StudentService struct {
	students StudentAdminStore
	sessions SessionStore
	registry *engine.Registry
	log      zerolog.Logger
}

// NewStudentService creates a new StudentService.
func NewStudentService(students StudentAdminStore, sessions SessionStore, registry *engine.Registry, log zerolog.Logger) *StudentService {
	return &StudentService{
		students: students,
		sessions: sessions,
		registry: registry,
		log:      log.With().Str("component", "student_service").Logger(),
	}
}

// List retrieves students with pagination.
func (s *StudentService) List(ctx context.Context, f model.StudentFilter, page, perPage int) ([]model.Student, *response.Pagination, error) {
	page, perPage = response.NormalizePage(page, perPage)

	students, total, err := s.students.List(ctx, f, page, perPage)
	if err != nil {
		return nil, nil, err
	}
	if students == nil {
		students = []model.Student{}
	}

	return students, response.NewPagination(page, perPage, total), nil
}

// GetByID retrieves a student by ID.
func (s *StudentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Student, error) {
	return s.students.GetByID(ctx, id)
}

// Delete removes a student and everything recorded for them. A running
// engine is stopped first so it cannot write the session back.
func (s *StudentService) Delete(ctx context.Context, id uuid.UUID) error {
	s.registry.Remove(ctx, id)

	if err := s.sessions.Delete(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("student_id", id.String()).Msg("Failed to clear cached session")
	}
	if err := s.students.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info().Str("student_id", id.String()).Msg("Student deleted")
	return nil
}

// SetStatus moves a student between active and disconnected. Leaving
// active stops the live engine without scoring; setting active again lets a
// disconnected student resume from their last snapshot. Completed is
// terminal and only the engine reaches it.
func (s *StudentService) SetStatus(ctx context.Context, id uuid.UUID, status model.StudentStatus) error {
	switch status {
	case model.StudentStatusActive, model.StudentStatusDisconnected:
	default:
		return ErrInvalidStatus
	}

	st, err := s.students.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if st.Status == model.StudentStatusCompleted {
		return ErrInvalidStatus
	}

	if status != model.StudentStatusActive {
		s.registry.Remove(ctx, id)
	}
	if err := s.students.UpdateStatus(ctx, id, status); err != nil {
		// The exam finished between the read and the write.
		if errors.Is(err, repository.ErrStudentCompleted) {
			return ErrInvalidStatus
		}
		return err
	}
	if status != model.StudentStatusActive {
		s.registry.Remove(ctx, id)
	}
	return nil
}
