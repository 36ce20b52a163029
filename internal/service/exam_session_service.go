package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/catalog"
	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/engine"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"github.com/rs/zerolog"
)

var (
	ErrAdmissionExpired = errors.New("token was not validated or its admission expired")
	ErrDeviceRequired   = errors.New("device id required")
	ErrNoResume         = errors.New("no exam to resume on this device")
	ErrStudentInactive  = errors.New("student is no longer taking an exam")
)

// SessionView is the student-facing state of an attempt. Questions never
// carry their answer key.
type SessionView struct {
	StudentID       uuid.UUID                  `json:"student_id"`
	ExamType        model.ExamType             `json:"exam_type"`
	ExamCategory    string                     `json:"exam_category"`
	Category        *model.ExamCategory        `json:"category,omitempty"`
	Questions       []model.QuestionForStudent `json:"questions"`
	Answers         map[string]int             `json:"answers"`
	TimeLimit       int64                      `json:"time_limit"`
	TimeRemaining   int64                      `json:"time_remaining"`
	CurrentQuestion int                        `json:"current_question"`
	IsFullscreen    bool                       `json:"is_fullscreen"`
	State           engine.State               `json:"state"`
}

// NewSessionView renders the current state of an engine.
func NewSessionView(s *engine.Session) *SessionView {
	snap := s.Snapshot()
	v := &SessionView{
		StudentID:       snap.StudentID,
		ExamType:        snap.ExamType,
		ExamCategory:    snap.ExamCategory,
		Questions:       make([]model.QuestionForStudent, len(snap.Questions)),
		Answers:         snap.Answers,
		TimeLimit:       s.Limit().Milliseconds(),
		TimeRemaining:   snap.TimeRemaining,
		CurrentQuestion: snap.CurrentQuestion,
		IsFullscreen:    snap.IsFullscreen,
		State:           s.State(),
	}
	for i := range snap.Questions {
		v.Questions[i] = snap.Questions[i].ForStudent()
	}
	if c, ok := catalog.Lookup(snap.ExamCategory); ok {
		v.Category = &c
	}
	return v
}

// StartedExam is returned by StartExam and Resume.
type StartedExam struct {
	Token   string         `json:"token"`
	Student *model.Student `json:"student"`
	Session *SessionView   `json:"session"`
}

// ExamSessionService connects admitted students to their exam engines.
type ExamSessionService struct {
	cfg      *config.Config
	gw       engine.Gateway
	students StudentStore
	tokens   *TokenService
	auth     *AuthService
	marker   engine.ResumeMarker
	registry *engine.Registry
	monitor  *MonitorService
	log      zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	cfg *config.Config,
	gw engine.Gateway,
	students StudentStore,
	tokens *TokenService,
	auth *AuthService,
	marker engine.ResumeMarker,
	registry *engine.Registry,
	monitor *MonitorService,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		cfg:      cfg,
		gw:       gw,
		students: students,
		tokens:   tokens,
		auth:     auth,
		marker:   marker,
		registry: registry,
		monitor:  monitor,
		log:      log.With().Str("component", "exam_session_service").Logger(),
	}
}

func (s *ExamSessionService) options(category, deviceID string) engine.Options {
	return engine.Options{
		Limit:         catalog.TimeLimit(category, s.cfg.DefaultTimeLimit),
		AutosaveEvery: s.cfg.AutosaveEvery,
		DeviceID:      deviceID,
		Marker:        s.marker,
		Logger:        s.log.With().Str("component", "exam_engine").Logger(),
	}
}

// StartExam redeems the admission left by token validation, creates the
// student and their session, and starts the exam clock.
func (s *ExamSessionService) StartExam(ctx context.Context, code, name, deviceID string) (*StartedExam, error) {
	if deviceID == "" {
		return nil, ErrDeviceRequired
	}

	tok, err := s.tokens.Redeem(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAdmissionExpired
		}
		return nil, fmt.Errorf("redeem admission: %w", err)
	}

	adm := engine.Admission{
		Token:        tok.Code,
		ExamType:     tok.ExamType,
		ExamCategory: tok.ExamCategory,
		Difficulty:   tok.Difficulty,
	}
	sess, err := engine.Begin(ctx, s.gw, adm, name, s.options(tok.ExamCategory, deviceID))
	if err != nil {
		s.rollbackStart(context.WithoutCancel(ctx), tok)
		return nil, err
	}
	sess = s.registry.Adopt(sess)

	student := sess.Student()
	jwt, err := s.auth.GenerateStudentToken(&student)
	if err != nil {
		return nil, err
	}

	s.monitor.Publish(ctx, MonitorEvent{
		Type:         MonitorEventJoined,
		StudentID:    student.ID,
		Name:         student.Name,
		ExamCategory: student.ExamCategory,
	})

	return &StartedExam{Token: jwt, Student: &student, Session: NewSessionView(sess)}, nil
}

// rollbackStart undoes a partially started exam and gives the ticket back
// so the student can try again with the same token.
func (s *ExamSessionService) rollbackStart(ctx context.Context, tok *model.Token) {
	if st, err := s.students.GetByToken(ctx, tok.Code); err == nil {
		if err := s.gw.DeleteSession(ctx, st.ID); err != nil {
			s.log.Warn().Err(err).Str("student_id", st.ID.String()).Msg("Failed to remove partial session")
		}
		if err := s.students.Delete(ctx, st.ID); err != nil {
			s.log.Error().Err(err).Str("student_id", st.ID.String()).Msg("Failed to remove partial student")
			return
		}
	}
	s.tokens.RestoreAdmission(ctx, tok)
}

// Resume re-attaches a device to the exam it was last taking.
func (s *ExamSessionService) Resume(ctx context.Context, deviceID string) (*StartedExam, error) {
	if deviceID == "" {
		return nil, ErrDeviceRequired
	}

	id, err := s.marker.Get(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("read resume marker: %w", err)
	}
	if id == uuid.Nil {
		return nil, ErrNoResume
	}

	st, err := s.students.GetByID(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err != nil || st.Status != model.StudentStatusActive {
		_ = s.marker.Clear(ctx, deviceID)
		return nil, ErrNoResume
	}

	sess, err := s.live(ctx, st, deviceID)
	if err != nil {
		if errors.Is(err, engine.ErrSessionNotFound) {
			_ = s.marker.Clear(ctx, deviceID)
			return nil, ErrNoResume
		}
		return nil, err
	}

	jwt, err := s.auth.GenerateStudentToken(st)
	if err != nil {
		return nil, err
	}

	s.monitor.Publish(ctx, MonitorEvent{
		Type:         MonitorEventResumed,
		StudentID:    st.ID,
		Name:         st.Name,
		ExamCategory: st.ExamCategory,
	})

	student := sess.Student()
	return &StartedExam{Token: jwt, Student: &student, Session: NewSessionView(sess)}, nil
}

// live returns the running engine for st, restoring and starting one when
// none is registered.
func (s *ExamSessionService) live(ctx context.Context, st *model.Student, deviceID string) (*engine.Session, error) {
	if sess, ok := s.registry.Get(st.ID); ok {
		return sess, nil
	}
	sess, err := engine.Restore(ctx, s.gw, st, s.options(st.ExamCategory, deviceID))
	if err != nil {
		return nil, err
	}
	return s.registry.Adopt(sess), nil
}

// Current returns the student's live session state.
func (s *ExamSessionService) Current(ctx context.Context, studentID uuid.UUID) (*SessionView, error) {
	if sess, ok := s.registry.Get(studentID); ok {
		return NewSessionView(sess), nil
	}
	st, err := s.activeStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	sess, err := engine.Restore(ctx, s.gw, st, s.options(st.ExamCategory, ""))
	if err != nil {
		return nil, err
	}
	return NewSessionView(sess), nil
}

// Attach gives a connection a reference to the student's engine. Every
// successful Attach must be paired with Detach.
func (s *ExamSessionService) Attach(ctx context.Context, studentID uuid.UUID, deviceID string) (*engine.Session, error) {
	return s.registry.Acquire(ctx, studentID, func(ctx context.Context) (*engine.Session, error) {
		st, err := s.activeStudent(ctx, studentID)
		if err != nil {
			return nil, err
		}
		return engine.Restore(ctx, s.gw, st, s.options(st.ExamCategory, deviceID))
	})
}

// Detach drops a connection's reference. The last one closes the engine.
func (s *ExamSessionService) Detach(ctx context.Context, studentID uuid.UUID) {
	s.registry.Release(ctx, studentID)
}

// IsActive reports whether the student may still use their exam token.
func (s *ExamSessionService) IsActive(ctx context.Context, studentID uuid.UUID) error {
	_, err := s.activeStudent(ctx, studentID)
	return err
}

func (s *ExamSessionService) activeStudent(ctx context.Context, id uuid.UUID) (*model.Student, error) {
	st, err := s.students.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != model.StudentStatusActive {
		return nil, ErrStudentInactive
	}
	return st, nil
}

// Disconnect is the admin action that ends a student's access without
// scoring. The live engine is closed after flushing, and the session is
// kept for inspection.
func (s *ExamSessionService) Disconnect(ctx context.Context, studentID uuid.UUID) error {
	st, err := s.activeStudent(ctx, studentID)
	if err != nil {
		return err
	}

	s.registry.Remove(ctx, studentID)
	if err := s.students.UpdateStatus(ctx, studentID, model.StudentStatusDisconnected); err != nil {
		return err
	}
	// A connection may have re-opened the engine between the two steps.
	s.registry.Remove(ctx, studentID)

	s.log.Info().Str("student_id", studentID.String()).Msg("Student disconnected by admin")
	s.monitor.Publish(ctx, MonitorEvent{
		Type:         MonitorEventDisconnected,
		StudentID:    studentID,
		Name:         st.Name,
		ExamCategory: st.ExamCategory,
	})
	return nil
}

// Shutdown closes every live engine, flushing their snapshots.
func (s *ExamSessionService) Shutdown(ctx context.Context) {
	s.registry.CloseAll(ctx)
}
