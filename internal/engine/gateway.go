package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/model"
)

// Gateway is the persistence surface a running exam depends on.
// LoadSession returns ErrSessionNotFound when no snapshot exists.
type Gateway interface {
	LoadQuestions(ctx context.Context, category string) ([]model.Question, error)
	CreateStudent(ctx context.Context, st *model.Student) error
	UpdateStudent(ctx context.Context, st *model.Student) error
	SaveSession(ctx context.Context, sess *model.ExamSession) error
	LoadSession(ctx context.Context, studentID uuid.UUID) (*model.ExamSession, error)
	DeleteSession(ctx context.Context, studentID uuid.UUID) error
	SaveResult(ctx context.Context, res *model.ExamResult) error
}

// ResumeMarker remembers which student a device was last taking an exam as.
type ResumeMarker interface {
	Set(ctx context.Context, deviceID string, studentID uuid.UUID) error
	Get(ctx context.Context, deviceID string) (uuid.UUID, error)
	Clear(ctx context.Context, deviceID string) error
}

// Observer receives engine notifications. Calls are made outside the
// session lock and may arrive from the timer goroutine.
type Observer interface {
	Tick(remaining time.Duration)
	AutosaveFailed(err error)
	Completed(res *model.ExamResult, state State)
	CompletionFailed(err error)
}

// Admission is what a consumed token grants: the exam to sit.
type Admission struct {
	Token        string
	ExamType     model.ExamType
	ExamCategory string
	Difficulty   model.Difficulty
}
