package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamSession is the resumable live state of one attempt.
// Questions are loaded per category and are not part of the stored snapshot.
type ExamSession struct {
	StudentID       uuid.UUID      `json:"student_id"`
	ExamType        ExamType       `json:"exam_type"`
	ExamCategory    string         `json:"exam_category"`
	Questions       []Question     `json:"-"`
	Answers         map[string]int `json:"answers"`
	StartTime       time.Time      `json:"start_time"`
	TimeRemaining   int64          `json:"time_remaining"`
	CurrentQuestion int            `json:"current_question"`
	IsFullscreen    bool           `json:"is_fullscreen"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the mutable parts of the session.
func (s *ExamSession) Clone() *ExamSession {
	c := *s
	c.Answers = make(map[string]int, len(s.Answers))
	for k, v := range s.Answers {
		c.Answers[k] = v
	}
	return &c
}
