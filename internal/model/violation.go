package model

import (
	"time"

	"github.com/google/uuid"
)

// Violation is one recorded integrity signal from an exam stream.
type Violation struct {
	StudentID    uuid.UUID `json:"student_id"`
	ExamCategory string    `json:"exam_category"`
	Kind         string    `json:"kind"`
	Reason       string    `json:"reason"`
	RecordedAt   time.Time `json:"recorded_at"`
}
