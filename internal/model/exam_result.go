package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerDetail is the per-question breakdown stored with a result.
type AnswerDetail struct {
	QuestionID     string `json:"question_id"`
	Question       string `json:"question"`
	SelectedAnswer int    `json:"selected_answer"`
	CorrectAnswer  int    `json:"correct_answer"`
	IsCorrect      bool   `json:"is_correct"`
	SelectedText   string `json:"selected_text,omitempty"`
	CorrectText    string `json:"correct_text,omitempty"`
}

// ExamResult is the immutable record of a finished attempt.
type ExamResult struct {
	ID             uuid.UUID      `json:"id"`
	StudentID      uuid.UUID      `json:"student_id"`
	StudentName    string         `json:"student_name"`
	ExamType       ExamType       `json:"exam_type"`
	ExamCategory   string         `json:"exam_category"`
	Score          int            `json:"score"`
	TotalQuestions int            `json:"total_questions"`
	TimeSpent      int64          `json:"time_spent"`
	CompletedAt    time.Time      `json:"completed_at"`
	TimedOut       bool           `json:"timed_out"`
	Answers        []AnswerDetail `json:"answers"`
	Percentage     int            `json:"percentage"`
	Passed         bool           `json:"passed"`
}

// ResultFilter narrows the admin results list.
type ResultFilter struct {
	ExamType     ExamType
	ExamCategory string
	Search       string
}

// ResultStats summarises completed attempts.
type ResultStats struct {
	Total             int     `json:"total"`
	AveragePercentage float64 `json:"average_percentage"`
	Passed            int     `json:"passed"`
}
