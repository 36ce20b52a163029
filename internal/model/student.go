package model

import (
	"time"

	"github.com/google/uuid"
)

// StudentStatus tracks where a student is in their attempt.
type StudentStatus string

const (
	StudentStatusActive       StudentStatus = "active"
	StudentStatusCompleted    StudentStatus = "completed"
	StudentStatusDisconnected StudentStatus = "disconnected"
)

// Student is one exam participant, created when a token is redeemed.
type Student struct {
	ID              uuid.UUID     `json:"id"`
	Name            string        `json:"name"`
	Token           string        `json:"token"`
	ExamType        ExamType      `json:"exam_type"`
	ExamCategory    string        `json:"exam_category"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	Status          StudentStatus `json:"status"`
	TimeRemaining   int64         `json:"time_remaining"`
	CurrentQuestion int           `json:"current_question"`
	CreatedAt       time.Time     `json:"created_at"`
}

// StartExamRequest is the payload that turns a validated token into a running exam.
type StartExamRequest struct {
	Token string `json:"token" binding:"required,min=4,max=32"`
	Name  string `json:"name" binding:"required,min=2,max=100"`
}

// StudentFilter narrows the admin student list.
type StudentFilter struct {
	Status   StudentStatus
	ExamType ExamType
	Search   string
}
