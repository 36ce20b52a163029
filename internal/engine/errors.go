package engine

import "errors"

var (
	ErrInvalidName          = errors.New("student name is required")
	ErrNotActive            = errors.New("exam session is not active")
	ErrSubmitInProgress     = errors.New("exam submission already in progress")
	ErrUnknownQuestion      = errors.New("question is not part of this exam")
	ErrInvalidOption        = errors.New("answer option out of range")
	ErrInvalidQuestionIndex = errors.New("question index out of range")
	ErrSessionNotFound      = errors.New("exam session not found")
	ErrSessionClosed        = errors.New("exam session closed")
	ErrCompletionFailed     = errors.New("exam completion failed")
)
