package model

import "time"

// Token is a single-use exam credential.
type Token struct {
	Code         string     `json:"token"`
	ExamType     ExamType   `json:"exam_type"`
	ExamCategory string     `json:"exam_category"`
	Difficulty   Difficulty `json:"difficulty"`
	CreatedAt    time.Time  `json:"created_at"`
	Used         bool       `json:"used"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
}

// TokenValidation is the outcome of a validation attempt.
type TokenValidation struct {
	Valid        bool          `json:"valid"`
	ExamType     ExamType      `json:"exam_type,omitempty"`
	ExamCategory string        `json:"exam_category,omitempty"`
	Difficulty   Difficulty    `json:"difficulty,omitempty"`
	Category     *ExamCategory `json:"category,omitempty"`
}

// ValidateTokenRequest is the payload a student submits with their token.
type ValidateTokenRequest struct {
	Token string `json:"token" binding:"required,min=4,max=32"`
}

// GenerateTokensRequest is the payload for generating a batch of tokens.
type GenerateTokensRequest struct {
	ExamType     ExamType   `json:"exam_type" binding:"required,examtype"`
	ExamCategory string     `json:"exam_category" binding:"required,min=3,max=64"`
	Difficulty   Difficulty `json:"difficulty" binding:"required,difficulty"`
	Count        int        `json:"count" binding:"required,min=1,max=100"`
}

// TokenFilter narrows the admin token list.
type TokenFilter struct {
	Used     *bool
	ExamType ExamType
}

// TokenStats summarises token usage.
type TokenStats struct {
	Total        int                `json:"total"`
	Used         int                `json:"used"`
	Available    int                `json:"available"`
	ByType       map[ExamType]int   `json:"by_type"`
	ByDifficulty map[Difficulty]int `json:"by_difficulty"`
}
