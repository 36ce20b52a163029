package model

import "time"

// Question is a single multiple-choice item.
type Question struct {
	ID            string     `json:"id"`
	Type          ExamType   `json:"type"`
	Category      string     `json:"category"`
	Chapter       string     `json:"chapter,omitempty"`
	Character     string     `json:"character,omitempty"`
	Question      string     `json:"question,omitempty"`
	Options       []string   `json:"options"`
	CorrectAnswer int        `json:"correct_answer"`
	Difficulty    Difficulty `json:"difficulty"`
	IsCustom      bool       `json:"is_custom"`
	CreatedAt     time.Time  `json:"created_at,omitempty"`
}

// Prompt returns the text shown for the question: the character when set,
// otherwise the question text.
func (q *Question) Prompt() string {
	if q.Character != "" {
		return q.Character
	}
	return q.Question
}

// ValidOption reports whether idx addresses one of the options.
func (q *Question) ValidOption(idx int) bool {
	return idx >= 0 && idx < len(q.Options)
}

// OptionText returns the option text at idx, or an empty string when idx is out of range.
func (q *Question) OptionText(idx int) string {
	if !q.ValidOption(idx) {
		return ""
	}
	return q.Options[idx]
}

// QuestionForStudent hides the answer key from the exam stream.
type QuestionForStudent struct {
	ID        string   `json:"id"`
	Type      ExamType `json:"type"`
	Chapter   string   `json:"chapter,omitempty"`
	Character string   `json:"character,omitempty"`
	Question  string   `json:"question,omitempty"`
	Options   []string `json:"options"`
}

// ForStudent strips the correct answer.
func (q *Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:        q.ID,
		Type:      q.Type,
		Chapter:   q.Chapter,
		Character: q.Character,
		Question:  q.Question,
		Options:   q.Options,
	}
}

// QuestionRequest is the payload for creating or updating a custom question.
type QuestionRequest struct {
	Type          ExamType   `json:"type" binding:"required,examtype"`
	Category      string     `json:"category" binding:"required,min=3,max=64"`
	Chapter       string     `json:"chapter" binding:"omitempty,max=8"`
	Character     string     `json:"character" binding:"required_without=Question,max=32"`
	Question      string     `json:"question" binding:"required_without=Character,max=2000"`
	Options       []string   `json:"options" binding:"required,len=4,dive,required,max=255"`
	CorrectAnswer *int       `json:"correct_answer" binding:"required,min=0,max=3"`
	Difficulty    Difficulty `json:"difficulty" binding:"required,difficulty"`
}

// QuestionFilter narrows the admin question list.
type QuestionFilter struct {
	Type     ExamType
	Category string
	Search   string
}

// QuestionStats summarises the bank.
type QuestionStats struct {
	Total        int                `json:"total"`
	ByType       map[ExamType]int   `json:"by_type"`
	ByDifficulty map[Difficulty]int `json:"by_difficulty"`
	Custom       int                `json:"custom"`
}
