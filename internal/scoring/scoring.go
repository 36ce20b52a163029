// Package scoring turns a question sequence and an answer map into a graded result.
// Everything here is pure: identical inputs always yield identical outputs.
package scoring

import (
	"math"
	"time"

	"github.com/lpkmns/nihongo-exam/internal/model"
)

// PassThreshold is the minimum percentage that counts as a pass.
const PassThreshold = 70

// Unanswered is the selected-answer sentinel for questions without an answer.
const Unanswered = -1

// Outcome is the raw grading of one attempt.
type Outcome struct {
	Score   int
	Total   int
	Details []model.AnswerDetail
}

// Score grades answers against questions in their original order.
func Score(questions []model.Question, answers map[string]int) Outcome {
	out := Outcome{
		Total:   len(questions),
		Details: make([]model.AnswerDetail, 0, len(questions)),
	}

	for i := range questions {
		q := &questions[i]

		selected, ok := answers[q.ID]
		if !ok {
			selected = Unanswered
		}

		correct := selected == q.CorrectAnswer
		if correct {
			out.Score++
		}

		out.Details = append(out.Details, model.AnswerDetail{
			QuestionID:     q.ID,
			Question:       q.Prompt(),
			SelectedAnswer: selected,
			CorrectAnswer:  q.CorrectAnswer,
			IsCorrect:      correct,
			SelectedText:   q.OptionText(selected),
			CorrectText:    q.OptionText(q.CorrectAnswer),
		})
	}

	return out
}

// Percentage returns round(100*score/total), or 0 when total is 0.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(score) / float64(total)))
}

// Passed reports whether a percentage meets PassThreshold.
func Passed(percentage int) bool {
	return percentage >= PassThreshold
}

// Attempt carries everything Assemble needs besides the grading inputs.
type Attempt struct {
	Student   *model.Student
	Limit     time.Duration
	Remaining time.Duration
	TimedOut  bool
	Now       time.Time
}

// Assemble grades an attempt and builds the result record. Elapsed time is
// the configured limit minus what was left on the clock, clamped to [0, limit].
func Assemble(questions []model.Question, answers map[string]int, a Attempt) model.ExamResult {
	o := Score(questions, answers)

	spent := a.Limit - a.Remaining
	if spent < 0 {
		spent = 0
	}
	if spent > a.Limit {
		spent = a.Limit
	}

	pct := Percentage(o.Score, o.Total)

	res := model.ExamResult{
		Score:          o.Score,
		TotalQuestions: o.Total,
		TimeSpent:      spent.Milliseconds(),
		CompletedAt:    a.Now,
		TimedOut:       a.TimedOut,
		Answers:        o.Details,
		Percentage:     pct,
		Passed:         Passed(pct),
	}
	if a.Student != nil {
		res.StudentID = a.Student.ID
		res.StudentName = a.Student.Name
		res.ExamType = a.Student.ExamType
		res.ExamCategory = a.Student.ExamCategory
	}
	return res
}
