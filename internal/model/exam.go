package model

import "fmt"

// ExamType is the closed set of exam subjects.
type ExamType string

const (
	ExamTypeHiragana   ExamType = "hiragana"
	ExamTypeKatakana   ExamType = "katakana"
	ExamTypeVocabulary ExamType = "vocabulary"
	ExamTypeGrammar    ExamType = "grammar"
	ExamTypeKanji      ExamType = "kanji"
)

// ExamTypes lists every exam type in display order.
var ExamTypes = []ExamType{
	ExamTypeHiragana,
	ExamTypeKatakana,
	ExamTypeVocabulary,
	ExamTypeGrammar,
	ExamTypeKanji,
}

var examTypeLabels = map[ExamType]string{
	ExamTypeHiragana:   "ひらがな",
	ExamTypeKatakana:   "カタカナ",
	ExamTypeVocabulary: "語彙 (Kosakata)",
	ExamTypeGrammar:    "文法 (Tata Bahasa)",
	ExamTypeKanji:      "漢字 (Kanji)",
}

var examTypeColors = map[ExamType]string{
	ExamTypeHiragana:   "bg-blue-100 text-blue-800",
	ExamTypeKatakana:   "bg-purple-100 text-purple-800",
	ExamTypeVocabulary: "bg-indigo-100 text-indigo-800",
	ExamTypeGrammar:    "bg-pink-100 text-pink-800",
	ExamTypeKanji:      "bg-gray-100 text-gray-800",
}

// Valid reports whether t is one of the known exam types.
func (t ExamType) Valid() bool {
	_, ok := examTypeLabels[t]
	return ok
}

// Label returns the display label shown to students.
func (t ExamType) Label() string {
	if l, ok := examTypeLabels[t]; ok {
		return l
	}
	return string(t)
}

// Color returns the badge style used by the admin UI.
func (t ExamType) Color() string {
	if c, ok := examTypeColors[t]; ok {
		return c
	}
	return "bg-gray-100 text-gray-800"
}

// ParseExamType converts a raw string into an ExamType.
func ParseExamType(s string) (ExamType, error) {
	t := ExamType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown exam type %q", s)
	}
	return t, nil
}

// Difficulty is the closed set of student tiers.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Difficulties lists every tier from easiest to hardest.
var Difficulties = []Difficulty{
	DifficultyBeginner,
	DifficultyIntermediate,
	DifficultyAdvanced,
}

var difficultyLabels = map[Difficulty]string{
	DifficultyBeginner:     "Siswa Baru",
	DifficultyIntermediate: "Siswa Menengah",
	DifficultyAdvanced:     "Siswa Akhir",
}

var difficultyColors = map[Difficulty]string{
	DifficultyBeginner:     "bg-green-100 text-green-800",
	DifficultyIntermediate: "bg-yellow-100 text-yellow-800",
	DifficultyAdvanced:     "bg-red-100 text-red-800",
}

func (d Difficulty) Valid() bool {
	_, ok := difficultyLabels[d]
	return ok
}

func (d Difficulty) Label() string {
	if l, ok := difficultyLabels[d]; ok {
		return l
	}
	return string(d)
}

func (d Difficulty) Color() string {
	if c, ok := difficultyColors[d]; ok {
		return c
	}
	return "bg-gray-100 text-gray-800"
}

// ParseDifficulty converts a raw string into a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}

// ExamCategory is static configuration for one named exam.
type ExamCategory struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Type             ExamType   `json:"type"`
	Difficulty       Difficulty `json:"difficulty"`
	Chapters         []string   `json:"chapters,omitempty"`
	TimeLimitMinutes int        `json:"time_limit"`
	QuestionCount    int        `json:"question_count"`
}
