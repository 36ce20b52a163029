// Package catalog holds the static exam reference data: the category table
// and the built-in question bank that ships with the binary.
package catalog

import (
	"strconv"
	"time"

	"github.com/lpkmns/nihongo-exam/internal/model"
)

// DefaultTimeLimit applies to categories that are not in the table.
const DefaultTimeLimit = 30 * time.Minute

var categories = []model.ExamCategory{
	// ─── Hiragana ──────────────────────────────────────────────────────
	{ID: "hiragana-basic", Name: "Hiragana Dasar", Description: "Ujian hiragana untuk siswa baru (あ-の)",
		Type: model.ExamTypeHiragana, Difficulty: model.DifficultyBeginner, TimeLimitMinutes: 20, QuestionCount: 15},
	{ID: "hiragana-intermediate", Name: "Hiragana Menengah", Description: "Ujian hiragana untuk siswa menengah (は-ん)",
		Type: model.ExamTypeHiragana, Difficulty: model.DifficultyIntermediate, TimeLimitMinutes: 25, QuestionCount: 20},
	{ID: "hiragana-advanced", Name: "Hiragana Lengkap", Description: "Ujian hiragana lengkap untuk siswa akhir",
		Type: model.ExamTypeHiragana, Difficulty: model.DifficultyAdvanced, TimeLimitMinutes: 30, QuestionCount: 30},

	// ─── Katakana ──────────────────────────────────────────────────────
	{ID: "katakana-basic", Name: "Katakana Dasar", Description: "Ujian katakana untuk siswa baru (ア-ノ)",
		Type: model.ExamTypeKatakana, Difficulty: model.DifficultyBeginner, TimeLimitMinutes: 20, QuestionCount: 15},
	{ID: "katakana-intermediate", Name: "Katakana Menengah", Description: "Ujian katakana untuk siswa menengah (ハ-ン)",
		Type: model.ExamTypeKatakana, Difficulty: model.DifficultyIntermediate, TimeLimitMinutes: 25, QuestionCount: 20},
	{ID: "katakana-advanced", Name: "Katakana Lengkap", Description: "Ujian katakana lengkap untuk siswa akhir",
		Type: model.ExamTypeKatakana, Difficulty: model.DifficultyAdvanced, TimeLimitMinutes: 30, QuestionCount: 30},

	// ─── Vocabulary ────────────────────────────────────────────────────
	{ID: "vocabulary-ch1-2", Name: "Kosakata Bab 1-2", Description: "Kosakata dasar: salam, perkenalan, angka",
		Type: model.ExamTypeVocabulary, Difficulty: model.DifficultyBeginner, Chapters: chapters(1, 2), TimeLimitMinutes: 25, QuestionCount: 20},
	{ID: "vocabulary-ch3-5", Name: "Kosakata Bab 3-5", Description: "Kosakata: tempat, waktu, kegiatan sehari-hari",
		Type: model.ExamTypeVocabulary, Difficulty: model.DifficultyBeginner, Chapters: chapters(3, 5), TimeLimitMinutes: 30, QuestionCount: 25},
	{ID: "vocabulary-ch6-8", Name: "Kosakata Bab 6-8", Description: "Kosakata: makanan, minuman, berbelanja",
		Type: model.ExamTypeVocabulary, Difficulty: model.DifficultyBeginner, Chapters: chapters(6, 8), TimeLimitMinutes: 30, QuestionCount: 25},
	{ID: "vocabulary-ch9-12", Name: "Kosakata Bab 9-12", Description: "Kosakata: hobi, keluarga, pekerjaan",
		Type: model.ExamTypeVocabulary, Difficulty: model.DifficultyIntermediate, Chapters: chapters(9, 12), TimeLimitMinutes: 35, QuestionCount: 30},
	{ID: "vocabulary-ch13-16", Name: "Kosakata Bab 13-16", Description: "Kosakata: keinginan, permintaan, cuaca",
		Type: model.ExamTypeVocabulary, Difficulty: model.DifficultyIntermediate, Chapters: chapters(13, 16), TimeLimitMinutes: 35, QuestionCount: 30},
	{ID: "vocabulary-ch17-20", Name: "Kosakata Bab 17-20", Description: "Kosakata: bentuk, warna, pengalaman",
		Type: model.ExamTypeVocabulary, Difficulty: model.DifficultyIntermediate, Chapters: chapters(17, 20), TimeLimitMinutes: 40, QuestionCount: 35},
	{ID: "vocabulary-ch21-25", Name: "Kosakata Bab 21-25", Description: "Kosakata: pendapat, rencana, kondisi",
		Type: model.ExamTypeVocabulary, Difficulty: model.DifficultyAdvanced, Chapters: chapters(21, 25), TimeLimitMinutes: 45, QuestionCount: 40},

	// ─── Grammar ───────────────────────────────────────────────────────
	{ID: "grammar-ch1-2", Name: "Tata Bahasa Bab 1-2", Description: "Grammar: です/である, ini/itu/apa",
		Type: model.ExamTypeGrammar, Difficulty: model.DifficultyBeginner, Chapters: chapters(1, 2), TimeLimitMinutes: 30, QuestionCount: 20},
	{ID: "grammar-ch3-5", Name: "Tata Bahasa Bab 3-5", Description: "Grammar: ada/tidak ada, kata kerja dasar",
		Type: model.ExamTypeGrammar, Difficulty: model.DifficultyBeginner, Chapters: chapters(3, 5), TimeLimitMinutes: 35, QuestionCount: 25},
	{ID: "grammar-ch6-8", Name: "Tata Bahasa Bab 6-8", Description: "Grammar: kata kerja transitif, objek",
		Type: model.ExamTypeGrammar, Difficulty: model.DifficultyBeginner, Chapters: chapters(6, 8), TimeLimitMinutes: 35, QuestionCount: 25},
	{ID: "grammar-ch9-12", Name: "Tata Bahasa Bab 9-12", Description: "Grammar: kata sifat, perbandingan",
		Type: model.ExamTypeGrammar, Difficulty: model.DifficultyIntermediate, Chapters: chapters(9, 12), TimeLimitMinutes: 40, QuestionCount: 30},
	{ID: "grammar-ch13-16", Name: "Tata Bahasa Bab 13-16", Description: "Grammar: keinginan, kemampuan, permintaan",
		Type: model.ExamTypeGrammar, Difficulty: model.DifficultyIntermediate, Chapters: chapters(13, 16), TimeLimitMinutes: 40, QuestionCount: 30},
	{ID: "grammar-ch17-20", Name: "Tata Bahasa Bab 17-20", Description: "Grammar: bentuk kasual, pengalaman",
		Type: model.ExamTypeGrammar, Difficulty: model.DifficultyIntermediate, Chapters: chapters(17, 20), TimeLimitMinutes: 45, QuestionCount: 35},
	{ID: "grammar-ch21-25", Name: "Tata Bahasa Bab 21-25", Description: "Grammar: bentuk kondisional, rencana",
		Type: model.ExamTypeGrammar, Difficulty: model.DifficultyAdvanced, Chapters: chapters(21, 25), TimeLimitMinutes: 50, QuestionCount: 40},

	// ─── Kanji ─────────────────────────────────────────────────────────
	{ID: "kanji-basic", Name: "Kanji Dasar N5", Description: "Kanji dasar untuk level N5 (80 kanji)",
		Type: model.ExamTypeKanji, Difficulty: model.DifficultyBeginner, TimeLimitMinutes: 40, QuestionCount: 30},
	{ID: "kanji-intermediate", Name: "Kanji Menengah N5", Description: "Kanji menengah untuk level N5",
		Type: model.ExamTypeKanji, Difficulty: model.DifficultyIntermediate, TimeLimitMinutes: 45, QuestionCount: 35},
	{ID: "kanji-advanced", Name: "Kanji Lengkap N5", Description: "Semua kanji N5 untuk ujian akhir",
		Type: model.ExamTypeKanji, Difficulty: model.DifficultyAdvanced, TimeLimitMinutes: 60, QuestionCount: 50},
}

var byID = func() map[string]model.ExamCategory {
	m := make(map[string]model.ExamCategory, len(categories))
	for _, c := range categories {
		m[c.ID] = c
	}
	return m
}()

func chapters(from, to int) []string {
	out := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}

// All returns every category in display order.
func All() []model.ExamCategory {
	out := make([]model.ExamCategory, len(categories))
	copy(out, categories)
	return out
}

// Lookup finds a category by id.
func Lookup(id string) (model.ExamCategory, bool) {
	c, ok := byID[id]
	return c, ok
}

// ByType returns the categories of one exam type.
func ByType(t model.ExamType) []model.ExamCategory {
	var out []model.ExamCategory
	for _, c := range categories {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// TimeLimit returns the configured limit for a category, or fallback when
// the category is unknown. A non-positive fallback means DefaultTimeLimit.
func TimeLimit(id string, fallback time.Duration) time.Duration {
	if c, ok := byID[id]; ok {
		return time.Duration(c.TimeLimitMinutes) * time.Minute
	}
	if fallback <= 0 {
		return DefaultTimeLimit
	}
	return fallback
}
