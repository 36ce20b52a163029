package catalog

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/lpkmns/nihongo-exam/internal/model"
)

// CustomPrefix marks questions authored through the admin console.
const CustomPrefix = "custom_"

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewCustomQuestionID returns an id of the form custom_<unix ms>_<9 base36 chars>.
func NewCustomQuestionID(now time.Time) string {
	var sb strings.Builder
	sb.WriteString(CustomPrefix)
	sb.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	sb.WriteByte('_')
	radix := big.NewInt(int64(len(base36)))
	for i := 0; i < 9; i++ {
		n, err := rand.Int(rand.Reader, radix)
		if err != nil {
			// crypto/rand does not fail on supported platforms.
			panic(err)
		}
		sb.WriteByte(base36[n.Int64()])
	}
	return sb.String()
}

// IsCustomQuestionID reports whether id was issued by NewCustomQuestionID.
func IsCustomQuestionID(id string) bool {
	return strings.HasPrefix(id, CustomPrefix)
}

func hiragana(n int, char string, options []string, correct int) model.Question {
	return model.Question{
		ID:            "h_basic_" + strconv.Itoa(n),
		Type:          model.ExamTypeHiragana,
		Category:      "hiragana-basic",
		Character:     char,
		Options:       options,
		CorrectAnswer: correct,
		Difficulty:    model.DifficultyBeginner,
	}
}

func prompt(id string, t model.ExamType, category, chapter, text string, options []string, correct int) model.Question {
	return model.Question{
		ID:            id,
		Type:          t,
		Category:      category,
		Chapter:       chapter,
		Question:      text,
		Options:       options,
		CorrectAnswer: correct,
		Difficulty:    model.DifficultyBeginner,
	}
}

var (
	vowels = []string{"a", "i", "u", "e"}
	kRow   = []string{"ka", "ki", "ku", "ke"}
	sRow   = []string{"sa", "shi", "su", "se"}
)

var builtin = map[string][]model.Question{
	"hiragana-basic": {
		hiragana(1, "あ", vowels, 0),
		hiragana(2, "い", vowels, 1),
		hiragana(3, "う", vowels, 2),
		hiragana(4, "え", vowels, 3),
		hiragana(5, "お", []string{"o", "a", "i", "u"}, 0),
		hiragana(6, "か", kRow, 0),
		hiragana(7, "き", kRow, 1),
		hiragana(8, "く", kRow, 2),
		hiragana(9, "け", kRow, 3),
		hiragana(10, "こ", []string{"ko", "ka", "ki", "ku"}, 0),
		hiragana(11, "さ", sRow, 0),
		hiragana(12, "し", sRow, 1),
		hiragana(13, "す", sRow, 2),
		hiragana(14, "せ", sRow, 3),
		hiragana(15, "そ", []string{"so", "sa", "shi", "su"}, 0),
	},
	"vocabulary-ch1-2": {
		prompt("v_ch1_2_1", model.ExamTypeVocabulary, "vocabulary-ch1-2", "1", `Apa arti dari "はじめまして"?`,
			[]string{"Selamat pagi", "Senang berkenalan", "Terima kasih", "Selamat malam"}, 1),
		prompt("v_ch1_2_2", model.ExamTypeVocabulary, "vocabulary-ch1-2", "1", `Bagaimana cara mengatakan "mahasiswa" dalam bahasa Jepang?`,
			[]string{"せんせい", "がくせい", "かいしゃいん", "いしゃ"}, 1),
		prompt("v_ch1_2_3", model.ExamTypeVocabulary, "vocabulary-ch1-2", "2", `Apa arti dari "これ"?`,
			[]string{"Itu (jauh)", "Ini", "Itu (dekat)", "Apa"}, 1),
		prompt("v_ch1_2_4", model.ExamTypeVocabulary, "vocabulary-ch1-2", "2", `Bagaimana cara mengatakan "buku" dalam bahasa Jepang?`,
			[]string{"ほん", "ペン", "かみ", "つくえ"}, 0),
		prompt("v_ch1_2_5", model.ExamTypeVocabulary, "vocabulary-ch1-2", "1", `Apa arti dari "すみません"?`,
			[]string{"Terima kasih", "Maaf/Permisi", "Selamat tinggal", "Tidak apa-apa"}, 1),
	},
	"grammar-ch1-2": {
		prompt("g_ch1_2_1", model.ExamTypeGrammar, "grammar-ch1-2", "1", "Lengkapi kalimat: わたし___がくせいです。",
			[]string{"は", "が", "を", "に"}, 0),
		prompt("g_ch1_2_2", model.ExamTypeGrammar, "grammar-ch1-2", "1", `Bentuk negatif dari "です" adalah:`,
			[]string{"ではありません", "じゃありません", "ではないです", "Semua benar"}, 3),
		prompt("g_ch1_2_3", model.ExamTypeGrammar, "grammar-ch1-2", "2", "これ___ほんです。",
			[]string{"は", "が", "を", "の"}, 0),
		prompt("g_ch1_2_4", model.ExamTypeGrammar, "grammar-ch1-2", "2", `Untuk menanyakan "apa ini?", kita menggunakan:`,
			[]string{"これはなんですか", "これはだれですか", "これはどこですか", "これはいつですか"}, 0),
	},
	"kanji-basic": {
		prompt("k_basic_1", model.ExamTypeKanji, "kanji-basic", "", `Bagaimana cara membaca kanji "人"?`,
			[]string{"ひと", "じん", "にん", "Semua benar"}, 3),
		prompt("k_basic_2", model.ExamTypeKanji, "kanji-basic", "", `Apa arti dari kanji "日"?`,
			[]string{"Bulan", "Hari/Matahari", "Tahun", "Minggu"}, 1),
		prompt("k_basic_3", model.ExamTypeKanji, "kanji-basic", "", `Bagaimana cara membaca "本"?`,
			[]string{"ほん", "もと", "ぼん", "A dan B benar"}, 3),
		prompt("k_basic_4", model.ExamTypeKanji, "kanji-basic", "", `Apa arti dari "学生"?`,
			[]string{"Guru", "Mahasiswa", "Sekolah", "Belajar"}, 1),
	},
}

var builtinIDs = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, qs := range builtin {
		for _, q := range qs {
			m[q.ID] = struct{}{}
		}
	}
	return m
}()

// BuiltinQuestions returns a copy of the shipped questions for a category.
// Unknown categories yield an empty slice.
func BuiltinQuestions(category string) []model.Question {
	qs := builtin[category]
	out := make([]model.Question, len(qs))
	for i, q := range qs {
		q.Options = append([]string(nil), q.Options...)
		out[i] = q
	}
	return out
}

// BuiltinCategories lists the categories that have shipped questions.
func BuiltinCategories() []string {
	out := make([]string, 0, len(builtin))
	for _, c := range categories {
		if _, ok := builtin[c.ID]; ok {
			out = append(out, c.ID)
		}
	}
	return out
}

// IsBuiltin reports whether id belongs to the shipped question bank.
func IsBuiltin(id string) bool {
	_, ok := builtinIDs[id]
	return ok
}
