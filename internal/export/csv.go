// Package export renders exam results as downloadable CSV and XLSX files.
package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lpkmns/nihongo-exam/internal/model"
)

// Kind selects an export layout.
type Kind string

const (
	KindSummary  Kind = "summary"
	KindDetailed Kind = "detailed"
	KindXLSX     Kind = "xlsx"
)

// ParseKind accepts the format query values; empty means summary.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindSummary, nil
	case KindSummary, KindDetailed, KindXLSX:
		return k, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// ContentType returns the MIME type served for k.
func (k Kind) ContentType() string {
	if k == KindXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// TimeLayout is used for the Completed At column.
const TimeLayout = "2006-01-02 15:04:05"

var (
	summaryHeaders = []string{
		"Student Name",
		"Exam Type",
		"Score",
		"Total Questions",
		"Percentage",
		"Time Spent (minutes)",
		"Completed At",
		"Status",
	}
	detailedHeaders = []string{
		"Student Name",
		"Exam Type",
		"Question Character",
		"Selected Answer",
		"Correct Answer",
		"Is Correct",
		"Completed At",
	}
)

// Filename returns the download name for an export taken on date.
func Filename(kind Kind, date time.Time) string {
	day := date.Format("2006-01-02")
	switch kind {
	case KindDetailed:
		return "detailed_exam_results_" + day + ".csv"
	case KindXLSX:
		return "exam_results_" + day + ".xlsx"
	default:
		return "exam_results_" + day + ".csv"
	}
}

// WriteSummaryCSV writes one row per result.
func WriteSummaryCSV(w io.Writer, results []model.ExamResult, loc *time.Location) error {
	rows := make([][]string, 0, len(results)+1)
	rows = append(rows, summaryHeaders)
	for i := range results {
		rows = append(rows, summaryRow(&results[i], loc))
	}
	return writeQuoted(w, rows)
}

// WriteDetailedCSV writes one row per answered question of every result.
func WriteDetailedCSV(w io.Writer, results []model.ExamResult, loc *time.Location) error {
	rows := [][]string{detailedHeaders}
	for i := range results {
		rows = append(rows, detailedRows(&results[i], loc)...)
	}
	return writeQuoted(w, rows)
}

func summaryRow(r *model.ExamResult, loc *time.Location) []string {
	return []string{
		r.StudentName,
		typeLabel(r.ExamType),
		strconv.Itoa(r.Score),
		strconv.Itoa(r.TotalQuestions),
		percentage(r.Score, r.TotalQuestions),
		strconv.FormatInt(minutes(r.TimeSpent), 10),
		completedAt(r.CompletedAt, loc),
		status(r.Score, r.TotalQuestions),
	}
}

func detailedRows(r *model.ExamResult, loc *time.Location) [][]string {
	rows := make([][]string, 0, len(r.Answers))
	at := completedAt(r.CompletedAt, loc)
	for _, a := range r.Answers {
		rows = append(rows, []string{
			r.StudentName,
			typeLabel(r.ExamType),
			a.Question,
			answerText(a.SelectedText, a.SelectedAnswer),
			answerText(a.CorrectText, a.CorrectAnswer),
			yesNo(a.IsCorrect),
			at,
		})
	}
	return rows
}

// writeQuoted quotes every cell, which encoding/csv only does when needed.
func writeQuoted(w io.Writer, rows [][]string) error {
	bw := bufio.NewWriter(w)
	for i, row := range rows {
		if i > 0 {
			bw.WriteByte('\n')
		}
		for j, cell := range row {
			if j > 0 {
				bw.WriteByte(',')
			}
			bw.WriteByte('"')
			bw.WriteString(strings.ReplaceAll(cell, `"`, `""`))
			bw.WriteByte('"')
		}
	}
	return bw.Flush()
}

func typeLabel(t model.ExamType) string {
	s := string(t)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func percentage(score, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return strconv.FormatFloat(float64(score)/float64(total)*100, 'f', 1, 64) + "%"
}

func minutes(ms int64) int64 {
	return int64(math.Round(float64(ms) / 60000))
}

// status applies the 70% bar to the raw score rather than the rounded
// percentage. It can therefore disagree with ExamResult.Passed, which uses
// the rounded value: 139/200 is 69.5%, passed on screen and FAIL here.
func status(score, total int) string {
	if total > 0 && score*10 >= total*7 {
		return "PASS"
	}
	return "FAIL"
}

func completedAt(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(TimeLayout)
}

func answerText(text string, idx int) string {
	if text != "" {
		return text
	}
	if idx < 0 {
		return "-"
	}
	return strconv.Itoa(idx)
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}
