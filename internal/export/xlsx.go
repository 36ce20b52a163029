package export

import (
	"fmt"
	"io"
	"time"

	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	SheetSummary  = "Ringkasan"
	SheetDetailed = "Detail"
)

// WriteXLSX writes a workbook with the summary and detailed layouts on
// separate sheets.
func WriteXLSX(w io.Writer, results []model.ExamResult, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetDetailed); err != nil {
		return err
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	summary := make([][]any, 0, len(results))
	for i := range results {
		r := &results[i]
		summary = append(summary, []any{
			r.StudentName,
			typeLabel(r.ExamType),
			r.Score,
			r.TotalQuestions,
			percentage(r.Score, r.TotalQuestions),
			minutes(r.TimeSpent),
			completedAt(r.CompletedAt, loc),
			status(r.Score, r.TotalQuestions),
		})
	}
	if err := writeSheet(f, SheetSummary, header, summaryHeaders, summary); err != nil {
		return err
	}

	var detailed [][]any
	for i := range results {
		for _, row := range detailedRows(&results[i], loc) {
			detailed = append(detailed, toAny(row))
		}
	}
	if err := writeSheet(f, SheetDetailed, header, detailedHeaders, detailed); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	_, err = f.WriteTo(w)
	return err
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, headers []string, rows [][]any) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream %s: %w", sheet, err)
	}
	if err := sw.SetColWidth(1, len(headers), 20); err != nil {
		return err
	}

	if err := sw.SetRow("A1", toAny(headers), excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func toAny(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
