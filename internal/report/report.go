package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"schoolattend/internal/ledger"
	"schoolattend/internal/registry"
)

// Daily builds an xlsx sheet for one calendar day: a row per student
// with present/absent status and mark time, then a summary footer.
func Daily(date string, students []registry.Student, led *ledger.Ledger) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{"Name", "School ID", "Class", "Status", "Time", "Marked By"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	byStudent := make(map[string]ledger.Record)
	for _, rec := range led.RecordsForDate(date) {
		byStudent[rec.StudentID] = rec
	}

	row := 2
	present := 0
	for _, s := range students {
		status, markTime, markedBy := "Absent", "", ""
		if rec, ok := byStudent[s.ID]; ok {
			status, markTime, markedBy = "Present", rec.Time, rec.MarkedBy
			present++
		}
		values := []any{s.Name, s.SchoolID, s.Class, status, markTime, markedBy}
		for i, v := range values {
			cell, err := excelize.CoordinatesToCellName(i+1, row)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
		row++
	}

	rate := led.AttendanceRate(date, len(students))
	summary := fmt.Sprintf("%s: %d/%d present (%.1f%%)", date, present, len(students), rate)
	cell, err := excelize.CoordinatesToCellName(1, row+1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheet, cell, summary); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteDaily builds the daily report and streams it to w.
func WriteDaily(w io.Writer, date string, students []registry.Student, led *ledger.Ledger) error {
	f, err := Daily(date, students, led)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = f.WriteTo(w)
	return err
}
