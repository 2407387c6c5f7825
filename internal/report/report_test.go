package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"schoolattend/internal/ledger"
	"schoolattend/internal/registry"
)

func TestDaily(t *testing.T) {
	reg := registry.New(nil, "teacher123")
	ann, err := reg.AddStudent(registry.StudentDraft{Name: "Ann Lee", Email: "ann@school.edu", Class: "5A", SchoolID: "S100"})
	if err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}
	if _, err := reg.AddStudent(registry.StudentDraft{Name: "Bob Ray", Email: "bob@school.edu", Class: "5B", SchoolID: "S200"}); err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}

	led := ledger.New(30)
	now, _ := time.Parse("2006-01-02 15:04:05", "2024-03-01 09:00:00")
	led.Mark(ann.ID, ann.Name, "smith@school.edu", now)

	f, err := Daily("2024-03-01", reg.Students(), led)
	if err != nil {
		t.Fatalf("Daily() error = %v", err)
	}
	defer f.Close()
	sheet := f.GetSheetName(0)

	cells := map[string]string{
		"A1": "Name",
		"D1": "Status",
		"A2": "Ann Lee",
		"D2": "Present",
		"E2": "09:00:00",
		"F2": "smith@school.edu",
		"A3": "Bob Ray",
		"D3": "Absent",
		"A5": "2024-03-01: 1/2 present (50.0%)",
	}
	for cell, want := range cells {
		got, err := f.GetCellValue(sheet, cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s) error = %v", cell, err)
		}
		if got != want {
			t.Errorf("cell %s = %q, want %q", cell, got, want)
		}
	}
}

func TestWriteDailyProducesWorkbook(t *testing.T) {
	reg := registry.New(nil, "teacher123")
	led := ledger.New(30)

	var buf bytes.Buffer
	if err := WriteDaily(&buf, "2024-03-01", reg.Students(), led); err != nil {
		t.Fatalf("WriteDaily() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()
	got, err := f.GetCellValue(f.GetSheetName(0), "A1")
	if err != nil {
		t.Fatalf("GetCellValue(A1) error = %v", err)
	}
	if got != "Name" {
		t.Errorf("A1 = %q, want header row", got)
	}
}
