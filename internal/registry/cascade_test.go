package registry_test

import (
	"testing"
	"time"

	"schoolattend/internal/ledger"
	"schoolattend/internal/registry"
)

// Deleting a student through the registry must leave no attendance
// record behind in the ledger.
func TestStudentDeleteCascadesToLedger(t *testing.T) {
	led := ledger.New(30)
	reg := registry.New(led, "teacher123")

	ann, err := reg.AddStudent(registry.StudentDraft{Name: "Ann Lee", Email: "ann@school.edu", Class: "5A", SchoolID: "S100"})
	if err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}
	bob, err := reg.AddStudent(registry.StudentDraft{Name: "Bob Ray", Email: "bob@school.edu", Class: "5B", SchoolID: "S200"})
	if err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}

	base, _ := time.Parse("2006-01-02 15:04:05", "2024-03-01 09:00:00")
	led.Mark(ann.ID, ann.Name, "smith@school.edu", base)
	led.Mark(ann.ID, ann.Name, "smith@school.edu", base.AddDate(0, 0, 1))
	led.Mark(bob.ID, bob.Name, "smith@school.edu", base)

	if _, err := reg.RemoveStudent(ann.ID); err != nil {
		t.Fatalf("RemoveStudent() error = %v", err)
	}

	if got := len(led.RecordsForStudent(ann.ID)); got != 0 {
		t.Errorf("dangling records for deleted student = %d, want 0", got)
	}
	if got := len(led.RecordsForStudent(bob.ID)); got != 1 {
		t.Errorf("records for remaining student = %d, want 1", got)
	}
}
