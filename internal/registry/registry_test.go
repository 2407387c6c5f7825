package registry

import (
	"errors"
	"testing"
)

func TestDeriveQRCode(t *testing.T) {
	tests := []struct {
		name     string
		schoolID string
		student  string
		want     string
	}{
		{"simple", "S100", "Ann Lee", "S100-ANN-LEE"},
		{"extra whitespace", "S100", "  Ann   Lee ", "S100-ANN-LEE"},
		{"single name", "S7", "Cher", "S7-CHER"},
		{"already upper", "S2", "BOB", "S2-BOB"},
		{"three parts", "S3", "Mary Jane Watson", "S3-MARY-JANE-WATSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveQRCode(tt.schoolID, tt.student); got != tt.want {
				t.Errorf("DeriveQRCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddStudentValidation(t *testing.T) {
	tests := []struct {
		name      string
		draft     StudentDraft
		wantField string
	}{
		{"missing name", StudentDraft{Email: "a@b.co", Class: "5A", SchoolID: "S1"}, "name"},
		{"missing email", StudentDraft{Name: "Ann", Class: "5A", SchoolID: "S1"}, "email"},
		{"bad email", StudentDraft{Name: "Ann", Email: "not-an-email", Class: "5A", SchoolID: "S1"}, "email"},
		{"email missing tld", StudentDraft{Name: "Ann", Email: "ann@host", Class: "5A", SchoolID: "S1"}, "email"},
		{"missing class", StudentDraft{Name: "Ann", Email: "a@b.co", SchoolID: "S1"}, "class"},
		{"missing school id", StudentDraft{Name: "Ann", Email: "a@b.co", Class: "5A"}, "schoolId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New(nil, "teacher123")
			_, err := reg.AddStudent(tt.draft)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("AddStudent() error = %v, want ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("ValidationError.Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestAddStudentDerivesQRCode(t *testing.T) {
	reg := New(nil, "teacher123")
	s, err := reg.AddStudent(StudentDraft{Name: "Ann Lee", Email: "ann@school.edu", Class: "5A", SchoolID: "S100"})
	if err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}
	if s.QRCode != "S100-ANN-LEE" {
		t.Errorf("QRCode = %q, want %q", s.QRCode, "S100-ANN-LEE")
	}
	if s.ID == "" {
		t.Error("AddStudent() did not assign an id")
	}
}

func TestDuplicateSchoolID(t *testing.T) {
	reg := New(nil, "teacher123")
	first, err := reg.AddStudent(StudentDraft{Name: "Ann Lee", Email: "ann@school.edu", Class: "5A", SchoolID: "S100"})
	if err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}

	_, err = reg.AddStudent(StudentDraft{Name: "Bob Ray", Email: "bob@school.edu", Class: "5B", SchoolID: "S100"})
	if !errors.Is(err, ErrDuplicateSchoolID) {
		t.Fatalf("AddStudent() with taken school id: error = %v, want ErrDuplicateSchoolID", err)
	}

	// Editing a student keeping its own school id must succeed.
	updated, err := reg.UpdateStudent(first.ID, StudentDraft{Name: "Ann B Lee", Email: "ann@school.edu", Class: "5A", SchoolID: "S100"})
	if err != nil {
		t.Fatalf("UpdateStudent() keeping own school id: error = %v", err)
	}
	if updated.QRCode != "S100-ANN-B-LEE" {
		t.Errorf("UpdateStudent() QRCode = %q, want re-derived %q", updated.QRCode, "S100-ANN-B-LEE")
	}

	// Editing a student onto another student's school id must fail.
	second, err := reg.AddStudent(StudentDraft{Name: "Bob Ray", Email: "bob@school.edu", Class: "5B", SchoolID: "S200"})
	if err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}
	_, err = reg.UpdateStudent(second.ID, StudentDraft{Name: "Bob Ray", Email: "bob@school.edu", Class: "5B", SchoolID: "S100"})
	if !errors.Is(err, ErrDuplicateSchoolID) {
		t.Errorf("UpdateStudent() onto taken school id: error = %v, want ErrDuplicateSchoolID", err)
	}
}

type recordingPurger struct {
	purged []string
}

func (p *recordingPurger) RemoveRecordsForStudent(studentID string) int {
	p.purged = append(p.purged, studentID)
	return 1
}

func TestRemoveStudentCascades(t *testing.T) {
	purger := &recordingPurger{}
	reg := New(purger, "teacher123")
	s, err := reg.AddStudent(StudentDraft{Name: "Ann Lee", Email: "ann@school.edu", Class: "5A", SchoolID: "S100"})
	if err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}

	if _, err := reg.RemoveStudent(s.ID); err != nil {
		t.Fatalf("RemoveStudent() error = %v", err)
	}
	if len(purger.purged) != 1 || purger.purged[0] != s.ID {
		t.Errorf("purged = %v, want [%s]", purger.purged, s.ID)
	}
	if _, err := reg.StudentByID(s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("StudentByID() after remove: error = %v, want ErrNotFound", err)
	}

	if _, err := reg.RemoveStudent("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveStudent(missing) error = %v, want ErrNotFound", err)
	}
	if len(purger.purged) != 1 {
		t.Error("RemoveStudent(missing) must not purge anything")
	}
}

func TestAddTeacherDefaultPassword(t *testing.T) {
	reg := New(nil, "teacher123")
	tch, err := reg.AddTeacher(TeacherDraft{Name: "Mr Smith", Email: "smith@school.edu"})
	if err != nil {
		t.Fatalf("AddTeacher() error = %v", err)
	}
	if tch.Password != "teacher123" || !tch.IsDefaultPassword {
		t.Errorf("new teacher = %+v, want default password with flag set", tch)
	}

	withPass, err := reg.AddTeacher(TeacherDraft{Name: "Ms Doe", Email: "doe@school.edu", Password: "ownpass"})
	if err != nil {
		t.Fatalf("AddTeacher() error = %v", err)
	}
	if withPass.Password != "ownpass" || withPass.IsDefaultPassword {
		t.Errorf("teacher with own password = %+v, want flag clear", withPass)
	}

	if err := reg.SetTeacherPassword(tch.ID, "newsecret"); err != nil {
		t.Fatalf("SetTeacherPassword() error = %v", err)
	}
	got, _ := reg.TeacherByID(tch.ID)
	if got.Password != "newsecret" || got.IsDefaultPassword {
		t.Errorf("after SetTeacherPassword: %+v, want new password and flag clear", got)
	}
}

func TestTeacherEmailNotUnique(t *testing.T) {
	// Teacher email uniqueness is deliberately unconstrained.
	reg := New(nil, "teacher123")
	if _, err := reg.AddTeacher(TeacherDraft{Name: "A", Email: "shared@school.edu"}); err != nil {
		t.Fatalf("AddTeacher() error = %v", err)
	}
	if _, err := reg.AddTeacher(TeacherDraft{Name: "B", Email: "shared@school.edu"}); err != nil {
		t.Errorf("AddTeacher() with duplicate email: error = %v, want nil", err)
	}
}

func TestLoadReplacesCollections(t *testing.T) {
	reg := New(nil, "teacher123")
	if _, err := reg.AddStudent(StudentDraft{Name: "Old", Email: "old@school.edu", Class: "1", SchoolID: "S1"}); err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}

	reg.Load([]Student{{ID: "x", Name: "New", Email: "new@school.edu", Class: "2", SchoolID: "S2", QRCode: "S2-NEW"}}, nil)

	students := reg.Students()
	if len(students) != 1 || students[0].ID != "x" {
		t.Errorf("Students() after Load = %+v, want exactly the snapshot", students)
	}
}
