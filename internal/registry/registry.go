package registry

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Student is a registered student. QRCode is derived from SchoolID and
// Name and is unique because SchoolID is unique.
type Student struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Class    string `json:"class"`
	SchoolID string `json:"schoolId"`
	QRCode   string `json:"qrCode"`
}

// Teacher is a staff account. Password is stored as given; the demo
// credential scheme is preserved from the source system.
type Teacher struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	IsDefaultPassword bool   `json:"isDefaultPassword"`
}

// StudentDraft carries the admin-entered fields for a student.
type StudentDraft struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Class    string `json:"class"`
	SchoolID string `json:"schoolId"`
}

// TeacherDraft carries the admin-entered fields for a teacher.
type TeacherDraft struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ErrDuplicateSchoolID reports a school ID collision between students.
var ErrDuplicateSchoolID = errors.New("school id already taken")

// ErrNotFound reports a lookup miss by id or email.
var ErrNotFound = errors.New("not found")

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RecordPurger removes all attendance records for a deleted student.
// The ledger satisfies this; the registry calls it on student removal
// so no record outlives its student.
type RecordPurger interface {
	RemoveRecordsForStudent(studentID string) int
}

// Registry holds the student and teacher collections. All mutations
// take the write lock, so each add/update/remove is atomic with
// respect to the others.
type Registry struct {
	mu       sync.RWMutex
	students []Student
	teachers []Teacher
	purger   RecordPurger

	defaultTeacherPassword string
}

// New creates an empty registry. purger may be nil when no ledger is
// attached (e.g. in isolated tests). defaultTeacherPassword is issued
// to newly created teachers until they change it.
func New(purger RecordPurger, defaultTeacherPassword string) *Registry {
	return &Registry{purger: purger, defaultTeacherPassword: defaultTeacherPassword}
}

// DeriveQRCode builds the attendance token for a student:
// the school ID, a dash, and the name upper-cased with whitespace
// runs collapsed to dashes.
func DeriveQRCode(schoolID, name string) string {
	return schoolID + "-" + strings.ToUpper(strings.Join(strings.Fields(name), "-"))
}

func validateStudentDraft(d StudentDraft) error {
	if strings.TrimSpace(d.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if strings.TrimSpace(d.Email) == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRe.MatchString(d.Email) {
		return &ValidationError{Field: "email", Message: "invalid email address"}
	}
	if strings.TrimSpace(d.Class) == "" {
		return &ValidationError{Field: "class", Message: "class is required"}
	}
	if strings.TrimSpace(d.SchoolID) == "" {
		return &ValidationError{Field: "schoolId", Message: "school id is required"}
	}
	return nil
}

func validateTeacherDraft(d TeacherDraft) error {
	if strings.TrimSpace(d.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if strings.TrimSpace(d.Email) == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRe.MatchString(d.Email) {
		return &ValidationError{Field: "email", Message: "invalid email address"}
	}
	return nil
}

// schoolIDTaken reports whether another student (excluding excludeID)
// already holds this school ID. Caller must hold the lock.
func (r *Registry) schoolIDTaken(schoolID, excludeID string) bool {
	for _, s := range r.students {
		if s.SchoolID == schoolID && s.ID != excludeID {
			return true
		}
	}
	return false
}

// AddStudent validates the draft, enforces school ID uniqueness, and
// stores a new student with a derived QR code.
func (r *Registry) AddStudent(d StudentDraft) (Student, error) {
	if err := validateStudentDraft(d); err != nil {
		return Student{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.schoolIDTaken(d.SchoolID, "") {
		return Student{}, ErrDuplicateSchoolID
	}
	s := Student{
		ID:       uuid.NewString(),
		Name:     d.Name,
		Email:    d.Email,
		Class:    d.Class,
		SchoolID: d.SchoolID,
		QRCode:   DeriveQRCode(d.SchoolID, d.Name),
	}
	r.students = append(r.students, s)
	return s, nil
}

// UpdateStudent replaces the editable fields of an existing student.
// The uniqueness check excludes the student being edited, and the QR
// code is re-derived so token and identity never drift apart.
func (r *Registry) UpdateStudent(id string, d StudentDraft) (Student, error) {
	if err := validateStudentDraft(d); err != nil {
		return Student{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.schoolIDTaken(d.SchoolID, id) {
		return Student{}, ErrDuplicateSchoolID
	}
	for i := range r.students {
		if r.students[i].ID == id {
			r.students[i].Name = d.Name
			r.students[i].Email = d.Email
			r.students[i].Class = d.Class
			r.students[i].SchoolID = d.SchoolID
			r.students[i].QRCode = DeriveQRCode(d.SchoolID, d.Name)
			return r.students[i], nil
		}
	}
	return Student{}, ErrNotFound
}

// RemoveStudent deletes a student and purges every attendance record
// that references it.
func (r *Registry) RemoveStudent(id string) (Student, error) {
	r.mu.Lock()
	var removed Student
	found := false
	for i := range r.students {
		if r.students[i].ID == id {
			removed = r.students[i]
			r.students = append(r.students[:i], r.students[i+1:]...)
			found = true
			break
		}
	}
	r.mu.Unlock()
	if !found {
		return Student{}, ErrNotFound
	}
	if r.purger != nil {
		r.purger.RemoveRecordsForStudent(id)
	}
	return removed, nil
}

// StudentByID returns the student with the given id.
func (r *Registry) StudentByID(id string) (Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.students {
		if s.ID == id {
			return s, nil
		}
	}
	return Student{}, ErrNotFound
}

// StudentByEmail returns the student with the given email.
func (r *Registry) StudentByEmail(email string) (Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.students {
		if s.Email == email {
			return s, nil
		}
	}
	return Student{}, ErrNotFound
}

// Students returns a copy of the student collection in insertion order.
func (r *Registry) Students() []Student {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Student, len(r.students))
	copy(out, r.students)
	return out
}

// StudentCount returns the number of registered students.
func (r *Registry) StudentCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.students)
}

// AddTeacher validates the draft and stores a new teacher. When the
// draft carries no password the configured default is issued and the
// account is flagged until it is changed. Teacher emails are not
// required to be unique.
func (r *Registry) AddTeacher(d TeacherDraft) (Teacher, error) {
	if err := validateTeacherDraft(d); err != nil {
		return Teacher{}, err
	}
	t := Teacher{
		ID:    uuid.NewString(),
		Name:  d.Name,
		Email: d.Email,
	}
	if d.Password == "" {
		t.Password = r.defaultTeacherPassword
		t.IsDefaultPassword = true
	} else {
		t.Password = d.Password
	}
	r.mu.Lock()
	r.teachers = append(r.teachers, t)
	r.mu.Unlock()
	return t, nil
}

// UpdateTeacher replaces the name and email of an existing teacher.
// The password is managed through the session resolver, not here.
func (r *Registry) UpdateTeacher(id string, d TeacherDraft) (Teacher, error) {
	if err := validateTeacherDraft(d); err != nil {
		return Teacher{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.teachers {
		if r.teachers[i].ID == id {
			r.teachers[i].Name = d.Name
			r.teachers[i].Email = d.Email
			return r.teachers[i], nil
		}
	}
	return Teacher{}, ErrNotFound
}

// RemoveTeacher deletes a teacher. Attendance records it marked are
// kept; MarkedBy is a historical snapshot, not a reference.
func (r *Registry) RemoveTeacher(id string) (Teacher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.teachers {
		if r.teachers[i].ID == id {
			removed := r.teachers[i]
			r.teachers = append(r.teachers[:i], r.teachers[i+1:]...)
			return removed, nil
		}
	}
	return Teacher{}, ErrNotFound
}

// TeacherByID returns the teacher with the given id.
func (r *Registry) TeacherByID(id string) (Teacher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.teachers {
		if t.ID == id {
			return t, nil
		}
	}
	return Teacher{}, ErrNotFound
}

// TeacherByEmail returns the first teacher with the given email.
func (r *Registry) TeacherByEmail(email string) (Teacher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.teachers {
		if t.Email == email {
			return t, nil
		}
	}
	return Teacher{}, ErrNotFound
}

// Teachers returns a copy of the teacher collection in insertion order.
func (r *Registry) Teachers() []Teacher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Teacher, len(r.teachers))
	copy(out, r.teachers)
	return out
}

// SetTeacherPassword stores a new password and clears the default
// password flag. Validation happens in the session resolver.
func (r *Registry) SetTeacherPassword(id, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.teachers {
		if r.teachers[i].ID == id {
			r.teachers[i].Password = password
			r.teachers[i].IsDefaultPassword = false
			return nil
		}
	}
	return ErrNotFound
}

// Load replaces both collections with a persisted snapshot.
func (r *Registry) Load(students []Student, teachers []Teacher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.students = append([]Student(nil), students...)
	r.teachers = append([]Teacher(nil), teachers...)
}
