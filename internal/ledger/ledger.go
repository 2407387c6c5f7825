package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is a single admitted attendance mark. StudentName is a
// snapshot taken at mark time so history survives a later rename.
// Records are never mutated after admission.
type Record struct {
	ID          string `json:"id"`
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Date        string `json:"date"` // YYYY-MM-DD
	Time        string `json:"time"` // HH:MM:SS
	MarkedBy    string `json:"markedBy"`
}

// Ledger is the append-only attendance collection. It admits at most
// one record per student per calendar day; the duplicate check and the
// insert run as one step under the lock, so concurrent marks for the
// same student cannot both be admitted.
type Ledger struct {
	mu      sync.RWMutex
	records []Record
	marked  map[string]int // studentID+"|"+date -> index into records

	schoolDays int
}

// New creates an empty ledger. schoolDays is the externally supplied
// school-year length used for absence statistics.
func New(schoolDays int) *Ledger {
	return &Ledger{marked: make(map[string]int), schoolDays: schoolDays}
}

// DateOf formats a timestamp as the ledger's calendar-day key.
func DateOf(now time.Time) string {
	return now.Format("2006-01-02")
}

func dayKey(studentID, date string) string {
	return studentID + "|" + date
}

// Mark admits an attendance record for the given student on the day of
// now. When the student is already marked for that day the existing
// record is returned and admitted is false; nothing is duplicated.
func (l *Ledger) Mark(studentID, studentName, markedBy string, now time.Time) (rec Record, admitted bool) {
	date := DateOf(now)
	l.mu.Lock()
	defer l.mu.Unlock()
	if i, ok := l.marked[dayKey(studentID, date)]; ok {
		return l.records[i], false
	}
	rec = Record{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		StudentName: studentName,
		Date:        date,
		Time:        now.Format("15:04:05"),
		MarkedBy:    markedBy,
	}
	l.marked[dayKey(studentID, date)] = len(l.records)
	l.records = append(l.records, rec)
	return rec, true
}

// RecordsForDate returns all records for an exact calendar day.
func (l *Ledger) RecordsForDate(date string) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Record
	for _, r := range l.records {
		if r.Date == date {
			out = append(out, r)
		}
	}
	return out
}

// RecordsForStudent returns a student's records in the order they were
// marked.
func (l *Ledger) RecordsForStudent(studentID string) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Record
	for _, r := range l.records {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out
}

// IsMarked reports whether the student already has a record for the
// given day.
func (l *Ledger) IsMarked(studentID, date string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.marked[dayKey(studentID, date)]
	return ok
}

// AttendanceRate returns present students on date as a percentage of
// totalStudents. A zero roster yields 0, not a division fault.
func (l *Ledger) AttendanceRate(date string, totalStudents int) float64 {
	if totalStudents == 0 {
		return 0
	}
	return float64(len(l.RecordsForDate(date))) / float64(totalStudents) * 100
}

// PresentDays counts the days a student was marked present.
func (l *Ledger) PresentDays(studentID string) int {
	return len(l.RecordsForStudent(studentID))
}

// AbsentDays counts days absent against the configured school-year
// length.
func (l *Ledger) AbsentDays(studentID string) int {
	return l.schoolDays - l.PresentDays(studentID)
}

// SchoolDays returns the configured school-year length.
func (l *Ledger) SchoolDays() int {
	return l.schoolDays
}

// RemoveRecordsForStudent deletes every record for the student and
// returns how many were removed. Called by the registry when a student
// is deleted so no record dangles.
func (l *Ledger) RemoveRecordsForStudent(studentID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.records[:0]
	removed := 0
	for _, r := range l.records {
		if r.StudentID == studentID {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	l.records = kept
	l.reindex()
	return removed
}

// Records returns a copy of the whole collection for snapshotting.
func (l *Ledger) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Load replaces the collection with a persisted snapshot.
func (l *Ledger) Load(records []Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append([]Record(nil), records...)
	l.reindex()
}

// reindex rebuilds the per-day admission index. Caller holds the lock.
func (l *Ledger) reindex() {
	l.marked = make(map[string]int, len(l.records))
	for i, r := range l.records {
		l.marked[dayKey(r.StudentID, r.Date)] = i
	}
}
