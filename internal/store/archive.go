package store

import (
	"context"
	"database/sql"
	"fmt"

	"schoolattend/internal/ledger"
)

// Archive keeps a durable copy of admitted attendance records in
// Postgres. The in-memory ledger stays authoritative; the archive is
// written fire-and-forget by the worker and only read for reporting.
type Archive struct {
	db *sql.DB
}

// NewArchive creates an archive over the given connection.
func NewArchive(db *sql.DB) *Archive {
	return &Archive{db: db}
}

// EnsureSchema creates the archive table when it does not exist yet.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS attendance_archive (
			id TEXT PRIMARY KEY,
			student_id TEXT NOT NULL,
			student_name TEXT NOT NULL,
			marked_on TEXT NOT NULL,
			marked_at TEXT NOT NULL,
			marked_by TEXT NOT NULL
		)
	`)
	return err
}

// Insert stores one admitted record. A replayed queue message hits the
// primary key conflict and is ignored.
func (a *Archive) Insert(ctx context.Context, rec ledger.Record) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO attendance_archive (id, student_id, student_name, marked_on, marked_at, marked_by)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, rec.StudentID, rec.StudentName, rec.Date, rec.Time, rec.MarkedBy)
	return err
}

// List returns archived records with basic filters.
func (a *Archive) List(ctx context.Context, studentID, date string, limit, offset int) ([]ledger.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, student_id, student_name, marked_on, marked_at, marked_by FROM attendance_archive`
	args := []any{}
	clauses := []string{}
	if studentID != "" {
		clauses = append(clauses, "student_id = $"+itoa(len(args)+1))
		args = append(args, studentID)
	}
	if date != "" {
		clauses = append(clauses, "marked_on = $"+itoa(len(args)+1))
		args = append(args, date)
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += " ORDER BY marked_on DESC, marked_at DESC LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ledger.Record
	for rows.Next() {
		var rec ledger.Record
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.StudentName, &rec.Date, &rec.Time, &rec.MarkedBy); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// RemoveForStudent mirrors the ledger's cascade delete in the archive.
func (a *Archive) RemoveForStudent(ctx context.Context, studentID string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM attendance_archive WHERE student_id = $1`, studentID)
	return err
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
