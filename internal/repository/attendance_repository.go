package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-attendance-api/internal/models"
	"github.com/noah-isme/school-attendance-api/pkg/database"
)

const attendanceEntryFrom = `FROM attendance_records ar
JOIN students st ON st.id = ar.student_id
JOIN assignments a ON a.id = ar.assignment_id
JOIN subjects sub ON sub.id = a.subject_id
JOIN teachers t ON t.id = a.teacher_id
JOIN class_groups g ON g.id = a.group_id
JOIN time_slots ts ON ts.id = a.time_slot_id`

const attendanceEntryColumns = `ar.id, ar.student_id, ar.assignment_id, ar.date, ar.status, ar.recorded_at, ar.notes,
       st.full_name AS student_name, st.enrollment_number, a.group_id, g.name AS group_name,
       sub.name AS subject_name, t.full_name AS teacher_name, ts.start_time, ts.end_time`

// AttendanceRepository persists the attendance ledger.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

type upsertedAttendance struct {
	models.AttendanceRecord
	Created bool `db:"created"`
}

// Upsert writes the mark for (student, assignment, date) in one statement. An
// existing row keeps its id and has status, time and notes overwritten. The
// boolean reports whether a new row was inserted.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	const query = `INSERT INTO attendance_records (id, student_id, assignment_id, date, status, recorded_at, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT ON CONSTRAINT attendance_records_key
DO UPDATE SET status = EXCLUDED.status, recorded_at = EXCLUDED.recorded_at, notes = EXCLUDED.notes
RETURNING id, student_id, assignment_id, date, status, recorded_at, notes, (xmax = 0) AS created`
	var stored upsertedAttendance
	if err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.StudentID, record.AssignmentID, record.Date, record.Status, record.RecordedAt, record.Notes,
	); err != nil {
		return nil, false, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored.AttendanceRecord, stored.Created, nil
}

// List returns one page of ledger entries, newest date first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceEntry, int, error) {
	where, args := attendanceConditions(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY ar.date DESC, st.full_name ASC, ar.id ASC LIMIT %d OFFSET %d`,
		attendanceEntryColumns, attendanceEntryFrom, where, size, offset)
	var entries []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) %s WHERE %s`, attendanceEntryFrom, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return entries, total, nil
}

// Stream scans matching entries one at a time and hands each to fn. Returning
// an error from fn stops the iteration and is returned as is.
func (r *AttendanceRepository) Stream(ctx context.Context, filter models.AttendanceFilter, fn func(models.AttendanceEntry) error) error {
	where, args := attendanceConditions(filter)
	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY ar.date DESC, st.full_name ASC, ar.id ASC`,
		attendanceEntryColumns, attendanceEntryFrom, where)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("stream attendance: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry models.AttendanceEntry
		if err := rows.StructScan(&entry); err != nil {
			return fmt.Errorf("scan attendance: %w", err)
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate attendance: %w", err)
	}
	return nil
}

// Roster reads an assignment and the active students of its group with the
// mark each already has on date. It returns sql.ErrNoRows for an unknown
// assignment.
func (r *AttendanceRepository) Roster(ctx context.Context, assignmentID string, date models.Date) (*models.ClassRoster, error) {
	roster := &models.ClassRoster{Date: date}
	err := database.ReadOnly(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &roster.Assignment, assignmentDetailSelect+` WHERE a.id = $1`, assignmentID); err != nil {
			return fmt.Errorf("roster assignment: %w", err)
		}
		const query = `SELECT st.id AS student_id, st.full_name, st.enrollment_number, ar.status, ar.recorded_at
FROM students st
LEFT JOIN attendance_records ar ON ar.student_id = st.id AND ar.assignment_id = $2 AND ar.date = $3
WHERE st.group_id = $1 AND st.active
ORDER BY st.full_name ASC, st.id ASC`
		if err := tx.SelectContext(ctx, &roster.Students, query, roster.Assignment.GroupID, assignmentID, date); err != nil {
			return fmt.Errorf("roster students: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roster, nil
}

func attendanceConditions(filter models.AttendanceFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("a.group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.AssignmentID != "" {
		conditions = append(conditions, fmt.Sprintf("ar.assignment_id = $%d", len(args)+1))
		args = append(args, filter.AssignmentID)
	}
	if !filter.Date.IsZero() {
		conditions = append(conditions, fmt.Sprintf("ar.date = $%d", len(args)+1))
		args = append(args, filter.Date)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("ar.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	return strings.Join(conditions, " AND "), args
}
