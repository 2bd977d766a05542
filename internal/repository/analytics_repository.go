package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/school-attendance-api/internal/models"
	"github.com/noah-isme/school-attendance-api/pkg/database"
)

const statusCounts = `COUNT(ar.id) FILTER (WHERE ar.status = 'present') AS present,
       COUNT(ar.id) FILTER (WHERE ar.status = 'absent') AS absent,
       COUNT(ar.id) FILTER (WHERE ar.status = 'excused') AS excused`

// AnalyticsRepository reads raw attendance tallies. It never writes and
// leaves percentages and ordering to the caller.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository constructs the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// StudentSnapshot reads the totals, per-class tallies and latest history of a
// student within the window.
func (r *AnalyticsRepository) StudentSnapshot(ctx context.Context, studentID string, window models.DateRange, historyLimit int) (*models.StudentSnapshot, error) {
	snapshot := &models.StudentSnapshot{}
	err := database.ReadOnly(ctx, r.db, func(tx *sqlx.Tx) error {
		studentQuery := `SELECT st.id AS student_id, st.full_name AS student_name, st.enrollment_number, st.group_id, g.name AS group_name,
       ` + statusCounts + `
FROM students st
LEFT JOIN class_groups g ON g.id = st.group_id
LEFT JOIN attendance_records ar ON ar.student_id = st.id AND ar.date BETWEEN $2 AND $3
WHERE st.id = $1
GROUP BY st.id, g.name`
		if err := tx.GetContext(ctx, &snapshot.Student, studentQuery, studentID, window.From, window.To); err != nil {
			return fmt.Errorf("student totals: %w", err)
		}

		subjectQuery := `SELECT a.id AS assignment_id, sub.name AS subject_name, t.full_name AS teacher_name,
       ` + statusCounts + `
FROM attendance_records ar
JOIN assignments a ON a.id = ar.assignment_id
JOIN subjects sub ON sub.id = a.subject_id
JOIN teachers t ON t.id = a.teacher_id
WHERE ar.student_id = $1 AND ar.date BETWEEN $2 AND $3
GROUP BY a.id, sub.name, t.full_name`
		if err := tx.SelectContext(ctx, &snapshot.Subjects, subjectQuery, studentID, window.From, window.To); err != nil {
			return fmt.Errorf("student subjects: %w", err)
		}

		historyQuery := fmt.Sprintf(`SELECT %s %s
WHERE ar.student_id = $1 AND ar.date BETWEEN $2 AND $3
ORDER BY ar.date DESC, ts.start_time DESC LIMIT %d`, attendanceEntryColumns, attendanceEntryFrom, historyLimit)
		if err := tx.SelectContext(ctx, &snapshot.History, historyQuery, studentID, window.From, window.To); err != nil {
			return fmt.Errorf("student history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// GroupSnapshot reads the totals of a group and of each of its active students.
func (r *AnalyticsRepository) GroupSnapshot(ctx context.Context, groupID string, window models.DateRange) (*models.GroupSnapshot, error) {
	snapshot := &models.GroupSnapshot{}
	err := database.ReadOnly(ctx, r.db, func(tx *sqlx.Tx) error {
		groupQuery := `SELECT g.id AS group_id, g.name AS group_name,
       ` + statusCounts + `
FROM class_groups g
LEFT JOIN assignments a ON a.group_id = g.id
LEFT JOIN attendance_records ar ON ar.assignment_id = a.id AND ar.date BETWEEN $2 AND $3
WHERE g.id = $1
GROUP BY g.id, g.name`
		if err := tx.GetContext(ctx, &snapshot.Group, groupQuery, groupID, window.From, window.To); err != nil {
			return fmt.Errorf("group totals: %w", err)
		}

		studentsQuery := `SELECT st.id AS student_id, st.full_name AS student_name, st.enrollment_number, st.group_id, g.name AS group_name,
       ` + statusCounts + `
FROM students st
JOIN class_groups g ON g.id = st.group_id
LEFT JOIN attendance_records ar ON ar.student_id = st.id AND ar.date BETWEEN $2 AND $3
WHERE st.group_id = $1 AND st.active
GROUP BY st.id, g.name
ORDER BY st.full_name ASC`
		if err := tx.SelectContext(ctx, &snapshot.Students, studentsQuery, groupID, window.From, window.To); err != nil {
			return fmt.Errorf("group students: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// DailyCounts tallies marks per date inside the window.
func (r *AnalyticsRepository) DailyCounts(ctx context.Context, window models.DateRange) ([]models.DailyCounts, error) {
	query := `SELECT ar.date, ` + statusCounts + `
FROM attendance_records ar
WHERE ar.date BETWEEN $1 AND $2
GROUP BY ar.date
ORDER BY ar.date DESC`
	var rows []models.DailyCounts
	if err := r.db.SelectContext(ctx, &rows, query, window.From, window.To); err != nil {
		return nil, fmt.Errorf("daily counts: %w", err)
	}
	return rows, nil
}

// GroupCounts tallies marks per group inside the window, including groups
// without marks.
func (r *AnalyticsRepository) GroupCounts(ctx context.Context, window models.DateRange) ([]models.GroupCounts, error) {
	query := `SELECT g.id AS group_id, g.name AS group_name, ` + statusCounts + `
FROM class_groups g
LEFT JOIN assignments a ON a.group_id = g.id
LEFT JOIN attendance_records ar ON ar.assignment_id = a.id AND ar.date BETWEEN $1 AND $2
GROUP BY g.id, g.name`
	var rows []models.GroupCounts
	if err := r.db.SelectContext(ctx, &rows, query, window.From, window.To); err != nil {
		return nil, fmt.Errorf("group counts: %w", err)
	}
	return rows, nil
}

// StudentCounts tallies marks of active students with at least minimumAbsences
// absences inside the window, optionally restricted to one group. Students
// without marks are kept, so a zero minimum returns every active student.
func (r *AnalyticsRepository) StudentCounts(ctx context.Context, window models.DateRange, minimumAbsences int, groupID string) ([]models.StudentCounts, error) {
	args := []interface{}{window.From, window.To, minimumAbsences}
	where := "st.active"
	if groupID != "" {
		args = append(args, groupID)
		where += fmt.Sprintf(" AND st.group_id = $%d", len(args))
	}
	query := fmt.Sprintf(`SELECT st.id AS student_id, st.full_name AS student_name, st.enrollment_number, st.group_id, g.name AS group_name,
       %s
FROM students st
LEFT JOIN class_groups g ON g.id = st.group_id
LEFT JOIN attendance_records ar ON ar.student_id = st.id AND ar.date BETWEEN $1 AND $2
WHERE %s
GROUP BY st.id, g.name
HAVING COUNT(ar.id) FILTER (WHERE ar.status = 'absent') >= $3`, statusCounts, where)
	var rows []models.StudentCounts
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("student counts: %w", err)
	}
	return rows, nil
}

type assignmentActivityRow struct {
	models.AssignmentActivity
	Dates pq.StringArray `db:"registered_dates"`
}

const assignmentActivitySelect = `SELECT a.id AS assignment_id, a.teacher_id, t.full_name AS teacher_name, sub.name AS subject_name, g.name AS group_name,
       ts.weekday, ts.start_time, ts.end_time, a.created_at,
       COALESCE(array_agg(DISTINCT to_char(ar.date, 'YYYY-MM-DD')) FILTER (WHERE ar.id IS NOT NULL), '{}') AS registered_dates
FROM assignments a
JOIN teachers t ON t.id = a.teacher_id
JOIN subjects sub ON sub.id = a.subject_id
JOIN class_groups g ON g.id = a.group_id
JOIN time_slots ts ON ts.id = a.time_slot_id
LEFT JOIN attendance_records ar ON ar.assignment_id = a.id AND ar.date BETWEEN $1 AND $2`

const assignmentActivityGroup = `
GROUP BY a.id, t.full_name, sub.name, g.name, ts.weekday, ts.start_time, ts.end_time
ORDER BY t.full_name ASC, ts.weekday ASC, ts.start_time ASC`

// TeacherActivity returns the teacher's name and the registration dates of
// each of their assignments inside the window.
func (r *AnalyticsRepository) TeacherActivity(ctx context.Context, teacherID string, window models.DateRange) (string, []models.AssignmentActivity, error) {
	var (
		name       string
		activities []models.AssignmentActivity
	)
	err := database.ReadOnly(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &name, `SELECT full_name FROM teachers WHERE id = $1`, teacherID); err != nil {
			return fmt.Errorf("teacher name: %w", err)
		}
		var rows []assignmentActivityRow
		query := assignmentActivitySelect + "\nWHERE a.teacher_id = $3" + assignmentActivityGroup
		if err := tx.SelectContext(ctx, &rows, query, window.From, window.To, teacherID); err != nil {
			return fmt.Errorf("teacher activity: %w", err)
		}
		var convErr error
		activities, convErr = toActivities(rows)
		return convErr
	})
	if err != nil {
		return "", nil, err
	}
	return name, activities, nil
}

// AllActivity returns the registration dates of every assignment inside the window.
func (r *AnalyticsRepository) AllActivity(ctx context.Context, window models.DateRange) ([]models.AssignmentActivity, error) {
	var rows []assignmentActivityRow
	if err := r.db.SelectContext(ctx, &rows, assignmentActivitySelect+assignmentActivityGroup, window.From, window.To); err != nil {
		return nil, fmt.Errorf("assignment activity: %w", err)
	}
	return toActivities(rows)
}

func toActivities(rows []assignmentActivityRow) ([]models.AssignmentActivity, error) {
	activities := make([]models.AssignmentActivity, 0, len(rows))
	for _, row := range rows {
		activity := row.AssignmentActivity
		activity.RegisteredDates = make([]models.Date, 0, len(row.Dates))
		for _, raw := range row.Dates {
			d, err := models.ParseDate(raw)
			if err != nil {
				return nil, fmt.Errorf("parse registered date %q: %w", raw, err)
			}
			activity.RegisteredDates = append(activity.RegisteredDates, d)
		}
		activities = append(activities, activity)
	}
	return activities, nil
}

// ScheduledClasses returns the assignments meeting on weekday together with
// the number of marks and the earliest registration time on date.
func (r *AnalyticsRepository) ScheduledClasses(ctx context.Context, date models.Date, weekday models.Weekday) ([]models.ScheduledClass, error) {
	const query = `SELECT a.id AS assignment_id, a.teacher_id, t.full_name AS teacher_name, sub.name AS subject_name,
       a.group_id, g.name AS group_name, a.time_slot_id, ts.start_time, ts.end_time,
       COUNT(ar.id) AS marks, MIN(ar.recorded_at) AS first_recorded_at
FROM assignments a
JOIN teachers t ON t.id = a.teacher_id
JOIN subjects sub ON sub.id = a.subject_id
JOIN class_groups g ON g.id = a.group_id
JOIN time_slots ts ON ts.id = a.time_slot_id
LEFT JOIN attendance_records ar ON ar.assignment_id = a.id AND ar.date = $1
WHERE ts.weekday = $2
GROUP BY a.id, t.full_name, sub.name, g.name, ts.start_time, ts.end_time
ORDER BY ts.start_time ASC, g.name ASC`
	var rows []models.ScheduledClass
	if err := r.db.SelectContext(ctx, &rows, query, date, weekday); err != nil {
		return nil, fmt.Errorf("scheduled classes: %w", err)
	}
	return rows, nil
}

// DailyHeadcount counts distinct students per status on date.
func (r *AnalyticsRepository) DailyHeadcount(ctx context.Context, date models.Date) (*models.DailyHeadcount, error) {
	const query = `SELECT (SELECT COUNT(*) FROM students WHERE active) AS active_students,
       COUNT(DISTINCT ar.student_id) FILTER (WHERE ar.status = 'present') AS present,
       COUNT(DISTINCT ar.student_id) FILTER (WHERE ar.status = 'absent') AS absent,
       COUNT(DISTINCT ar.student_id) FILTER (WHERE ar.status = 'excused') AS excused
FROM attendance_records ar
WHERE ar.date = $1`
	var headcount models.DailyHeadcount
	if err := r.db.GetContext(ctx, &headcount, query, date); err != nil {
		return nil, fmt.Errorf("daily headcount: %w", err)
	}
	return &headcount, nil
}

// AlertCounts reads the three alert tallies for date in one statement.
func (r *AnalyticsRepository) AlertCounts(ctx context.Context, date models.Date, weekday models.Weekday, absenceWindow models.DateRange, absenceLimit int) (*models.AlertCounts, error) {
	const query = `SELECT
  (SELECT COUNT(*) FROM (
      SELECT ar.student_id FROM attendance_records ar
      WHERE ar.status = 'absent' AND ar.date BETWEEN $1 AND $2
      GROUP BY ar.student_id HAVING COUNT(*) >= $3) over_limit) AS students_over_limit,
  (SELECT COUNT(DISTINCT a.teacher_id) FROM assignments a
      JOIN time_slots ts ON ts.id = a.time_slot_id
      WHERE ts.weekday = $4
        AND NOT EXISTS (SELECT 1 FROM attendance_records ar WHERE ar.assignment_id = a.id AND ar.date = $5)) AS teachers_pending,
  (SELECT COUNT(*) FROM (
      SELECT a.group_id FROM attendance_records ar
      JOIN assignments a ON a.id = ar.assignment_id
      WHERE ar.date = $5
      GROUP BY a.group_id
      HAVING COUNT(*) FILTER (WHERE ar.status = 'absent') = 0
         AND COUNT(*) FILTER (WHERE ar.status = 'present') > 0) perfect) AS perfect_groups`
	var counts models.AlertCounts
	if err := r.db.GetContext(ctx, &counts, query, absenceWindow.From, absenceWindow.To, absenceLimit, weekday, date); err != nil {
		return nil, fmt.Errorf("alert counts: %w", err)
	}
	return &counts, nil
}

// RegistrationHistory reads the assignments matching the filters and their
// per-date ledger activity inside the window, from one snapshot.
func (r *AnalyticsRepository) RegistrationHistory(ctx context.Context, window models.DateRange, teacherID, groupID string) ([]models.HistoryClass, []models.ClassRegistration, error) {
	var (
		classes       []models.HistoryClass
		registrations []models.ClassRegistration
	)
	err := database.ReadOnly(ctx, r.db, func(tx *sqlx.Tx) error {
		where, args := historyConditions(nil, teacherID, groupID)
		classQuery := `SELECT a.id AS assignment_id, a.teacher_id, t.full_name AS teacher_name, sub.name AS subject_name,
       a.group_id, g.name AS group_name, ts.weekday, ts.start_time, ts.end_time, a.created_at,
       (SELECT COUNT(*) FROM students st WHERE st.group_id = a.group_id AND st.active) AS students
FROM assignments a
JOIN teachers t ON t.id = a.teacher_id
JOIN subjects sub ON sub.id = a.subject_id
JOIN class_groups g ON g.id = a.group_id
JOIN time_slots ts ON ts.id = a.time_slot_id
WHERE ` + where + `
ORDER BY ts.start_time ASC, g.name ASC, a.id ASC`
		if err := tx.SelectContext(ctx, &classes, classQuery, args...); err != nil {
			return fmt.Errorf("history classes: %w", err)
		}

		where, args = historyConditions([]interface{}{window.From, window.To}, teacherID, groupID)
		registrationQuery := `SELECT ar.assignment_id, ar.date, MIN(ar.recorded_at) AS first_recorded_at,
       ` + statusCounts + `
FROM attendance_records ar
JOIN assignments a ON a.id = ar.assignment_id
WHERE ar.date BETWEEN $1 AND $2 AND ` + where + `
GROUP BY ar.assignment_id, ar.date`
		if err := tx.SelectContext(ctx, &registrations, registrationQuery, args...); err != nil {
			return fmt.Errorf("history registrations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return classes, registrations, nil
}

// historyConditions appends the optional teacher and group filters to args.
func historyConditions(args []interface{}, teacherID, groupID string) (string, []interface{}) {
	conditions := []string{"1=1"}
	if teacherID != "" {
		args = append(args, teacherID)
		conditions = append(conditions, fmt.Sprintf("a.teacher_id = $%d", len(args)))
	}
	if groupID != "" {
		args = append(args, groupID)
		conditions = append(conditions, fmt.Sprintf("a.group_id = $%d", len(args)))
	}
	return strings.Join(conditions, " AND "), args
}
