package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-attendance-api/internal/models"
)

var testWindow = models.WindowEnding(models.NewDate(2024, 3, 11), 7)

func TestAnalyticsRepositoryStudentSnapshotSingleTransaction(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students st")).
		WithArgs("student-1", "2024-03-04", "2024-03-11").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "student_name", "enrollment_number", "group_id", "group_name", "present", "absent", "excused"}).
			AddRow("student-1", "Ana", "A001", "group-1", "1A", 3, 1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY a.id, sub.name, t.full_name")).
		WithArgs("student-1", "2024-03-04", "2024-03-11").
		WillReturnRows(sqlmock.NewRows([]string{"assignment_id", "subject_name", "teacher_name", "present", "absent", "excused"}).
			AddRow("assignment-1", "Math", "Luis", 3, 1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY ar.date DESC, ts.start_time DESC LIMIT 50")).
		WithArgs("student-1", "2024-03-04", "2024-03-11").
		WillReturnRows(sqlmock.NewRows(attendanceEntryRowColumns))
	mock.ExpectCommit()

	snapshot, err := repo.StudentSnapshot(context.Background(), "student-1", testWindow, 50)
	require.NoError(t, err)
	assert.Equal(t, 3, snapshot.Student.Present)
	assert.Equal(t, 1, snapshot.Student.Excused)
	require.Len(t, snapshot.Subjects, 1)
	assert.Empty(t, snapshot.History)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryStudentSnapshotUnknownStudent(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students st")).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.StudentSnapshot(context.Background(), "missing", testWindow, 50)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryGroupCounts(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM class_groups g")).
		WithArgs("2024-03-04", "2024-03-11").
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "group_name", "present", "absent", "excused"}).
			AddRow("group-1", "1A", 9, 1, 0).
			AddRow("group-2", "1B", 0, 0, 2))

	rows, err := repo.GroupCounts(context.Background(), testWindow)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 10, rows[0].Graded())
	assert.Equal(t, 0, rows[1].Graded())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryStudentCountsWithGroup(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE st.active AND st.group_id = $4")).
		WithArgs("2024-03-04", "2024-03-11", 5, "group-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "student_name", "enrollment_number", "group_id", "group_name", "present", "absent", "excused"}).
			AddRow("student-1", "Ana", nil, "group-1", "1A", 0, 5, 0))

	rows, err := repo.StudentCounts(context.Background(), testWindow, 5, "group-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].Absent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryStudentCountsKeepsStudentsWithoutMarks(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	mock.ExpectQuery(`FROM students st\s+LEFT JOIN class_groups g ON g.id = st.group_id\s+LEFT JOIN attendance_records ar`).
		WithArgs("2024-03-04", "2024-03-11", 0).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "student_name", "enrollment_number", "group_id", "group_name", "present", "absent", "excused"}).
			AddRow("student-1", "Ana", nil, "group-1", "1A", 0, 0, 0))

	rows, err := repo.StudentCounts(context.Background(), testWindow, 0, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0, rows[0].AttendanceCounts.Graded())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryTeacherActivityParsesDates(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	created := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT full_name FROM teachers WHERE id = $1")).
		WithArgs("teacher-1").
		WillReturnRows(sqlmock.NewRows([]string{"full_name"}).AddRow("Luis"))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.teacher_id = $3")).
		WithArgs("2024-03-04", "2024-03-11", "teacher-1").
		WillReturnRows(sqlmock.NewRows([]string{"assignment_id", "teacher_id", "teacher_name", "subject_name", "group_name", "weekday", "start_time", "end_time", "created_at", "registered_dates"}).
			AddRow("assignment-1", "teacher-1", "Luis", "Math", "1A", 1, "07:00:00", "08:00:00", created, []byte("{2024-03-04,2024-03-11}")).
			AddRow("assignment-2", "teacher-1", "Luis", "Physics", "1B", 2, "08:00:00", "09:00:00", created, []byte("{}")))
	mock.ExpectCommit()

	name, activities, err := repo.TeacherActivity(context.Background(), "teacher-1", testWindow)
	require.NoError(t, err)
	assert.Equal(t, "Luis", name)
	require.Len(t, activities, 2)
	assert.Equal(t, []models.Date{models.NewDate(2024, 3, 4), models.NewDate(2024, 3, 11)}, activities[0].RegisteredDates)
	assert.Empty(t, activities[1].RegisteredDates)
	assert.Equal(t, models.Tuesday, activities[1].Weekday)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryScheduledClasses(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE ts.weekday = $2")).
		WithArgs("2024-03-11", models.Monday).
		WillReturnRows(sqlmock.NewRows([]string{"assignment_id", "teacher_id", "teacher_name", "subject_name", "group_id", "group_name", "time_slot_id", "start_time", "end_time", "marks", "first_recorded_at"}).
			AddRow("assignment-1", "teacher-1", "Luis", "Math", "group-1", "1A", 1, "07:00:00", "08:00:00", 0, nil).
			AddRow("assignment-2", "teacher-2", "Eva", "Art", "group-2", "1B", 2, "08:00:00", "09:00:00", 20, "08:10:00"))

	rows, err := repo.ScheduledClasses(context.Background(), models.NewDate(2024, 3, 11), models.Monday)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].FirstRecordedAt)
	require.NotNil(t, rows[1].FirstRecordedAt)
	assert.Equal(t, models.NewTimeOfDay(8, 10, 0), *rows[1].FirstRecordedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryRegistrationHistoryFilters(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	created := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND a.teacher_id = $1 AND a.group_id = $2")).
		WithArgs("teacher-1", "group-1").
		WillReturnRows(sqlmock.NewRows([]string{"assignment_id", "teacher_id", "teacher_name", "subject_name", "group_id", "group_name", "weekday", "start_time", "end_time", "created_at", "students"}).
			AddRow("assignment-1", "teacher-1", "Luis", "Math", "group-1", "1A", 1, "07:00:00", "08:00:00", created, 25))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE ar.date BETWEEN $1 AND $2 AND 1=1 AND a.teacher_id = $3 AND a.group_id = $4")).
		WithArgs("2024-03-04", "2024-03-11", "teacher-1", "group-1").
		WillReturnRows(sqlmock.NewRows([]string{"assignment_id", "date", "first_recorded_at", "present", "absent", "excused"}).
			AddRow("assignment-1", "2024-03-04", "07:10:00", 20, 4, 1))
	mock.ExpectCommit()

	classes, registrations, err := repo.RegistrationHistory(context.Background(), testWindow, "teacher-1", "group-1")
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, 25, classes[0].Students)
	require.Len(t, registrations, 1)
	assert.Equal(t, models.NewDate(2024, 3, 4), registrations[0].Date)
	assert.Equal(t, models.NewTimeOfDay(7, 10, 0), registrations[0].FirstRecordedAt)
	assert.Equal(t, 25, registrations[0].Graded())
	assert.NoError(t, mock.ExpectationsWereMet())
}
