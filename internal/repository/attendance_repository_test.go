package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-attendance-api/internal/models"
)

var attendanceEntryRowColumns = []string{
	"id", "student_id", "assignment_id", "date", "status", "recorded_at", "notes",
	"student_name", "enrollment_number", "group_id", "group_name", "subject_name", "teacher_name", "start_time", "end_time",
}

func TestAttendanceRepositoryUpsertInsertThenUpdate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := models.NewDate(2024, 3, 4)
	upsert := regexp.QuoteMeta("ON CONFLICT ON CONSTRAINT attendance_records_key")
	returning := []string{"id", "student_id", "assignment_id", "date", "status", "recorded_at", "notes", "created"}

	mock.ExpectQuery(upsert).
		WithArgs(sqlmock.AnyArg(), "student-1", "assignment-1", "2024-03-04", models.AttendanceStatusAbsent, "07:05:00", nil).
		WillReturnRows(sqlmock.NewRows(returning).AddRow("record-1", "student-1", "assignment-1", "2024-03-04", "absent", "07:05:00", nil, true))
	mock.ExpectQuery(upsert).
		WithArgs(sqlmock.AnyArg(), "student-1", "assignment-1", "2024-03-04", models.AttendanceStatusPresent, "07:10:00", nil).
		WillReturnRows(sqlmock.NewRows(returning).AddRow("record-1", "student-1", "assignment-1", "2024-03-04", "present", "07:10:00", nil, false))

	first, created, err := repo.Upsert(context.Background(), &models.AttendanceRecord{
		StudentID: "student-1", AssignmentID: "assignment-1", Date: date,
		Status: models.AttendanceStatusAbsent, RecordedAt: models.NewTimeOfDay(7, 5, 0),
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.AttendanceStatusAbsent, first.Status)

	second, created, err := repo.Upsert(context.Background(), &models.AttendanceRecord{
		StudentID: "student-1", AssignmentID: "assignment-1", Date: date,
		Status: models.AttendanceStatusPresent, RecordedAt: models.NewTimeOfDay(7, 10, 0),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.AttendanceStatusPresent, second.Status)
	assert.Equal(t, date, second.Date)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListAppliesFiltersAndPaging(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows(attendanceEntryRowColumns).
		AddRow("record-1", "student-1", "assignment-1", "2024-03-04", "present", "07:05:00", nil, "Ana", "A001", "group-1", "1A", "Math", "Luis", "07:00:00", "08:00:00")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND a.group_id = $1 AND ar.date = $2 ORDER BY ar.date DESC, st.full_name ASC, ar.id ASC LIMIT 20 OFFSET 20")).
		WithArgs("group-1", "2024-03-04").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attendance_records ar")).
		WithArgs("group-1", "2024-03-04").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))

	entries, total, err := repo.List(context.Background(), models.AttendanceFilter{
		GroupID: "group-1", Date: models.NewDate(2024, 3, 4), Page: 2, PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, total)
	require.Len(t, entries, 1)
	assert.Equal(t, "Ana", entries[0].StudentName)
	assert.Equal(t, "1A", entries[0].GroupName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStreamStopsEarly(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows(attendanceEntryRowColumns).
		AddRow("record-1", "student-1", "assignment-1", "2024-03-05", "present", "07:05:00", nil, "Ana", nil, "group-1", "1A", "Math", "Luis", "07:00:00", "08:00:00").
		AddRow("record-2", "student-2", "assignment-1", "2024-03-04", "absent", "07:06:00", "sick", "Beto", nil, "group-1", "1A", "Math", "Luis", "07:00:00", "08:00:00")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND ar.student_id = $1 ORDER BY ar.date DESC")).
		WithArgs("student-1").
		WillReturnRows(rows)

	stop := errors.New("stop")
	var seen []string
	err := repo.Stream(context.Background(), models.AttendanceFilter{StudentID: "student-1"}, func(entry models.AttendanceEntry) error {
		seen = append(seen, entry.ID)
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"record-1"}, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryRosterJoinsExistingMarks(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	created := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.id = $1")).
		WithArgs("assignment-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "teacher_id", "subject_id", "group_id", "time_slot_id", "created_at", "teacher_name", "subject_name", "group_name", "weekday", "start_time", "end_time"}).
			AddRow("assignment-1", "teacher-1", "subject-1", "group-1", 1, created, "Luis", "Math", "1A", 1, "07:00:00", "08:00:00"))
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN attendance_records ar ON ar.student_id = st.id AND ar.assignment_id = $2 AND ar.date = $3")).
		WithArgs("group-1", "assignment-1", "2024-03-04").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "full_name", "enrollment_number", "status", "recorded_at"}).
			AddRow("student-1", "Ana", "A001", "present", "07:05:00").
			AddRow("student-2", "Bruno", nil, nil, nil))
	mock.ExpectCommit()

	roster, err := repo.Roster(context.Background(), "assignment-1", models.NewDate(2024, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, "1A", roster.Assignment.GroupName)
	require.Len(t, roster.Students, 2)
	require.NotNil(t, roster.Students[0].Status)
	assert.Equal(t, models.AttendanceStatusPresent, *roster.Students[0].Status)
	assert.Nil(t, roster.Students[1].Status)
	assert.Nil(t, roster.Students[1].RecordedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryRosterUnknownAssignment(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.id = $1")).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Roster(context.Background(), "missing", models.NewDate(2024, 3, 4))
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
