package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-attendance-api/internal/dto"
	"github.com/noah-isme/school-attendance-api/internal/models"
	appErrors "github.com/noah-isme/school-attendance-api/pkg/errors"
)

type fakeLedger struct {
	created   bool
	recordErr error
	batch     *dto.BatchAttendanceResult
	filter    models.AttendanceFilter
	entries   []models.AttendanceEntry
	streamErr error
	failAfter int
	rosterID  string
	rosterOn  models.Date
	rosterErr error
}

func (f *fakeLedger) Record(_ context.Context, req models.RecordAttendanceRequest) (*models.AttendanceRecord, bool, error) {
	if f.recordErr != nil {
		return nil, false, f.recordErr
	}
	return &models.AttendanceRecord{ID: "r-1", StudentID: req.StudentID, Status: req.Status}, f.created, nil
}

func (f *fakeLedger) RecordBatch(context.Context, dto.BatchAttendanceRequest) (*dto.BatchAttendanceResult, error) {
	return f.batch, nil
}

func (f *fakeLedger) Query(_ context.Context, filter models.AttendanceFilter) ([]models.AttendanceEntry, *models.Pagination, error) {
	f.filter = filter
	return f.entries, &models.Pagination{Page: filter.Page, PageSize: 50, TotalCount: len(f.entries)}, nil
}

func (f *fakeLedger) Stream(_ context.Context, filter models.AttendanceFilter, fn func(models.AttendanceEntry) error) error {
	f.filter = filter
	for i, entry := range f.entries {
		if f.streamErr != nil && i == f.failAfter {
			return f.streamErr
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	if f.streamErr != nil && f.failAfter >= len(f.entries) {
		return f.streamErr
	}
	return nil
}

func (f *fakeLedger) Roster(_ context.Context, assignmentID string, date models.Date) (*models.ClassRoster, error) {
	f.rosterID, f.rosterOn = assignmentID, date
	if f.rosterErr != nil {
		return nil, f.rosterErr
	}
	return &models.ClassRoster{Date: date, Students: []models.RosterStudent{{StudentID: "s-1", FullName: "Ana"}}}, nil
}

func TestAttendanceHandlerRecordStatus(t *testing.T) {
	mark := models.RecordAttendanceRequest{StudentID: "s-1", AssignmentID: "a-1", Date: "2024-03-04", Status: models.AttendanceStatusPresent}

	for _, created := range []bool{true, false} {
		router := newTestRouter()
		router.POST("/attendance", NewAttendanceHandler(&fakeLedger{created: created}).Record)
		rec := perform(router, http.MethodPost, "/attendance", mark)

		want := http.StatusOK
		if created {
			want = http.StatusCreated
		}
		assert.Equal(t, want, rec.Code)
		var body dto.RecordAttendanceResponse
		decodeData(t, decodeEnvelope(t, rec), &body)
		assert.Equal(t, created, body.Created)
		assert.Equal(t, "s-1", body.Record.StudentID)
	}
}

func TestAttendanceHandlerRecordErrors(t *testing.T) {
	router := newTestRouter()
	router.POST("/attendance", NewAttendanceHandler(&fakeLedger{recordErr: appErrors.Clone(appErrors.ErrNotFound, "assignment not found")}).Record)

	rec := perform(router, http.MethodPost, "/attendance", "not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = perform(router, http.MethodPost, "/attendance", models.RecordAttendanceRequest{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAttendanceHandlerBatchStatus(t *testing.T) {
	clean := &dto.BatchAttendanceResult{Processed: 2, Succeeded: 2, Results: []dto.BatchEntryResult{{Index: 0}, {Index: 1}}}
	partial := &dto.BatchAttendanceResult{Processed: 2, Succeeded: 1, Failed: 1, Results: []dto.BatchEntryResult{
		{Index: 0, Created: true},
		{Index: 1, Error: &dto.EntryError{Code: "INVALID_INPUT", Message: "status is invalid"}},
	}}

	router := newTestRouter()
	router.POST("/attendance/batch", NewAttendanceHandler(&fakeLedger{batch: clean}).Batch)
	rec := perform(router, http.MethodPost, "/attendance/batch", dto.BatchAttendanceRequest{})
	assert.Equal(t, http.StatusOK, rec.Code)

	router = newTestRouter()
	router.POST("/attendance/batch", NewAttendanceHandler(&fakeLedger{batch: partial}).Batch)
	rec = perform(router, http.MethodPost, "/attendance/batch", dto.BatchAttendanceRequest{})
	assert.Equal(t, http.StatusMultiStatus, rec.Code)
	var result dto.BatchAttendanceResult
	decodeData(t, decodeEnvelope(t, rec), &result)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "INVALID_INPUT", result.Results[1].Error.Code)
}

func TestAttendanceHandlerQueryParsesFilter(t *testing.T) {
	fake := &fakeLedger{entries: []models.AttendanceEntry{{StudentName: "Ana"}}}
	router := newTestRouter()
	router.GET("/attendance", NewAttendanceHandler(fake).Query)

	rec := perform(router, http.MethodGet, "/attendance?groupId=g-1&date=2024-03-04&page=2&limit=10", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "g-1", fake.filter.GroupID)
	assert.Equal(t, models.NewDate(2024, 3, 4), fake.filter.Date)
	assert.Equal(t, 2, fake.filter.Page)
	assert.Equal(t, 10, fake.filter.PageSize)

	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 1, envelope.Pagination.TotalCount)

	rec = perform(router, http.MethodGet, "/attendance?date=04-03-2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = perform(router, http.MethodGet, "/attendance?page=two", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttendanceHandlerExportWritesOneRecordPerLine(t *testing.T) {
	fake := &fakeLedger{entries: []models.AttendanceEntry{
		{StudentName: "Ana", AttendanceRecord: models.AttendanceRecord{Status: models.AttendanceStatusPresent}},
		{StudentName: "Beto", AttendanceRecord: models.AttendanceRecord{Status: models.AttendanceStatusAbsent}},
	}}
	router := newTestRouter()
	router.GET("/attendance/export", NewAttendanceHandler(fake).Export)

	rec := perform(router, http.MethodGet, "/attendance/export?groupId=g-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ndjsonContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "g-1", fake.filter.GroupID)

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	var first models.AttendanceEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "Ana", first.StudentName)
}

func TestAttendanceHandlerExportEmpty(t *testing.T) {
	router := newTestRouter()
	router.GET("/attendance/export", NewAttendanceHandler(&fakeLedger{}).Export)

	rec := perform(router, http.MethodGet, "/attendance/export", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ndjsonContentType, rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Body.String())
}

func TestAttendanceHandlerExportFailsBeforeFirstRow(t *testing.T) {
	fake := &fakeLedger{
		entries:   []models.AttendanceEntry{{StudentName: "Ana"}},
		streamErr: appErrors.ErrStorageUnavailable,
	}
	router := newTestRouter()
	router.GET("/attendance/export", NewAttendanceHandler(fake).Export)

	rec := perform(router, http.MethodGet, "/attendance/export", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "STORAGE_UNAVAILABLE", decodeEnvelope(t, rec).Error.Code)
}

func TestAttendanceHandlerExportFailsMidStream(t *testing.T) {
	fake := &fakeLedger{
		entries:   []models.AttendanceEntry{{StudentName: "Ana"}, {StudentName: "Beto"}},
		streamErr: appErrors.ErrStorageUnavailable,
		failAfter: 1,
	}
	router := newTestRouter()
	router.GET("/attendance/export", NewAttendanceHandler(fake).Export)

	rec := perform(router, http.MethodGet, "/attendance/export", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "\n"))
}

func TestAttendanceHandlerExportCSV(t *testing.T) {
	notes := "late bus"
	fake := &fakeLedger{entries: []models.AttendanceEntry{{
		StudentName: "Ana",
		GroupName:   "1A",
		AttendanceRecord: models.AttendanceRecord{
			StudentID:  "s-1",
			Date:       models.NewDate(2024, 3, 4),
			Status:     models.AttendanceStatusExcused,
			RecordedAt: models.NewTimeOfDay(7, 5, 0),
			Notes:      &notes,
		},
	}}}
	router := newTestRouter()
	router.GET("/attendance/export", NewAttendanceHandler(fake).Export)

	rec := perform(router, http.MethodGet, "/attendance/export?format=csv", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, csvContentType, rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "date,student_id,student_name"))
	assert.Contains(t, lines[1], "2024-03-04,s-1,Ana,,1A")
	assert.Contains(t, lines[1], "excused,07:05:00,late bus")

	fake.entries = nil
	rec = perform(router, http.MethodGet, "/attendance/export?format=csv", nil)
	assert.Equal(t, strings.Join(attendanceColumns, ",")+"\n", rec.Body.String())

	rec = perform(router, http.MethodGet, "/attendance/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttendanceHandlerExportXLSX(t *testing.T) {
	fake := &fakeLedger{entries: []models.AttendanceEntry{{StudentName: "Ana"}}}
	router := newTestRouter()
	router.GET("/attendance/export", NewAttendanceHandler(fake).Export)

	rec := perform(router, http.MethodGet, "/attendance/export?format=xlsx", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attendance.xlsx")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))
}

func TestAttendanceHandlerRoster(t *testing.T) {
	ledger := &fakeLedger{}
	router := newTestRouter()
	router.GET("/attendance/roster", NewAttendanceHandler(ledger).Roster)

	rec := perform(router, http.MethodGet, "/attendance/roster?assignmentId=a-1&date=2024-03-04", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a-1", ledger.rosterID)
	assert.Equal(t, models.NewDate(2024, 3, 4), ledger.rosterOn)
	var roster models.ClassRoster
	decodeData(t, decodeEnvelope(t, rec), &roster)
	require.Len(t, roster.Students, 1)
	assert.Equal(t, "Ana", roster.Students[0].FullName)

	rec = perform(router, http.MethodGet, "/attendance/roster?assignmentId=a-1&date=04-03-2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ledger.rosterErr = appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	rec = perform(router, http.MethodGet, "/attendance/roster?assignmentId=a-9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, ledger.rosterOn.IsZero())
}
