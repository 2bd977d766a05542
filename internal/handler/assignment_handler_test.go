package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-attendance-api/internal/models"
	appErrors "github.com/noah-isme/school-attendance-api/pkg/errors"
)

type fakeScheduler struct {
	created     *models.Assignment
	createErr   error
	deleteErr   error
	detail      *models.AssignmentDetail
	getErr      error
	listed      models.AssignmentFilter
	available   []models.TimeSlot
	availErr    error
	lastRequest models.CreateAssignmentRequest
}

func (f *fakeScheduler) CreateAssignment(_ context.Context, req models.CreateAssignmentRequest) (*models.Assignment, error) {
	f.lastRequest = req
	return f.created, f.createErr
}

func (f *fakeScheduler) DeleteAssignment(context.Context, string) error {
	return f.deleteErr
}

func (f *fakeScheduler) GetAssignment(context.Context, string) (*models.AssignmentDetail, error) {
	return f.detail, f.getErr
}

func (f *fakeScheduler) ListAssignments(_ context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error) {
	f.listed = filter
	return []models.AssignmentDetail{}, nil
}

func (f *fakeScheduler) AvailableSlots(context.Context, string, string) ([]models.TimeSlot, error) {
	return f.available, f.availErr
}

func TestAssignmentHandlerCreate(t *testing.T) {
	fake := &fakeScheduler{created: &models.Assignment{ID: "a-1", TimeSlotID: 2}}
	h := NewAssignmentHandler(fake)
	router := newTestRouter()
	router.POST("/assignments", h.Create)

	rec := perform(router, http.MethodPost, "/assignments", models.CreateAssignmentRequest{TeacherID: "t", SubjectID: "s", GroupID: "g", TimeSlotID: 2})
	assert.Equal(t, http.StatusCreated, rec.Code)
	var created models.Assignment
	decodeData(t, decodeEnvelope(t, rec), &created)
	assert.Equal(t, "a-1", created.ID)
	assert.Equal(t, 2, fake.lastRequest.TimeSlotID)
}

func TestAssignmentHandlerCreateErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   interface{}
		err    error
		status int
		code   string
	}{
		{"malformed body", "{", nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"slot taken", models.CreateAssignmentRequest{TimeSlotID: 1}, appErrors.ErrSlotConflict, http.StatusConflict, "SLOT_CONFLICT"},
		{"duplicate", models.CreateAssignmentRequest{TimeSlotID: 1}, appErrors.ErrDuplicateAssignment, http.StatusConflict, "DUPLICATE_ASSIGNMENT"},
		{"storage down", models.CreateAssignmentRequest{TimeSlotID: 1}, appErrors.ErrStorageUnavailable, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter()
			router.POST("/assignments", NewAssignmentHandler(&fakeScheduler{createErr: tc.err}).Create)

			rec := perform(router, http.MethodPost, "/assignments", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			envelope := decodeEnvelope(t, rec)
			require.NotNil(t, envelope.Error)
			assert.Equal(t, tc.code, envelope.Error.Code)
		})
	}
}

func TestAssignmentHandlerStorageErrorsAskForRetry(t *testing.T) {
	router := newTestRouter()
	router.POST("/assignments", NewAssignmentHandler(&fakeScheduler{createErr: appErrors.ErrStorageUnavailable}).Create)

	rec := perform(router, http.MethodPost, "/assignments", models.CreateAssignmentRequest{TimeSlotID: 1})
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	assert.True(t, decodeEnvelope(t, rec).Error.Retryable)
}

func TestAssignmentHandlerDelete(t *testing.T) {
	router := newTestRouter()
	router.DELETE("/assignments/:id", NewAssignmentHandler(&fakeScheduler{}).Delete)
	rec := perform(router, http.MethodDelete, "/assignments/a-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	blocked := appErrors.Clone(appErrors.ErrConflict, "assignment has attendance history")
	router = newTestRouter()
	router.DELETE("/assignments/:id", NewAssignmentHandler(&fakeScheduler{deleteErr: blocked}).Delete)
	rec = perform(router, http.MethodDelete, "/assignments/a-1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "assignment has attendance history", decodeEnvelope(t, rec).Error.Message)
}

func TestAssignmentHandlerGetAndList(t *testing.T) {
	fake := &fakeScheduler{getErr: appErrors.Clone(appErrors.ErrNotFound, "assignment not found")}
	h := NewAssignmentHandler(fake)
	router := newTestRouter()
	router.GET("/assignments", h.List)
	router.GET("/assignments/:id", h.Get)

	rec := perform(router, http.MethodGet, "/assignments/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = perform(router, http.MethodGet, "/assignments?teacherId=t-1&groupId=g-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.AssignmentFilter{TeacherID: "t-1", GroupID: "g-1"}, fake.listed)
	assert.JSONEq(t, `[]`, string(decodeEnvelope(t, rec).Data))
}

type fakeCatalog struct {
	slots []models.TimeSlot
}

func (f fakeCatalog) List(context.Context) ([]models.TimeSlot, error) {
	return f.slots, nil
}

func (f fakeCatalog) Get(_ context.Context, id int) (*models.TimeSlot, error) {
	for _, slot := range f.slots {
		if slot.ID == id {
			return &slot, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "time slot not found")
}

func TestSlotHandler(t *testing.T) {
	slots := []models.TimeSlot{{ID: 1, Weekday: models.Monday, StartTime: models.NewTimeOfDay(7, 0, 0), EndTime: models.NewTimeOfDay(8, 0, 0)}}
	fake := &fakeScheduler{available: slots[:1]}
	h := NewSlotHandler(fakeCatalog{slots: slots}, fake)
	router := newTestRouter()
	router.GET("/slots", h.List)
	router.GET("/slots/available", h.Available)
	router.GET("/slots/:id", h.Get)

	rec := perform(router, http.MethodGet, "/slots", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var listed []models.TimeSlot
	decodeData(t, decodeEnvelope(t, rec), &listed)
	assert.Equal(t, slots, listed)

	rec = perform(router, http.MethodGet, "/slots/available?groupId=g&teacherId=t", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	fake.availErr = appErrors.Clone(appErrors.ErrInvalidInput, "groupId must be a valid uuid")
	rec = perform(router, http.MethodGet, "/slots/available?groupId=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = perform(router, http.MethodGet, "/slots/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = perform(router, http.MethodGet, "/slots/9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = perform(router, http.MethodGet, "/slots/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
