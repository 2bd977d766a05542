package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-attendance-api/internal/middleware"
	"github.com/noah-isme/school-attendance-api/internal/models"
	appErrors "github.com/noah-isme/school-attendance-api/pkg/errors"
)

type fakeFollowUps struct {
	recordedBy string
	days       int
	deleteErr  error
}

func (f *fakeFollowUps) Record(_ context.Context, req models.CreateFollowUpRequest, recordedBy string) (*models.FollowUp, error) {
	f.recordedBy = recordedBy
	return &models.FollowUp{ID: "f-1", StudentID: req.StudentID, RecordedBy: recordedBy}, nil
}

func (f *fakeFollowUps) Status(_ context.Context, studentID string) (*models.FollowUpStatus, error) {
	return &models.FollowUpStatus{StudentID: studentID}, nil
}

func (f *fakeFollowUps) Recent(_ context.Context, days int) ([]models.FollowedStudent, error) {
	f.days = days
	return []models.FollowedStudent{}, nil
}

func (f *fakeFollowUps) Delete(context.Context, string) error {
	return f.deleteErr
}

func followUpRoutes(fake *fakeFollowUps, claims *models.JWTClaims) *gin.Engine {
	h := NewFollowUpHandler(fake)
	router := newTestRouter()
	group := router.Group("/follow-ups", func(c *gin.Context) {
		if claims != nil {
			c.Set(middleware.ContextUserKey, claims)
		}
		c.Next()
	})
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/students/:id", h.Status)
	group.DELETE("/students/:id", h.Delete)
	return router
}

func TestFollowUpHandlerCreateUsesCaller(t *testing.T) {
	fake := &fakeFollowUps{}
	router := followUpRoutes(fake, &models.JWTClaims{UserID: "u-prefect", Role: models.RolePrefect})

	rec := perform(router, http.MethodPost, "/follow-ups", models.CreateFollowUpRequest{StudentID: "s-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u-prefect", fake.recordedBy)
	var followUp models.FollowUp
	decodeData(t, decodeEnvelope(t, rec), &followUp)
	assert.Equal(t, "s-1", followUp.StudentID)

	rec = perform(router, http.MethodPost, "/follow-ups", "not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFollowUpHandlerCreateWithoutClaims(t *testing.T) {
	router := followUpRoutes(&fakeFollowUps{}, nil)

	rec := perform(router, http.MethodPost, "/follow-ups", models.CreateFollowUpRequest{StudentID: "s-1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFollowUpHandlerListAndDelete(t *testing.T) {
	fake := &fakeFollowUps{}
	router := followUpRoutes(fake, nil)

	rec := perform(router, http.MethodGet, "/follow-ups", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, fake.days)

	rec = perform(router, http.MethodGet, "/follow-ups?days=7", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, fake.days)

	rec = perform(router, http.MethodGet, "/follow-ups?days=week", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = perform(router, http.MethodGet, "/follow-ups/students/s-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = perform(router, http.MethodDelete, "/follow-ups/students/s-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	fake.deleteErr = appErrors.Clone(appErrors.ErrNotFound, "student has no follow-ups")
	rec = perform(router, http.MethodDelete, "/follow-ups/students/s-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
