package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-attendance-api/internal/middleware"
	"github.com/noah-isme/school-attendance-api/internal/models"
	"github.com/noah-isme/school-attendance-api/internal/service"
	appErrors "github.com/noah-isme/school-attendance-api/pkg/errors"
	"github.com/noah-isme/school-attendance-api/pkg/response"
)

type followUpTracker interface {
	Record(ctx context.Context, req models.CreateFollowUpRequest, recordedBy string) (*models.FollowUp, error)
	Status(ctx context.Context, studentID string) (*models.FollowUpStatus, error)
	Recent(ctx context.Context, days int) ([]models.FollowedStudent, error)
	Delete(ctx context.Context, studentID string) error
}

// FollowUpHandler lets prefects mark flagged students as attended to.
type FollowUpHandler struct {
	followUps followUpTracker
}

// NewFollowUpHandler constructs the handler.
func NewFollowUpHandler(followUps followUpTracker) *FollowUpHandler {
	return &FollowUpHandler{followUps: followUps}
}

// Create godoc
// @Summary Record a follow-up of a student
// @Tags FollowUps
// @Accept json
// @Produce json
// @Param payload body models.CreateFollowUpRequest true "Follow-up"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /follow-ups [post]
func (h *FollowUpHandler) Create(c *gin.Context) {
	var req models.CreateFollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid request body"))
		return
	}
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	followUp, err := h.followUps.Record(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, followUp)
}

// List godoc
// @Summary Students followed up recently
// @Tags FollowUps
// @Produce json
// @Param days query int false "Look-back in days" default(30)
// @Success 200 {object} response.Envelope
// @Router /follow-ups [get]
func (h *FollowUpHandler) List(c *gin.Context) {
	days, err := intQuery(c, "days", service.DefaultFollowUpDays)
	if err != nil {
		response.Error(c, err)
		return
	}
	rows, err := h.followUps.Recent(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Status godoc
// @Summary Whether a student has been followed up
// @Tags FollowUps
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /follow-ups/students/{id} [get]
func (h *FollowUpHandler) Status(c *gin.Context) {
	status, err := h.followUps.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Delete godoc
// @Summary Clear the follow-ups of a student
// @Tags FollowUps
// @Param id path string true "Student ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /follow-ups/students/{id} [delete]
func (h *FollowUpHandler) Delete(c *gin.Context) {
	if err := h.followUps.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
