package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-attendance-api/internal/models"
	appErrors "github.com/noah-isme/school-attendance-api/pkg/errors"
	"github.com/noah-isme/school-attendance-api/pkg/response"
)

type assignmentScheduler interface {
	CreateAssignment(ctx context.Context, req models.CreateAssignmentRequest) (*models.Assignment, error)
	DeleteAssignment(ctx context.Context, id string) error
	GetAssignment(ctx context.Context, id string) (*models.AssignmentDetail, error)
	ListAssignments(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error)
}

// AssignmentHandler manages teaching assignments.
type AssignmentHandler struct {
	scheduler assignmentScheduler
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(scheduler assignmentScheduler) *AssignmentHandler {
	return &AssignmentHandler{scheduler: scheduler}
}

// List godoc
// @Summary List assignments
// @Tags Assignments
// @Produce json
// @Param teacherId query string false "Filter by teacher"
// @Param groupId query string false "Filter by group"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	filter := models.AssignmentFilter{
		TeacherID: strings.TrimSpace(c.Query("teacherId")),
		GroupID:   strings.TrimSpace(c.Query("groupId")),
	}
	assignments, err := h.scheduler.ListAssignments(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Get godoc
// @Summary Get assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	assignment, err := h.scheduler.GetAssignment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Create godoc
// @Summary Schedule a class in a time slot
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body models.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req models.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid request body"))
		return
	}
	assignment, err := h.scheduler.CreateAssignment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Delete godoc
// @Summary Delete assignment
// @Tags Assignments
// @Param id path string true "Assignment ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c *gin.Context) {
	if err := h.scheduler.DeleteAssignment(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
