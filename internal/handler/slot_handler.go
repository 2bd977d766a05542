package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-attendance-api/internal/models"
	"github.com/noah-isme/school-attendance-api/pkg/response"
)

type slotCatalog interface {
	List(ctx context.Context) ([]models.TimeSlot, error)
	Get(ctx context.Context, id int) (*models.TimeSlot, error)
}

type slotAvailability interface {
	AvailableSlots(ctx context.Context, groupID, teacherID string) ([]models.TimeSlot, error)
}

// SlotHandler serves the weekly timetable.
type SlotHandler struct {
	slots     slotCatalog
	scheduler slotAvailability
}

// NewSlotHandler constructs the handler.
func NewSlotHandler(slots slotCatalog, scheduler slotAvailability) *SlotHandler {
	return &SlotHandler{slots: slots, scheduler: scheduler}
}

// List godoc
// @Summary List time slots
// @Tags Slots
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /slots [get]
func (h *SlotHandler) List(c *gin.Context) {
	slots, err := h.slots.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Get godoc
// @Summary Get a time slot
// @Tags Slots
// @Produce json
// @Param id path int true "Slot ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /slots/{id} [get]
func (h *SlotHandler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		response.Error(c, invalidParam("id", "a positive integer"))
		return
	}
	slot, err := h.slots.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Available godoc
// @Summary List slots free for both a group and a teacher
// @Tags Slots
// @Produce json
// @Param groupId query string true "Group ID"
// @Param teacherId query string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /slots/available [get]
func (h *SlotHandler) Available(c *gin.Context) {
	groupID := strings.TrimSpace(c.Query("groupId"))
	teacherID := strings.TrimSpace(c.Query("teacherId"))
	slots, err := h.scheduler.AvailableSlots(c.Request.Context(), groupID, teacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}
