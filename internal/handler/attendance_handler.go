package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-attendance-api/internal/dto"
	"github.com/noah-isme/school-attendance-api/internal/models"
	appErrors "github.com/noah-isme/school-attendance-api/pkg/errors"
	"github.com/noah-isme/school-attendance-api/pkg/response"
)

const exportFlushEvery = 100

type attendanceLedger interface {
	Record(ctx context.Context, req models.RecordAttendanceRequest) (*models.AttendanceRecord, bool, error)
	RecordBatch(ctx context.Context, req dto.BatchAttendanceRequest) (*dto.BatchAttendanceResult, error)
	Query(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceEntry, *models.Pagination, error)
	Stream(ctx context.Context, filter models.AttendanceFilter, fn func(models.AttendanceEntry) error) error
	Roster(ctx context.Context, assignmentID string, date models.Date) (*models.ClassRoster, error)
}

// AttendanceHandler exposes the attendance ledger.
type AttendanceHandler struct {
	ledger attendanceLedger
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(ledger attendanceLedger) *AttendanceHandler {
	return &AttendanceHandler{ledger: ledger}
}

// Record godoc
// @Summary Record or correct one attendance mark
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.RecordAttendanceRequest true "Attendance mark"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	var req models.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid request body"))
		return
	}
	record, created, err := h.ledger.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.JSON(c, status, dto.RecordAttendanceResponse{Record: record, Created: created}, nil)
}

// Batch godoc
// @Summary Record several attendance marks
// @Description Entries are applied in order. The response is 207 when any entry failed.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.BatchAttendanceRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/batch [post]
func (h *AttendanceHandler) Batch(c *gin.Context) {
	var req dto.BatchAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid request body"))
		return
	}
	result, err := h.ledger.RecordBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Failed > 0 {
		response.MultiStatus(c, result)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Query godoc
// @Summary Query attendance records
// @Tags Attendance
// @Produce json
// @Param groupId query string false "Filter by group"
// @Param assignmentId query string false "Filter by assignment"
// @Param studentId query string false "Filter by student"
// @Param date query string false "Filter by date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) Query(c *gin.Context) {
	filter, err := parseLedgerFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if filter.Page, err = intQuery(c, "page", 1); err != nil {
		response.Error(c, err)
		return
	}
	if filter.PageSize, err = intQuery(c, "limit", 0); err != nil {
		response.Error(c, err)
		return
	}
	entries, pagination, err := h.ledger.Query(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Export godoc
// @Summary Stream attendance records
// @Description format=ndjson (default) writes one JSON record per line; csv and xlsx write a header row and one row per record.
// @Tags Attendance
// @Produce application/x-ndjson
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param groupId query string false "Filter by group"
// @Param assignmentId query string false "Filter by assignment"
// @Param studentId query string false "Filter by student"
// @Param date query string false "Filter by date (YYYY-MM-DD)"
// @Param format query string false "ndjson, csv or xlsx" default(ndjson)
// @Success 200 {string} string "attendance records"
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	filter, err := parseLedgerFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", formatNDJSON)))
	sink, err := newExportSink(format, c.Writer)
	if err != nil {
		response.Error(c, err)
		return
	}

	started := false
	written := 0
	begin := func() {
		started = true
		c.Header("Content-Type", sink.contentType)
		c.Header("Content-Disposition", `attachment; filename="attendance.`+format+`"`)
		c.Header("Cache-Control", "no-store")
		c.Status(http.StatusOK)
		c.Writer.WriteHeaderNow()
	}

	err = h.ledger.Stream(c.Request.Context(), filter, func(entry models.AttendanceEntry) error {
		if !started {
			begin()
		}
		if err := sink.write(entry); err != nil {
			return err
		}
		written++
		if written%exportFlushEvery == 0 {
			if err := sink.flush(); err != nil {
				return err
			}
			c.Writer.Flush()
		}
		return nil
	})
	if err != nil {
		_ = sink.abort()
		if !started {
			response.Error(c, err)
			return
		}
		// Headers are gone; record the failure for the request log.
		_ = c.Error(err)
		return
	}
	if !started {
		begin()
	}
	if err := sink.close(); err != nil {
		_ = c.Error(err)
	}
	c.Writer.Flush()
}

// Roster godoc
// @Summary Students to mark for one class
// @Description Lists the active students of the assignment's group with the mark each already has on date.
// @Tags Attendance
// @Produce json
// @Param assignmentId query string true "Assignment ID"
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/roster [get]
func (h *AttendanceHandler) Roster(c *gin.Context) {
	date, err := dateQuery(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	roster, err := h.ledger.Roster(c.Request.Context(), strings.TrimSpace(c.Query("assignmentId")), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

func parseLedgerFilter(c *gin.Context) (models.AttendanceFilter, error) {
	filter := models.AttendanceFilter{
		GroupID:      strings.TrimSpace(c.Query("groupId")),
		AssignmentID: strings.TrimSpace(c.Query("assignmentId")),
		StudentID:    strings.TrimSpace(c.Query("studentId")),
	}
	date, err := dateQuery(c, "date")
	if err != nil {
		return filter, err
	}
	filter.Date = date
	return filter, nil
}
