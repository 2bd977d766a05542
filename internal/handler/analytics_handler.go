package handler

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-attendance-api/internal/dto"
	"github.com/noah-isme/school-attendance-api/internal/models"
	"github.com/noah-isme/school-attendance-api/internal/service"
	appErrors "github.com/noah-isme/school-attendance-api/pkg/errors"
	"github.com/noah-isme/school-attendance-api/pkg/export"
	"github.com/noah-isme/school-attendance-api/pkg/response"
)

type analyticsEngine interface {
	StudentStats(ctx context.Context, studentID string, periodDays int) (*models.StudentStats, bool, error)
	GroupStats(ctx context.Context, groupID string, periodDays int) (*models.GroupStats, bool, error)
	Trend(ctx context.Context, periodDays int) ([]models.TrendPoint, bool, error)
	Ranking(ctx context.Context, limit, periodDays int) (*models.GroupRanking, bool, error)
	GroupCategories(ctx context.Context, periodDays int) (*models.GroupCategories, bool, error)
	ProblemStudents(ctx context.Context, params models.ProblemStudentParams) ([]models.StudentSummary, bool, error)
	TeacherCompliance(ctx context.Context, teacherID string, periodDays int) (*models.TeacherCompliance, bool, error)
	ProblemTeachers(ctx context.Context, periodDays int, threshold float64) ([]models.TeacherComplianceSummary, bool, error)
	MissingClassesToday(ctx context.Context) (*models.DailyClassReport, bool, error)
	DailyMetrics(ctx context.Context, date models.Date) (*models.DailyMetrics, bool, error)
	Alerts(ctx context.Context, date models.Date) (*models.Alerts, bool, error)
	Dashboard(ctx context.Context, date models.Date) (*dto.DashboardResponse, bool, error)
	TeacherHistory(ctx context.Context, params models.RegistrationHistoryParams) (*models.RegistrationHistory, bool, error)
}

// AnalyticsHandler exposes dashboard-ready analytics endpoints.
type AnalyticsHandler struct {
	analytics analyticsEngine
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsEngine) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

func periodDays(c *gin.Context, fallback int) (int, error) {
	return intQuery(c, "periodDays", fallback)
}

// Student godoc
// @Summary Attendance statistics for one student
// @Tags Analytics
// @Produce json
// @Param id path string true "Student ID"
// @Param periodDays query int false "Window length in days" default(30)
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /analytics/students/{id} [get]
func (h *AnalyticsHandler) Student(c *gin.Context) {
	days, err := periodDays(c, service.DefaultPeriodDays)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, hit, err := h.analytics.StudentStats(c.Request.Context(), c.Param("id"), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, stats, hit)
}

// Group godoc
// @Summary Attendance statistics for one group
// @Tags Analytics
// @Produce json
// @Param id path string true "Group ID"
// @Param periodDays query int false "Window length in days" default(30)
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /analytics/groups/{id} [get]
func (h *AnalyticsHandler) Group(c *gin.Context) {
	days, err := periodDays(c, service.DefaultPeriodDays)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, hit, err := h.analytics.GroupStats(c.Request.Context(), c.Param("id"), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, stats, hit)
}

// Trend godoc
// @Summary Daily attendance percentage, newest first
// @Tags Analytics
// @Produce json
// @Param periodDays query int false "Window length in days" default(7)
// @Success 200 {object} response.Envelope
// @Router /analytics/trend [get]
func (h *AnalyticsHandler) Trend(c *gin.Context) {
	days, err := periodDays(c, service.DefaultTrendDays)
	if err != nil {
		response.Error(c, err)
		return
	}
	points, hit, err := h.analytics.Trend(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, points, hit)
}

// Ranking godoc
// @Summary Best and worst groups by attendance
// @Tags Analytics
// @Produce json
// @Param limit query int false "Groups per list" default(5)
// @Param periodDays query int false "Window length in days" default(30)
// @Success 200 {object} response.Envelope
// @Router /analytics/ranking [get]
func (h *AnalyticsHandler) Ranking(c *gin.Context) {
	limit, err := intQuery(c, "limit", service.DefaultRankingLimit)
	if err != nil {
		response.Error(c, err)
		return
	}
	days, err := periodDays(c, service.DefaultPeriodDays)
	if err != nil {
		response.Error(c, err)
		return
	}
	ranking, hit, err := h.analytics.Ranking(c.Request.Context(), limit, days)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, ranking, hit)
}

// Categories godoc
// @Summary Groups split into excellent and critical
// @Tags Analytics
// @Produce json
// @Param periodDays query int false "Window length in days" default(30)
// @Success 200 {object} response.Envelope
// @Router /analytics/group-categories [get]
func (h *AnalyticsHandler) Categories(c *gin.Context) {
	days, err := periodDays(c, service.DefaultPeriodDays)
	if err != nil {
		response.Error(c, err)
		return
	}
	categories, hit, err := h.analytics.GroupCategories(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, categories, hit)
}

// ProblemStudents godoc
// @Summary Students with repeated absences
// @Tags Analytics
// @Produce json
// @Param periodDays query int false "Window length in days" default(30)
// @Param minimumAbsences query int false "Minimum absences" default(1)
// @Param groupId query string false "Restrict to one group"
// @Success 200 {object} response.Envelope
// @Router /analytics/problem-students [get]
func (h *AnalyticsHandler) ProblemStudents(c *gin.Context) {
	params := models.ProblemStudentParams{GroupID: strings.TrimSpace(c.Query("groupId"))}
	var err error
	if params.PeriodDays, err = periodDays(c, service.DefaultPeriodDays); err != nil {
		response.Error(c, err)
		return
	}
	if params.MinimumAbsences, err = intQuery(c, "minimumAbsences", service.DefaultMinimumAbsences); err != nil {
		response.Error(c, err)
		return
	}
	students, hit, err := h.analytics.ProblemStudents(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, students, hit)
}

// TeacherCompliance godoc
// @Summary Registration compliance of one teacher
// @Tags Analytics
// @Produce json
// @Param id path string true "Teacher ID"
// @Param periodDays query int false "Window length in days" default(30)
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /analytics/teachers/{id}/compliance [get]
func (h *AnalyticsHandler) TeacherCompliance(c *gin.Context) {
	days, err := periodDays(c, service.DefaultPeriodDays)
	if err != nil {
		response.Error(c, err)
		return
	}
	report, hit, err := h.analytics.TeacherCompliance(c.Request.Context(), c.Param("id"), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, report, hit)
}

// ProblemTeachers godoc
// @Summary Teachers below the compliance threshold
// @Tags Analytics
// @Produce json
// @Param periodDays query int false "Window length in days" default(30)
// @Param threshold query number false "Compliance threshold (0-100)" default(80)
// @Success 200 {object} response.Envelope
// @Router /analytics/problem-teachers [get]
func (h *AnalyticsHandler) ProblemTeachers(c *gin.Context) {
	days, err := periodDays(c, service.DefaultPeriodDays)
	if err != nil {
		response.Error(c, err)
		return
	}
	threshold, err := floatQuery(c, "threshold", service.DefaultComplianceThreshold)
	if err != nil {
		response.Error(c, err)
		return
	}
	teachers, hit, err := h.analytics.ProblemTeachers(c.Request.Context(), days, threshold)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, teachers, hit)
}

// MissingClasses godoc
// @Summary Today's classes without attendance
// @Tags Analytics
// @Produce json
// @Produce application/pdf
// @Param format query string false "json or pdf" default(json)
// @Success 200 {object} response.Envelope
// @Router /analytics/missing-classes [get]
func (h *AnalyticsHandler) MissingClasses(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "json")))
	if format != "json" && format != formatPDF {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "format must be json or pdf"))
		return
	}
	report, hit, err := h.analytics.MissingClassesToday(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if format == formatPDF {
		buf := &bytes.Buffer{}
		if err := export.RenderPDF(buf, missingClassesTable(report)); err != nil {
			response.Error(c, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to render report"))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="missing-classes-`+report.Date.String()+`.pdf"`)
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, pdfContentType, buf.Bytes())
		return
	}
	respondCached(c, report, hit)
}

// Metrics godoc
// @Summary Headline attendance figures for one day
// @Tags Analytics
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /analytics/metrics [get]
func (h *AnalyticsHandler) Metrics(c *gin.Context) {
	date, err := dateQuery(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	metrics, hit, err := h.analytics.DailyMetrics(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, metrics, hit)
}

// Alerts godoc
// @Summary Alert counters for one day
// @Tags Analytics
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /analytics/alerts [get]
func (h *AnalyticsHandler) Alerts(c *gin.Context) {
	date, err := dateQuery(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	alerts, hit, err := h.analytics.Alerts(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, alerts, hit)
}

// Dashboard godoc
// @Summary Composite attendance dashboard
// @Tags Analytics
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /analytics/dashboard [get]
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	date, err := dateQuery(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	dashboard, hit, err := h.analytics.Dashboard(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, dashboard, hit)
}

// RegistrationHistory godoc
// @Summary Class registration history
// @Description Lists every expected class meeting of the period, newest first, and whether and how punctually it was registered.
// @Tags Analytics
// @Produce json
// @Param from query string false "First date (YYYY-MM-DD), defaults to 30 days before to"
// @Param to query string false "Last date (YYYY-MM-DD), defaults to today"
// @Param teacherId query string false "Filter by teacher"
// @Param groupId query string false "Filter by group"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /analytics/registration-history [get]
func (h *AnalyticsHandler) RegistrationHistory(c *gin.Context) {
	from, err := dateQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := dateQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}
	history, hit, err := h.analytics.TeacherHistory(c.Request.Context(), models.RegistrationHistoryParams{
		From:      from,
		To:        to,
		TeacherID: strings.TrimSpace(c.Query("teacherId")),
		GroupID:   strings.TrimSpace(c.Query("groupId")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, history, hit)
}
