package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-attendance-api/internal/middleware"
	"github.com/noah-isme/school-attendance-api/internal/models"
)

// Handlers groups every HTTP handler mounted by RegisterRoutes.
type Handlers struct {
	Slots       *SlotHandler
	Assignments *AssignmentHandler
	Attendance  *AttendanceHandler
	Analytics   *AnalyticsHandler
	FollowUps   *FollowUpHandler
	Metrics     *MetricsHandler
}

// RegisterRoutes mounts the API under prefix. auth guards every route in the
// prefix; the observability endpoints stay public.
func RegisterRoutes(r *gin.Engine, prefix string, auth gin.HandlerFunc, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.Use(auth)

	admin := middleware.RequireRoles(models.RoleAdmin)
	recorders := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	analysts := middleware.RequireRoles(models.RoleAdmin, models.RolePrefect)

	slots := api.Group("/slots")
	slots.GET("", h.Slots.List)
	slots.GET("/available", h.Slots.Available)
	slots.GET("/:id", h.Slots.Get)

	assignments := api.Group("/assignments")
	assignments.GET("", h.Assignments.List)
	assignments.GET("/:id", h.Assignments.Get)
	assignments.POST("", admin, h.Assignments.Create)
	assignments.DELETE("/:id", admin, h.Assignments.Delete)

	attendance := api.Group("/attendance")
	attendance.POST("", recorders, h.Attendance.Record)
	attendance.POST("/batch", recorders, h.Attendance.Batch)
	attendance.GET("", h.Attendance.Query)
	attendance.GET("/roster", h.Attendance.Roster)
	attendance.GET("/export", analysts, h.Attendance.Export)

	analytics := api.Group("/analytics", middleware.WithResponseMeta())
	analytics.GET("/teachers/:id/compliance",
		middleware.RBAC(string(models.RoleAdmin), string(models.RolePrefect), middleware.RoleSelf),
		h.Analytics.TeacherCompliance)
	analytics.Use(analysts)
	analytics.GET("/students/:id", h.Analytics.Student)
	analytics.GET("/groups/:id", h.Analytics.Group)
	analytics.GET("/trend", h.Analytics.Trend)
	analytics.GET("/ranking", h.Analytics.Ranking)
	analytics.GET("/group-categories", h.Analytics.Categories)
	analytics.GET("/problem-students", h.Analytics.ProblemStudents)
	analytics.GET("/problem-teachers", h.Analytics.ProblemTeachers)
	analytics.GET("/missing-classes", h.Analytics.MissingClasses)
	analytics.GET("/metrics", h.Analytics.Metrics)
	analytics.GET("/alerts", h.Analytics.Alerts)
	analytics.GET("/dashboard", h.Analytics.Dashboard)
	analytics.GET("/registration-history", h.Analytics.RegistrationHistory)
	analytics.GET("/system", h.Metrics.System)

	followUps := api.Group("/follow-ups", analysts)
	followUps.POST("", h.FollowUps.Create)
	followUps.GET("", h.FollowUps.List)
	followUps.GET("/students/:id", h.FollowUps.Status)
	followUps.DELETE("/students/:id", h.FollowUps.Delete)
}
