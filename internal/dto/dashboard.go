package dto

import "github.com/noah-isme/school-attendance-api/internal/models"

// DashboardResponse captures the aggregated attendance dashboard payload.
type DashboardResponse struct {
	Date       models.Date            `json:"date"`
	Metrics    models.DailyMetrics    `json:"metrics"`
	Trend      []models.TrendPoint    `json:"trend"`
	Ranking    models.GroupRanking    `json:"ranking"`
	Alerts     models.Alerts          `json:"alerts"`
	Categories models.GroupCategories `json:"categories"`
}
