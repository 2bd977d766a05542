package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-attendance-api/internal/service"
)

// unmatchedRoute labels requests that hit no registered route. Raw URLs never
// become label values.
const unmatchedRoute = "unmatched"

// Metrics observes every request under its route template, e.g.
// "/api/v1/assignments/:id", so ids do not fan out into separate series.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	if metrics == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(started))
	}
}
