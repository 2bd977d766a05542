package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-attendance-api/internal/middleware"
	"github.com/noah-isme/school-attendance-api/internal/models"
	appErrors "github.com/noah-isme/school-attendance-api/pkg/errors"
	"github.com/noah-isme/school-attendance-api/pkg/response"
)

func invalidParam(name, expected string) error {
	return appErrors.Clone(appErrors.ErrInvalidInput, "invalid "+name+" parameter, expected "+expected)
}

// intQuery reads an integer query parameter, returning fallback when absent.
func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam(name, "an integer")
	}
	return value, nil
}

func floatQuery(c *gin.Context, name string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, invalidParam(name, "a number")
	}
	return value, nil
}

// dateQuery reads a YYYY-MM-DD query parameter. Absent yields the zero date.
func dateQuery(c *gin.Context, name string) (models.Date, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return models.Date{}, nil
	}
	date, err := models.ParseDate(raw)
	if err != nil {
		return models.Date{}, invalidParam(name, "YYYY-MM-DD")
	}
	return date, nil
}

// respondCached writes an analytics payload with cache and timing metadata.
func respondCached(c *gin.Context, data interface{}, cacheHit bool) {
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, data, nil, middleware.ResponseMeta(c))
}
