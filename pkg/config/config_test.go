package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	t.Setenv("ATTENDANCE_MAX_BATCH", "25")
	t.Setenv("ANALYTICS_CACHE_TTL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 25, cfg.Attendance.MaxBatch)
	assert.Equal(t, 50, cfg.Attendance.PageSize)
	assert.Equal(t, 5*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	require.NotNil(t, cfg.School.Location)
}

func TestLoadLocationFallsBackToFixedOffset(t *testing.T) {
	loc := LoadLocation("Not/AZone")
	_, offset := time.Date(2024, 3, 4, 12, 0, 0, 0, loc).Zone()
	assert.Equal(t, -7*60*60, offset)
}
