package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-attendance-api/internal/models"
	"github.com/noah-isme/school-attendance-api/internal/service"
	appErrors "github.com/noah-isme/school-attendance-api/pkg/errors"
)

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

var tokens = tokenStub{
	"admin":   {UserID: "u-admin", Role: models.RoleAdmin},
	"teacher": {UserID: "u-teacher", Role: models.RoleTeacher},
	"root":    {UserID: "u-root", Role: models.RoleSuperAdmin},
}

func newProtectedRouter(enabled bool, guard gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(tokens, enabled))
	router.GET("/items/:id", guard, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": Claims(c).UserID})
	})
	return router
}

func serve(router *gin.Engine, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestJWTRejectsMissingOrMalformedHeaders(t *testing.T) {
	router := newProtectedRouter(true, RequireRoles(models.RoleAdmin))

	rec := serve(router, "/items/1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))

	rec = serve(router, "/items/1", "Token admin")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(router, "/items/1", "Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTDisabledRunsAsLocalSuperadmin(t *testing.T) {
	router := newProtectedRouter(false, RequireRoles(models.RoleAdmin))

	rec := serve(router, "/items/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"local"`)
}

func TestRBAC(t *testing.T) {
	router := newProtectedRouter(true, RBAC(string(models.RoleAdmin), RoleSelf))

	cases := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"allowed role", "/items/1", "admin", http.StatusOK},
		{"superadmin always passes", "/items/1", "root", http.StatusOK},
		{"other role", "/items/1", "teacher", http.StatusForbidden},
		{"own resource", "/items/u-teacher", "teacher", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(router, tc.path, "Bearer "+tc.token)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRBACWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(router, "/", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/assignments/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	serve(router, "/assignments/a-1", "")
	serve(router, "/assignments/a-2", "")
	serve(router, "/nowhere/9f1c", "")

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(3), snapshot.RequestsTotal)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `http_requests_total{method="GET",path="/assignments/:id",status="204"} 2`)
	assert.Contains(t, body, `path="unmatched",status="404"`)
	assert.NotContains(t, body, "/nowhere")
	assert.NotContains(t, body, "a-1")
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(WithResponseMeta())
	router.GET("/", func(c *gin.Context) {
		time.Sleep(time.Millisecond)
		SetCacheHit(c, true)
		c.JSON(http.StatusOK, ResponseMeta(c))
	})

	rec := serve(router, "/", "")
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}
