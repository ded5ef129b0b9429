package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"meal-analyzer/internal/core/nutrition"
	"meal-analyzer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.HealthCheck)
	r.GET("/ready", h.ReadinessCheck)
	r.GET("/live", h.LivenessCheck)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthReportsTables(t *testing.T) {
	tables, err := nutrition.DefaultTables()
	require.NoError(t, err)
	r := newRouter(NewHandler("1.2.3", tables, map[string]bool{"detector": true, "validator": false}))

	rec := get(r, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Greater(t, resp.Tables.Nutrition, 0)
	assert.True(t, resp.Collaborators["detector"])

	assert.Equal(t, http.StatusOK, get(r, "/ready").Code)
	assert.Equal(t, http.StatusOK, get(r, "/live").Code)
}

func TestNotReadyWithoutTables(t *testing.T) {
	r := newRouter(NewHandler("dev", nutrition.NewTables(nil, nil, nil), nil))

	rec := get(r, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp common.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, common.ErrCodeServiceUnavailable, resp.Code)
	assert.Equal(t, "nutrition table is empty", resp.Details)
	assert.Equal(t, http.StatusOK, get(r, "/live").Code)
}
