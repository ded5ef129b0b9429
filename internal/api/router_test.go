package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"meal-analyzer/internal/core/analysis"
	"meal-analyzer/internal/core/nutrition"
	"meal-analyzer/internal/infrastructure/config"
	"meal-analyzer/internal/infrastructure/metrics"
	"meal-analyzer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Version: "test", Debug: true},
		Server:    config.ServerConfig{Port: 8080, RequestTimeout: 5 * time.Second},
		Image:     config.ImageConfig{MaxSizeBytes: 1 << 20},
		RateLimit: config.RateLimitConfig{Enabled: true, Requests: 100, Window: time.Minute},
		Metrics:   config.MetricsConfig{Enabled: true},
	}
}

func testDeps(t *testing.T) Dependencies {
	t.Helper()
	tables, err := nutrition.DefaultTables()
	require.NoError(t, err)
	svc, err := analysis.NewService(analysis.DefaultConfig(), tables, analysis.Collaborators{}, nil)
	require.NoError(t, err)
	return Dependencies{Analysis: svc, Tables: tables, Metrics: metrics.NewAppMetrics()}
}

func TestRouterRoutes(t *testing.T) {
	router, err := SetupRouter(testConfig(), testDeps(t))
	require.NoError(t, err)

	for _, path := range []string{"/health", "/ready", "/live", "/api/v1/foods/beans"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"), path)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/meal/score",
		strings.NewReader(`{"anchor": [{"name": "beans", "confidence": 0.8}]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `path="/api/v1/meal/score"`)
}

func TestRouterWithoutMetrics(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	router, err := SetupRouter(cfg, testDeps(t))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), common.ErrCodeNotFound)
}

func TestRouterRequiresAnalysis(t *testing.T) {
	_, err := SetupRouter(testConfig(), Dependencies{})
	assert.Error(t, err)
}
