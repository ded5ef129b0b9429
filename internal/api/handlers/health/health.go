package health

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"meal-analyzer/internal/core/nutrition"
	"meal-analyzer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status        string                 `json:"status"`
	Timestamp     time.Time              `json:"timestamp"`
	Version       string                 `json:"version"`
	Uptime        string                 `json:"uptime"`
	Runtime       map[string]interface{} `json:"runtime"`
	Tables        TableStatus            `json:"tables"`
	Collaborators map[string]bool        `json:"collaborators"`
}

// TableStatus 查詢表筆數
type TableStatus struct {
	Nutrition     int `json:"nutrition"`
	GlycemicIndex int `json:"glycemic_index"`
	Extended      int `json:"extended"`
}

var errNoNutrition = errors.New("nutrition table is empty")

// Handler 健康檢查處理器
type Handler struct {
	version       string
	started       time.Time
	tables        *nutrition.Tables
	collaborators map[string]bool
}

// NewHandler 創建健康檢查處理器；collaborators 為各外部協作者是否已設定
func NewHandler(version string, tables *nutrition.Tables, collaborators map[string]bool) *Handler {
	return &Handler{
		version:       version,
		started:       time.Now(),
		tables:        tables,
		collaborators: collaborators,
	}
}

func (h *Handler) tableStatus() TableStatus {
	if h.tables == nil {
		return TableStatus{}
	}
	n, gi, ext := h.tables.Sizes()
	return TableStatus{Nutrition: n, GlycemicIndex: gi, Extended: ext}
}

// HealthCheck 健康檢查
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
		Tables:        h.tableStatus(),
		Collaborators: h.collaborators,
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 營養表載入後才算就緒；協作者缺席只會降級，不影響就緒
func (h *Handler) ReadinessCheck(c *gin.Context) {
	tables := h.tableStatus()
	if tables.Nutrition == 0 {
		common.AbortWithError(c, common.ErrServiceUnavailable.WithErr(errNoNutrition), true)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"tables": tables,
	})
}

// LivenessCheck 存活檢查
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
