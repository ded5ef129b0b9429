package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"meal-analyzer/internal/api/handlers/health"
	"meal-analyzer/internal/api/handlers/meal"
	"meal-analyzer/internal/api/middleware"
	"meal-analyzer/internal/core/analysis"
	"meal-analyzer/internal/core/image"
	"meal-analyzer/internal/core/nutrition"
	"meal-analyzer/internal/infrastructure/config"
	"meal-analyzer/internal/infrastructure/metrics"
	"meal-analyzer/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 請求體大小限制的額外空間（multipart 邊界與 JSON base64 膨脹）
const bodyOverhead = 1 << 20

// Dependencies 路由需要的服務
type Dependencies struct {
	Analysis      *analysis.Service
	Tables        *nutrition.Tables
	Metrics       *metrics.AppMetrics
	Collaborators map[string]bool
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, error) {
	if deps.Analysis == nil {
		return nil, errors.New("analysis service is required")
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger(deps.Metrics))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// base64 會讓 JSON 內的圖片膨脹約 4/3
	maxBody := cfg.Image.MaxSizeBytes*4/3 + bodyOverhead
	router.Use(middleware.BodySizeLimit(maxBody))

	if timeout := cfg.Server.RequestTimeout; timeout > 0 {
		router.Use(requestTimeout(timeout))
	}

	healthHandler := health.NewHandler(cfg.App.Version, deps.Tables, deps.Collaborators)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	router.NoRoute(func(c *gin.Context) {
		common.AbortWithError(c, common.ErrNotFound, cfg.App.Debug)
	})

	if cfg.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	mealHandler := meal.NewHandler(deps.Analysis, image.NewService(cfg.Image.MaxSizeBytes), cfg.App.Debug)

	api := router.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	{
		mealGroup := api.Group("/meal")
		{
			mealGroup.POST("/analyze", middleware.Deduplication(cfg.DedupWindow), mealHandler.HandleAnalyze)
			mealGroup.POST("/score", mealHandler.HandleScore)
		}

		api.GET("/foods/:name", mealHandler.HandleFoodLookup)
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Bool("metrics", cfg.Metrics.Enabled),
		zap.Duration("request_timeout", cfg.Server.RequestTimeout),
		zap.Int64("max_body_size", maxBody),
	)

	return router, nil
}

// requestTimeout 為每個請求設定逾時
func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeout),
			)
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, common.ErrGatewayTimeout.Response(false))
		}
	}
}
