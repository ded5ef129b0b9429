package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meal-analyzer/internal/api"
	"meal-analyzer/internal/core/ai/cache"
	"meal-analyzer/internal/core/ai/gemini"
	"meal-analyzer/internal/core/ai/openrouter"
	"meal-analyzer/internal/core/ai/provider"
	"meal-analyzer/internal/core/ai/remote"
	"meal-analyzer/internal/core/ai/service"
	"meal-analyzer/internal/core/analysis"
	"meal-analyzer/internal/core/nutrition"
	"meal-analyzer/internal/infrastructure/config"
	"meal-analyzer/internal/infrastructure/metrics"
	"meal-analyzer/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	// 載入設定（內含 .env）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("validator_provider", cfg.Validator.Provider),
		zap.String("validator_model", cfg.Validator.Model),
		zap.Bool("detector", cfg.Detector.URL != ""),
		zap.Bool("classifier", cfg.Classifier.URL != ""),
	)

	ctx := context.Background()

	tables, err := loadTables(ctx, cfg.Nutrition)
	if err != nil {
		common.LogFatal("Failed to load nutrition tables", zap.Error(err))
	}
	nut, gi, ext := tables.Sizes()
	common.LogInfo("營養資料已載入",
		zap.Int("nutrition", nut),
		zap.Int("glycemic_index", gi),
		zap.Int("extended", ext),
	)

	// 初始化快取；停用時為 nil
	store, err := cache.New(cache.Config{
		Enabled:         cfg.Cache.Enabled,
		Backend:         cfg.Cache.Backend,
		RedisAddr:       cfg.Cache.RedisAddr,
		MaxSize:         cfg.Cache.MaxSize,
		TTL:             cfg.Cache.TTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
	})
	if err != nil {
		common.LogFatal("Failed to initialize cache", zap.Error(err))
	}
	if store != nil {
		defer store.Close()
	}

	collab, err := buildCollaborators(ctx, cfg, store)
	if err != nil {
		common.LogFatal("Failed to initialize collaborators", zap.Error(err))
	}

	appMetrics := metrics.NewAppMetrics()

	svc, err := analysis.NewService(analysis.Config{
		ConfidenceThreshold:     cfg.Fusion.ConfidenceThreshold,
		SimilarityThreshold:     cfg.Fusion.SimilarityThreshold,
		LowConfidence:           cfg.Fusion.LowConfidence,
		ClassifierMinConfidence: cfg.Fusion.ClassifierMinConfidence,
		ValidatorTimeout:        cfg.Validator.Timeout,
		ReferenceArea:           cfg.Nutrition.ReferenceArea,
		Weights:                 cfg.Scoring,
	}, tables, collab, appMetrics)
	if err != nil {
		common.LogFatal("Failed to initialize analysis service", zap.Error(err))
	}

	// 設置路由
	router, err := api.SetupRouter(cfg, api.Dependencies{
		Analysis: svc,
		Tables:   tables,
		Metrics:  appMetrics,
		Collaborators: map[string]bool{
			"detector":   collab.Detector != nil,
			"validator":  collab.Validator != nil,
			"classifier": collab.Classifier != nil,
		},
	})
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogError("Failed to start server",
				zap.Error(err),
			)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	// 設置關閉超時
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.LogError("Server forced to shutdown",
			zap.Error(err),
		)
		os.Exit(1)
	}

	common.LogInfo("Server exited")
}

// loadTables 優先使用 SQLite，其次是 JSON 檔，最後是內建資料
func loadTables(ctx context.Context, cfg config.NutritionConfig) (*nutrition.Tables, error) {
	if cfg.SQLitePath != "" {
		return nutrition.LoadSQLite(ctx, cfg.SQLitePath)
	}
	return nutrition.LoadTables(ctx, nutrition.Paths{
		Nutrition:     cfg.NutritionPath,
		GlycemicIndex: cfg.GIPath,
		Extended:      cfg.ExtendedPath,
	})
}

func buildCollaborators(ctx context.Context, cfg *config.Config, store cache.Store) (analysis.Collaborators, error) {
	var collab analysis.Collaborators

	if cfg.Detector.URL != "" {
		collab.Detector = remote.NewDetector(inferenceConfig(cfg.Detector))
	}
	if cfg.Classifier.URL != "" {
		collab.Classifier = remote.NewClassifier(inferenceConfig(cfg.Classifier), cfg.Classifier.TopK)
	}

	pcfg := provider.Config{
		APIKey:        cfg.Validator.APIKey,
		Model:         cfg.Validator.Model,
		Timeout:       cfg.Validator.Timeout,
		MaxRetries:    cfg.Validator.MaxRetries,
		BaseURL:       cfg.Validator.BaseURL,
		MaxTokens:     cfg.Validator.MaxTokens,
		MinConfidence: cfg.Validator.MinConfidence,
	}

	var validator provider.Validator
	switch cfg.Validator.Provider {
	case config.ProviderOpenRouter:
		validator = openrouter.NewValidator(pcfg)
	case config.ProviderGemini:
		v, err := gemini.NewValidator(ctx, pcfg)
		if err != nil {
			return collab, err
		}
		validator = v
	}
	if validator != nil {
		collab.Validator = service.NewCachedValidator(validator, store)
	}

	return collab, nil
}

func inferenceConfig(c config.InferenceConfig) provider.Config {
	return provider.Config{
		APIKey:     c.APIKey,
		BaseURL:    c.URL,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
	}
}
