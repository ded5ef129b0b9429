package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"meal-analyzer/internal/core/scoring"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig       `mapstructure:"app"`
	Server      ServerConfig    `mapstructure:"server"`
	Fusion      FusionConfig    `mapstructure:"fusion"`
	Nutrition   NutritionConfig `mapstructure:"nutrition"`
	Detector    InferenceConfig `mapstructure:"detector"`
	Classifier  InferenceConfig `mapstructure:"classifier"`
	Validator   ValidatorConfig `mapstructure:"validator"`
	Scoring     scoring.Weights `mapstructure:"scoring"`
	Cache       CacheConfig     `mapstructure:"cache"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	Image       ImageConfig     `mapstructure:"image"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	DedupWindow time.Duration   `mapstructure:"dedup_window"`
	LogLevel    string          `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// FusionConfig 偵測合併門檻
type FusionConfig struct {
	ConfidenceThreshold     float64 `mapstructure:"confidence_threshold"`
	SimilarityThreshold     float64 `mapstructure:"similarity_threshold"`
	LowConfidence           float64 `mapstructure:"low_confidence"`
	ClassifierMinConfidence float64 `mapstructure:"classifier_min_confidence"`
}

// NutritionConfig 營養查詢表來源；路徑為空時使用內建資料
type NutritionConfig struct {
	NutritionPath string  `mapstructure:"nutrition_path"`
	GIPath        string  `mapstructure:"gi_path"`
	ExtendedPath  string  `mapstructure:"extended_path"`
	SQLitePath    string  `mapstructure:"sqlite_path"`
	ReferenceArea float64 `mapstructure:"reference_area"`
}

// InferenceConfig 遠端推論服務，URL 為空表示停用
type InferenceConfig struct {
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	TopK       int           `mapstructure:"top_k"`
}

// 驗證器種類
const (
	ProviderNone       = "none"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// ValidatorConfig 輔助驗證器
type ValidatorConfig struct {
	Provider      string        `mapstructure:"provider"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	BaseURL       string        `mapstructure:"base_url"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	MaxRetries    int           `mapstructure:"max_retries"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MinConfidence float64       `mapstructure:"min_confidence"`
}

// CacheConfig 驗證結果快取配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// ImageConfig 圖片配置
type ImageConfig struct {
	MaxSizeBytes int64 `mapstructure:"max_size_bytes"`
}

// MetricsConfig 指標配置
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig 載入設定；.env 不存在時只讀環境變數
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("validator.provider", "VALIDATOR_PROVIDER")
	_ = v.BindEnv("validator.api_key", "VALIDATOR_API_KEY", "OPENROUTER_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("validator.model", "VALIDATOR_MODEL")
	_ = v.BindEnv("validator.max_tokens", "MODEL_MAX_TOKENS")
	_ = v.BindEnv("detector.url", "DETECTOR_URL")
	_ = v.BindEnv("classifier.url", "CLASSIFIER_URL")
	_ = v.BindEnv("nutrition.sqlite_path", "NUTRITION_SQLITE_PATH")
	_ = v.BindEnv("cache.enabled", "CACHE_ENABLED")
	_ = v.BindEnv("cache.backend", "CACHE_BACKEND")
	_ = v.BindEnv("cache.redis_addr", "REDIS_ADDR")
	_ = v.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	_ = v.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	_ = v.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	_ = v.BindEnv("dedup_window", "DEDUP_WINDOW")
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.port", "PORT")

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// logger 尚未初始化，改用 fmt.Println
	fmt.Println("Loading configuration", "validator:", v.GetString("validator.provider"), "api_key:", maskAPIKey(v.GetString("validator.api_key")))

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// maskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "meal-analyzer")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "45s")

	// 合併門檻
	v.SetDefault("fusion.confidence_threshold", 0.3)
	v.SetDefault("fusion.similarity_threshold", 0.8)
	v.SetDefault("fusion.low_confidence", 0.5)
	v.SetDefault("fusion.classifier_min_confidence", 0.3)

	// 營養資料
	v.SetDefault("nutrition.nutrition_path", "")
	v.SetDefault("nutrition.gi_path", "")
	v.SetDefault("nutrition.extended_path", "")
	v.SetDefault("nutrition.sqlite_path", "")
	v.SetDefault("nutrition.reference_area", 0.15)

	// 推論服務
	v.SetDefault("detector.url", "")
	v.SetDefault("detector.timeout", "30s")
	v.SetDefault("detector.max_retries", 1)
	v.SetDefault("classifier.url", "")
	v.SetDefault("classifier.timeout", "30s")
	v.SetDefault("classifier.top_k", 5)

	// 輔助驗證器
	v.SetDefault("validator.provider", ProviderNone)
	v.SetDefault("validator.max_tokens", 1000)
	v.SetDefault("validator.max_retries", 2)
	v.SetDefault("validator.timeout", "20s")
	v.SetDefault("validator.min_confidence", 0.3)

	// 評分權重
	w := scoring.DefaultWeights()
	v.SetDefault("scoring.meal_diversity", w.MealDiversity)
	v.SetDefault("scoring.nutrient_completeness", w.NutrientCompleteness)
	v.SetDefault("scoring.glycemic_load_score", w.GlycemicLoadScore)
	v.SetDefault("scoring.fiber_adequacy", w.FiberAdequacy)
	v.SetDefault("scoring.protein_adequacy", w.ProteinAdequacy)
	v.SetDefault("scoring.fat_quality", w.FatQuality)
	v.SetDefault("scoring.sodium_penalty", w.SodiumPenalty)
	v.SetDefault("scoring.diabetes_friendly", w.DiabetesFriendly)

	// 快取設定
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")

	// 圖片設定
	v.SetDefault("image.max_size_bytes", 10*1024*1024) // 10MB

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	f := config.Fusion
	for name, val := range map[string]float64{
		"confidence_threshold":      f.ConfidenceThreshold,
		"similarity_threshold":      f.SimilarityThreshold,
		"low_confidence":            f.LowConfidence,
		"classifier_min_confidence": f.ClassifierMinConfidence,
	} {
		if val < 0 || val > 1 {
			return fmt.Errorf("fusion %s must be within [0, 1]", name)
		}
	}
	if f.SimilarityThreshold == 0 {
		return fmt.Errorf("fusion similarity_threshold must be positive")
	}

	if err := config.Scoring.Validate(); err != nil {
		return err
	}

	switch config.Validator.Provider {
	case ProviderNone, "":
	case ProviderOpenRouter, ProviderGemini:
		if config.Validator.APIKey == "" {
			return fmt.Errorf("validator %s requires an api key", config.Validator.Provider)
		}
	default:
		return fmt.Errorf("unknown validator provider %q", config.Validator.Provider)
	}

	if config.Cache.Enabled {
		if config.Cache.Backend != "memory" && config.Cache.Backend != "redis" {
			return fmt.Errorf("unknown cache backend %q", config.Cache.Backend)
		}
		if config.Cache.MaxSize <= 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("invalid cache cleanup interval")
		}
	}

	if config.RateLimit.Enabled && (config.RateLimit.Requests <= 0 || config.RateLimit.Window <= 0) {
		return fmt.Errorf("invalid rate limit")
	}
	return nil
}
