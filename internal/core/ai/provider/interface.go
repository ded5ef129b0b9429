package provider

import (
	"context"
	"time"

	"meal-analyzer/internal/core/fusion"
	"meal-analyzer/internal/core/image"
)

// Detector 主要偵測器（anchor），回傳可能為空的偵測清單
type Detector interface {
	// Detect 偵測照片中的食物
	Detect(ctx context.Context, img *image.Image) ([]fusion.DetectionItem, error)

	// Name 協作者名稱，用於日誌與指標
	Name() string
}

// Validator 輔助驗證器，確認 anchor 結果並補上遺漏的食物
type Validator interface {
	// Validate 以照片與 anchor 結果產生 auxiliary 偵測
	Validate(ctx context.Context, img *image.Image, anchor []fusion.DetectionItem) ([]fusion.DetectionItem, error)

	// Name 協作者名稱
	Name() string
}

// Classifier 備援的整張圖片分類器
type Classifier interface {
	// Classify 回傳依信心值排序的候選
	Classify(ctx context.Context, img *image.Image) ([]fusion.DetectionItem, error)

	// Name 協作者名稱
	Name() string
}

// Config 定義外部服務配置
type Config struct {
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxRetries    int
	BaseURL       string
	MaxTokens     int
	MinConfidence float64
}
