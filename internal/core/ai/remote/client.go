// Package remote 以 HTTP 呼叫外部推論服務（物件偵測與整張圖片分類）
package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"meal-analyzer/internal/core/ai/provider"
	"meal-analyzer/internal/core/fusion"
	"meal-analyzer/internal/core/image"
	"meal-analyzer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type inferenceRequest struct {
	Image  string `json:"image"` // base64 JPEG
	Width  int    `json:"width"`
	Height int    `json:"height"`
	TopK   int    `json:"top_k,omitempty"`
}

func newClient(cfg provider.Config) *resty.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.MaxRetries)
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey))
	}
	return client
}

func post(ctx context.Context, client *resty.Client, path string, body, result interface{}) error {
	resp, err := client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		Post(path)
	if err != nil {
		return fmt.Errorf("inference request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("inference service returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// Detector 遠端物件偵測器
type Detector struct {
	client *resty.Client
}

// NewDetector 創建遠端偵測器
func NewDetector(cfg provider.Config) *Detector {
	return &Detector{client: newClient(cfg)}
}

// Name 協作者名稱
func (d *Detector) Name() string {
	return "detector"
}

type detectResponse struct {
	Detections []fusion.RawDetection `json:"detections"`
}

// Detect 呼叫 /detect，並以偵測框換算佔圖比例
func (d *Detector) Detect(ctx context.Context, img *image.Image) ([]fusion.DetectionItem, error) {
	if img == nil {
		return nil, common.ErrNoImage
	}

	var result detectResponse
	req := inferenceRequest{Image: img.Base64(), Width: img.Width, Height: img.Height}
	if err := post(ctx, d.client, "/detect", req, &result); err != nil {
		return nil, err
	}

	items := make([]fusion.DetectionItem, 0, len(result.Detections))
	for _, raw := range result.Detections {
		item, err := raw.ToDetection(fusion.SourceAnchor)
		if err != nil {
			common.LogWarn("略過格式錯誤的偵測", zap.String("collaborator", d.Name()), zap.Error(err))
			continue
		}
		item.Source = fusion.SourceAnchor
		if item.Area == nil && item.BBox != nil {
			if area := RelativeArea(*item.BBox, img.Width, img.Height); area > 0 {
				item.Area = &area
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// RelativeArea 偵測框面積佔整張圖的比例，限制在 [0, 1]
func RelativeArea(box fusion.BBox, width, height int) float64 {
	if width <= 0 || height <= 0 {
		return 0
	}
	w := box.X2 - box.X1
	h := box.Y2 - box.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return common.Clamp(w*h/(float64(width)*float64(height)), 0, 1)
}

// Classifier 遠端整張圖片分類器
type Classifier struct {
	client *resty.Client
	topK   int
}

// NewClassifier 創建遠端分類器
func NewClassifier(cfg provider.Config, topK int) *Classifier {
	if topK <= 0 {
		topK = 5
	}
	return &Classifier{client: newClient(cfg), topK: topK}
}

// Name 協作者名稱
func (c *Classifier) Name() string {
	return "classifier"
}

type prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type classifyResponse struct {
	Predictions []prediction `json:"predictions"`
}

// Classify 呼叫 /classify，回傳前 topK 個候選
func (c *Classifier) Classify(ctx context.Context, img *image.Image) ([]fusion.DetectionItem, error) {
	if img == nil {
		return nil, common.ErrNoImage
	}

	var result classifyResponse
	req := inferenceRequest{Image: img.Base64(), Width: img.Width, Height: img.Height, TopK: c.topK}
	if err := post(ctx, c.client, "/classify", req, &result); err != nil {
		return nil, err
	}

	items := make([]fusion.DetectionItem, 0, len(result.Predictions))
	for _, p := range result.Predictions {
		item := fusion.DetectionItem{Name: p.Label, Confidence: p.Score, Source: fusion.SourceClassifier}
		if err := item.Validate(); err != nil {
			common.LogWarn("略過格式錯誤的分類結果", zap.Error(err))
			continue
		}
		items = append(items, item)
		if len(items) == c.topK {
			break
		}
	}
	return items, nil
}
