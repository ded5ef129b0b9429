// Package openrouter 透過 OpenRouter 視覺模型驗證偵測結果
package openrouter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"meal-analyzer/internal/core/ai"
	"meal-analyzer/internal/core/ai/provider"
	"meal-analyzer/internal/core/fusion"
	"meal-analyzer/internal/core/image"
	"meal-analyzer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultBaseURL   = "https://openrouter.ai/api/v1"
	defaultModel     = "mistralai/pixtral-12b"
	defaultMaxTokens = 1000
)

// Validator OpenRouter 驗證器
type Validator struct {
	cfg    provider.Config
	client *resty.Client
}

// NewValidator 創建 OpenRouter 驗證器
func NewValidator(cfg provider.Config) *Validator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("HTTP-Referer", "https://meal-analyzer.local").
		SetHeader("X-Title", "Meal Analyzer")

	return &Validator{
		cfg:    cfg,
		client: client,
	}
}

// Name 協作者名稱
func (v *Validator) Name() string {
	return "openrouter"
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage ai.Usage `json:"usage"`
}

// Validate 送出照片與 anchor 結果，回傳 auxiliary 偵測
// anchor 為空時不呼叫外部服務
func (v *Validator) Validate(ctx context.Context, img *image.Image, anchor []fusion.DetectionItem) ([]fusion.DetectionItem, error) {
	if len(anchor) == 0 {
		common.LogDebug("無 anchor 偵測，略過驗證")
		return []fusion.DetectionItem{}, nil
	}
	if img == nil {
		return nil, common.ErrNoImage
	}

	prompt := ai.BuildValidationPrompt(anchor, v.cfg.MinConfidence)
	req := chatRequest{
		Model: v.cfg.Model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: img.DataURL()}},
				},
			},
		},
		MaxTokens:   v.cfg.MaxTokens,
		Temperature: 0.1,
	}

	var result chatResponse
	resp, err := v.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("failed to send request to OpenRouter: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("OpenRouter API returned error: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("no choices in OpenRouter response")
	}

	common.LogDebug("OpenRouter 驗證完成",
		zap.String("model", v.cfg.Model),
		zap.Int("total_tokens", result.Usage.TotalTokens),
	)
	return ai.ParseValidation(result.Choices[0].Message.Content, v.cfg.MinConfidence)
}
