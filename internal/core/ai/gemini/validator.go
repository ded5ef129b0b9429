// Package gemini 透過 Gemini 視覺模型驗證偵測結果
package gemini

import (
	"context"
	"fmt"

	"meal-analyzer/internal/core/ai"
	"meal-analyzer/internal/core/ai/provider"
	"meal-analyzer/internal/core/fusion"
	"meal-analyzer/internal/core/image"
	"meal-analyzer/internal/pkg/common"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

// Validator Gemini 驗證器
type Validator struct {
	client        *genai.Client
	model         string
	maxTokens     int32
	minConfidence float64
}

// NewValidator 創建 Gemini 驗證器
func NewValidator(ctx context.Context, cfg provider.Config) (*Validator, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Validator{
		client:        client,
		model:         model,
		maxTokens:     int32(cfg.MaxTokens),
		minConfidence: cfg.MinConfidence,
	}, nil
}

// Name 協作者名稱
func (v *Validator) Name() string {
	return "gemini"
}

// Validate 送出照片與 anchor 結果，回傳 auxiliary 偵測
func (v *Validator) Validate(ctx context.Context, img *image.Image, anchor []fusion.DetectionItem) ([]fusion.DetectionItem, error) {
	if len(anchor) == 0 {
		common.LogDebug("無 anchor 偵測，略過驗證")
		return []fusion.DetectionItem{}, nil
	}
	if img == nil {
		return nil, common.ErrNoImage
	}

	parts := []*genai.Part{
		genai.NewPartFromText(ai.BuildValidationPrompt(anchor, v.minConfidence)),
		{InlineData: &genai.Blob{Data: img.Data, MIMEType: "image/jpeg"}},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	temperature := float32(0.1)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
	}
	if v.maxTokens > 0 {
		config.MaxOutputTokens = v.maxTokens
	}

	result, err := v.client.Models.GenerateContent(ctx, v.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	return parseResponse(result, v.model, v.minConfidence)
}

func parseResponse(result *genai.GenerateContentResponse, model string, minConfidence float64) ([]fusion.DetectionItem, error) {
	if result == nil || len(result.Candidates) == 0 ||
		result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini")
	}

	if result.UsageMetadata != nil {
		common.LogDebug("Gemini 驗證完成",
			zap.String("model", model),
			zap.Int32("input_tokens", result.UsageMetadata.PromptTokenCount),
			zap.Int32("output_tokens", result.UsageMetadata.CandidatesTokenCount),
		)
	}
	return ai.ParseValidation(result.Text(), minConfidence)
}
