// Package ai 外部視覺模型的提示詞與回應解析
package ai

import (
	"fmt"
	"strings"

	"meal-analyzer/internal/core/fusion"
	"meal-analyzer/internal/pkg/common"

	"go.uber.org/zap"
)

// ValidationResponse 驗證器回傳的 JSON 結構
type ValidationResponse struct {
	ValidatedFoods []ValidatedFood `json:"validated_foods"`
}

// ValidatedFood 單一驗證結果
type ValidatedFood struct {
	Name       *string  `json:"name"`
	Confidence *float64 `json:"confidence"`
	Source     string   `json:"source,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// Usage 使用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

const validationPrompt = `You are a precise food detection system. Analyze this image and the provided detector results.

DETECTED: %s

TASK:
1. Validate each detection - confirm if the food is actually visible
2. Identify any additional visible food items the detector missed
3. Return ONLY foods you can clearly see in the image

STRICT RULES:
- NO hallucinations: only report foods clearly visible
- Provide confidence score 0.0-1.0 for each item
- Use lowercase names (e.g., "rice", "chicken", "beans")
- If a detection is wrong, exclude it
- For additional foods, confidence must be >= %.1f

OUTPUT FORMAT (valid JSON only):
{
  "validated_foods": [
    {"name": "rice", "confidence": 0.85, "notes": "confirmed present"},
    {"name": "beans", "confidence": 0.72, "notes": "additional item found"}
  ]
}

Return JSON only, no other text.`

// BuildValidationPrompt 以 anchor 結果組出驗證提示詞
func BuildValidationPrompt(anchor []fusion.DetectionItem, minConfidence float64) string {
	names := make([]string, 0, len(anchor))
	for _, item := range anchor {
		names = append(names, item.Name)
	}
	return fmt.Sprintf(validationPrompt, common.StringSliceToString(names), minConfidence)
}

// ParseValidation 解析驗證器回應
// 允許 ``` 包裹與前後說明文字；缺欄位的項目略過，低於 minConfidence 的項目過濾
func ParseValidation(content string, minConfidence float64) ([]fusion.DetectionItem, error) {
	raw := common.ExtractJSONObject(content)
	if !strings.HasPrefix(raw, "{") {
		return nil, fmt.Errorf("no JSON object in validator response")
	}

	var parsed ValidationResponse
	if err := common.ParseJSON(raw, &parsed); err != nil {
		// 模型偶爾輸出未加引號的鍵
		if err2 := common.ParseJSON(common.QuoteJSONKeys(raw), &parsed); err2 != nil {
			return nil, fmt.Errorf("failed to parse validator response: %w", err)
		}
	}

	items := make([]fusion.DetectionItem, 0, len(parsed.ValidatedFoods))
	for _, food := range parsed.ValidatedFoods {
		item, err := fusion.RawDetection{Name: food.Name, Confidence: food.Confidence}.ToDetection(fusion.SourceAuxiliary)
		if err != nil {
			common.LogWarn("略過格式錯誤的驗證結果", zap.Error(err))
			continue
		}
		if item.Confidence < minConfidence {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
