// Package fusion 合併多個偵測來源的結果為單一去重清單
package fusion

import (
	"fmt"
	"math"
	"strings"

	"meal-analyzer/internal/pkg/common"
)

// Source 偵測來源
type Source string

const (
	SourceAnchor     Source = "anchor"
	SourceAuxiliary  Source = "auxiliary"
	SourceClassifier Source = "classifier"
	SourceHeuristic  Source = "heuristic"
)

// Valid 是否為已知來源
func (s Source) Valid() bool {
	switch s {
	case SourceAnchor, SourceAuxiliary, SourceClassifier, SourceHeuristic:
		return true
	}
	return false
}

// BBox 偵測框（像素座標）
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// DetectionItem 外部協作者產出的單一偵測結果，收到後不再修改
type DetectionItem struct {
	Name       string   `json:"name"`
	Confidence float64  `json:"confidence"`
	Source     Source   `json:"source"`
	BBox       *BBox    `json:"bbox,omitempty"`
	Area       *float64 `json:"area,omitempty"` // 佔整張圖的比例 (0, 1]
}

// Validate 檢查名稱與信心值
func (d DetectionItem) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("empty name: %w", common.ErrMalformedDetection)
	}
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range for %q: %w", d.Confidence, d.Name, common.ErrMalformedDetection)
	}
	return nil
}

// RawDetection 從 JSON 解析的偵測，欄位可能缺漏
type RawDetection struct {
	Name       *string  `json:"name"`
	Confidence *float64 `json:"confidence"`
	Source     string   `json:"source,omitempty"`
	BBox       *BBox    `json:"bbox,omitempty"`
	Area       *float64 `json:"area,omitempty"`
}

// ToDetection 轉換為 DetectionItem，缺少 name 或 confidence 時回傳 ErrMalformedDetection
func (r RawDetection) ToDetection(defaultSource Source) (DetectionItem, error) {
	if r.Name == nil {
		return DetectionItem{}, fmt.Errorf("missing name: %w", common.ErrMalformedDetection)
	}
	if r.Confidence == nil {
		return DetectionItem{}, fmt.Errorf("missing confidence for %q: %w", *r.Name, common.ErrMalformedDetection)
	}

	src := Source(strings.ToLower(r.Source))
	if !src.Valid() {
		src = defaultSource
	}
	item := DetectionItem{
		Name:       *r.Name,
		Confidence: *r.Confidence,
		Source:     src,
		BBox:       r.BBox,
		Area:       r.Area,
	}
	if err := item.Validate(); err != nil {
		return DetectionItem{}, err
	}
	return item, nil
}

// FusedItem 進入合併結果的偵測，Key 為其 NormalizedKey
type FusedItem struct {
	DetectionItem
	Key string `json:"-"`
}

// Stats 合併結果統計
type Stats struct {
	TotalItems        int            `json:"total_items"`
	PerSourceCounts   map[Source]int `json:"per_source_counts"`
	AverageConfidence float64        `json:"average_confidence"`
}
