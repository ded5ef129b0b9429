package fusion

import (
	"math"
	"sort"

	"meal-analyzer/internal/core/food"
	"meal-analyzer/internal/pkg/common"

	"go.uber.org/zap"
)

// DefaultConfidenceThreshold 輔助來源的最低信心值
const DefaultConfidenceThreshold = 0.3

// Engine 合併 anchor 與 auxiliary 偵測
type Engine struct {
	confidenceThreshold float64
	matcher             *food.Matcher
}

// NewEngine 創建合併引擎，門檻超出 [0, 1] 時回傳 ValidationError
func NewEngine(confidenceThreshold, similarityThreshold float64) (*Engine, error) {
	if math.IsNaN(confidenceThreshold) || confidenceThreshold < 0 || confidenceThreshold > 1 {
		return nil, common.NewValidationError("confidence threshold must be within [0, 1]")
	}
	matcher, err := food.NewMatcher(similarityThreshold)
	if err != nil {
		return nil, err
	}
	return &Engine{
		confidenceThreshold: confidenceThreshold,
		matcher:             matcher,
	}, nil
}

// ConfidenceThreshold 目前的輔助來源門檻
func (e *Engine) ConfidenceThreshold() float64 {
	return e.confidenceThreshold
}

// fusedSet 以插入順序保存 NormalizedKey → FusedItem
type fusedSet struct {
	keys  []string
	items map[string]*FusedItem
}

func newFusedSet(capacity int) *fusedSet {
	return &fusedSet{
		keys:  make([]string, 0, capacity),
		items: make(map[string]*FusedItem, capacity),
	}
}

func (s *fusedSet) insert(key string, item DetectionItem) {
	s.keys = append(s.keys, key)
	s.items[key] = &FusedItem{DetectionItem: item, Key: key}
}

// Fuse 合併兩組偵測
//
// anchor 全部保留；同鍵的 auxiliary 只有在信心值嚴格較高時才取代，
// 與既有鍵相似的 auxiliary 直接捨棄。結果依信心值遞減排序，同分保持插入順序。
func (e *Engine) Fuse(anchor, auxiliary []DetectionItem) []FusedItem {
	set := newFusedSet(len(anchor) + len(auxiliary))

	for _, item := range anchor {
		item, ok := accept(item, SourceAnchor)
		if !ok {
			continue
		}
		key := food.Normalize(item.Name)
		if existing, ok := set.items[key]; ok {
			if item.Confidence > existing.Confidence {
				existing.DetectionItem = item
			}
			continue
		}
		set.insert(key, item)
	}

	dropped := 0
	for _, item := range auxiliary {
		item, ok := accept(item, SourceAuxiliary)
		if !ok {
			continue
		}
		if item.Confidence < e.confidenceThreshold {
			continue
		}
		key := food.Normalize(item.Name)
		if existing, ok := set.items[key]; ok {
			if item.Confidence > existing.Confidence {
				existing.DetectionItem = item
			}
			continue
		}
		if e.matcher.IsDuplicate(key, set.keys) {
			dropped++
			continue
		}
		set.insert(key, item)
	}

	result := make([]FusedItem, 0, len(set.keys))
	for _, key := range set.keys {
		result = append(result, *set.items[key])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Confidence > result[j].Confidence
	})

	common.LogDebug("偵測合併完成",
		zap.Int("anchor", len(anchor)),
		zap.Int("auxiliary", len(auxiliary)),
		zap.Int("fused", len(result)),
		zap.Int("near_duplicates", dropped),
	)
	return result
}

// accept 略過格式錯誤的偵測並補上來源
func accept(item DetectionItem, fallback Source) (DetectionItem, bool) {
	if err := item.Validate(); err != nil {
		common.LogWarn("略過格式錯誤的偵測",
			zap.String("source", string(fallback)),
			zap.Error(err),
		)
		return item, false
	}
	if item.Source == "" {
		item.Source = fallback
	}
	return item, true
}

// Statistics 統計合併結果
func Statistics(fused []FusedItem) Stats {
	stats := Stats{
		TotalItems:      len(fused),
		PerSourceCounts: make(map[Source]int),
	}
	if len(fused) == 0 {
		return stats
	}

	var sum float64
	for _, item := range fused {
		stats.PerSourceCounts[item.Source]++
		sum += item.Confidence
	}
	stats.AverageConfidence = math.Round(sum/float64(len(fused))*1000) / 1000
	return stats
}
