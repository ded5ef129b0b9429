// Package nutrition 營養資料查詢與偵測項目的營養補全
package nutrition

import "meal-analyzer/internal/core/fusion"

// Entry 精選營養表的一筆資料（每份）
type Entry struct {
	Calories float64           `json:"calories"`
	Carbs    float64           `json:"carbs"`
	Protein  float64           `json:"protein"`
	Fat      float64           `json:"fat"`
	Fiber    float64           `json:"fiber"`
	Flags    []string          `json:"flags,omitempty"`
	Warnings map[string]string `json:"warnings,omitempty"`
}

// ExtendedEntry 擴充資料集的一筆資料
type ExtendedEntry struct {
	Name          string   `json:"name"`
	Calories      float64  `json:"calories"`
	Carbs         float64  `json:"carbs"`
	Protein       float64  `json:"protein"`
	Fat           float64  `json:"fat"`
	Fiber         float64  `json:"fiber"`
	GlycemicIndex *int     `json:"glycemic_index,omitempty"`
	GICategory    string   `json:"gi_category,omitempty"`
	Flags         []string `json:"flags,omitempty"`
}

// MatchTier 營養資料命中的層級
type MatchTier string

const (
	TierExact    MatchTier = "exact"
	TierPartial  MatchTier = "partial"
	TierExtended MatchTier = "extended"
	TierDefault  MatchTier = "default"
)

// FlagUnknown 查無營養資料時附加的標記
const FlagUnknown = "unknown"

// EnrichedFoodItem 補上營養資料的合併項目
type EnrichedFoodItem struct {
	Name           string            `json:"name"`
	Confidence     float64           `json:"confidence"`
	Source         fusion.Source     `json:"source"`
	BBox           *fusion.BBox      `json:"bbox,omitempty"`
	Calories       float64           `json:"calories"`
	Carbs          float64           `json:"carbs"`
	Protein        float64           `json:"protein"`
	Fat            float64           `json:"fat"`
	Fiber          float64           `json:"fiber"`
	GlycemicIndex  *int              `json:"glycemic_index"`
	Flags          []string          `json:"flags"`
	HealthWarnings map[string]string `json:"warnings"`
	PortionAdvice  string            `json:"portion_advice"`
	Portion        float64           `json:"portion,omitempty"`
	MatchTier      MatchTier         `json:"match_tier"`
	GIMatchTier    MatchTier         `json:"gi_match_tier"`
}

// HasFlag 是否帶有指定標記
func (e EnrichedFoodItem) HasFlag(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// GICategory 依升糖指數分類：≤55 low、≤69 medium、其餘 high
func GICategory(gi int) string {
	switch {
	case gi <= 55:
		return "low"
	case gi <= 69:
		return "medium"
	default:
		return "high"
	}
}
