package nutrition

import (
	"strings"

	"meal-analyzer/internal/core/food"
	"meal-analyzer/internal/core/fusion"
	"meal-analyzer/internal/pkg/common"

	"go.uber.org/zap"
)

// 查無資料時的預設營養值
var defaultEntry = Entry{
	Calories: 150,
	Carbs:    20,
	Protein:  5,
	Fat:      5,
	Fiber:    2,
	Flags:    []string{FlagUnknown},
}

const (
	// DefaultReferenceArea 一份標準份量在照片中所佔的比例
	DefaultReferenceArea = 0.15

	minPortion = 0.3
	maxPortion = 2.0
)

// Enricher 為合併後的偵測項目補上營養資料
type Enricher struct {
	tables        *Tables
	referenceArea float64
}

// NewEnricher 創建營養補全器，referenceArea ≤ 0 時使用預設值
func NewEnricher(tables *Tables, referenceArea float64) *Enricher {
	if referenceArea <= 0 {
		referenceArea = DefaultReferenceArea
	}
	if tables == nil {
		tables = NewTables(nil, nil, nil)
	}
	return &Enricher{
		tables:        tables,
		referenceArea: referenceArea,
	}
}

// Tables 使用中的查詢表
func (e *Enricher) Tables() *Tables {
	return e.tables
}

// Enrich 補上營養資料；永遠回傳完整數值欄位
func (e *Enricher) Enrich(item fusion.FusedItem) EnrichedFoodItem {
	key := item.Key
	if key == "" {
		key = food.Normalize(item.Name)
	}

	enriched := e.lookup(key, item.Name)
	enriched.Name = item.Name
	enriched.Confidence = item.Confidence
	enriched.Source = item.Source
	enriched.BBox = item.BBox

	if item.Area != nil && *item.Area > 0 {
		portion := common.Clamp(*item.Area/e.referenceArea, minPortion, maxPortion)
		enriched.Portion = common.Round1(portion)
		enriched.Calories = common.Round1(enriched.Calories * portion)
		enriched.Carbs = common.Round1(enriched.Carbs * portion)
		enriched.Protein = common.Round1(enriched.Protein * portion)
		enriched.Fat = common.Round1(enriched.Fat * portion)
		enriched.Fiber = common.Round1(enriched.Fiber * portion)
	}

	enriched.PortionAdvice = PortionAdvice(enriched)
	return enriched
}

// EnrichAll 依序補全多個項目
func (e *Enricher) EnrichAll(items []fusion.FusedItem) []EnrichedFoodItem {
	result := make([]EnrichedFoodItem, 0, len(items))
	for _, item := range items {
		result = append(result, e.Enrich(item))
	}
	return result
}

// Lookup 以名稱查詢單一食物的營養資料（不含份量縮放）
func (e *Enricher) Lookup(name string) EnrichedFoodItem {
	enriched := e.lookup(food.Normalize(name), name)
	enriched.Name = name
	enriched.PortionAdvice = PortionAdvice(enriched)
	return enriched
}

func (e *Enricher) lookup(key, name string) EnrichedFoodItem {
	entry, tier, matched := e.tables.lookupEntry(key)
	if tier == TierDefault {
		common.LogWarn("查無營養資料，使用預設值", zap.String("food", name))
		entry = defaultEntry
	} else if tier == TierPartial {
		common.LogDebug("營養資料部分比對", zap.String("food", name), zap.String("matched", matched))
	}
	gi, giTier := e.tables.lookupGI(key)

	// 複製，避免共用的查詢表被呼叫端修改
	flags := make([]string, len(entry.Flags))
	copy(flags, entry.Flags)
	warnings := make(map[string]string, len(entry.Warnings))
	for k, v := range entry.Warnings {
		warnings[k] = v
	}

	return EnrichedFoodItem{
		Calories:       entry.Calories,
		Carbs:          entry.Carbs,
		Protein:        entry.Protein,
		Fat:            entry.Fat,
		Fiber:          entry.Fiber,
		GlycemicIndex:  gi,
		Flags:          flags,
		HealthWarnings: warnings,
		MatchTier:      tier,
		GIMatchTier:    giTier,
	}
}

// PortionAdvice 依升糖指數、標記與營養值產生份量建議
func PortionAdvice(item EnrichedFoodItem) string {
	var parts []string

	if item.GlycemicIndex != nil && *item.GlycemicIndex > 0 {
		switch gi := *item.GlycemicIndex; {
		case gi >= 70:
			parts = append(parts, "High GI - limit portion for blood sugar control")
		case gi >= 56:
			parts = append(parts, "Moderate GI - consume in moderation")
		default:
			parts = append(parts, "Low GI - good for steady energy")
		}
	}

	if item.HasFlag("fried") {
		parts = append(parts, "Fried food - reduce portion to lower fat intake")
	}
	if item.HasFlag("carb-heavy") || item.HasFlag("starchy") {
		parts = append(parts, "High carb content - balance with protein and vegetables")
	}
	if item.Calories > 300 {
		parts = append(parts, "Calorie-dense - watch portion size")
	}
	if item.Fiber < 2 {
		parts = append(parts, "Low fiber - pair with vegetables")
	}

	if len(parts) == 0 {
		return "Enjoy in moderation"
	}
	return strings.Join(parts, " | ")
}
