package scoring

import (
	"fmt"
	"math"

	"meal-analyzer/internal/core/food"
	"meal-analyzer/internal/core/nutrition"
	"meal-analyzer/internal/pkg/common"
)

const (
	neutralGI          = 50
	fiberTargetGrams   = 8.0
	proteinTargetGrams = 25.0
	friedPenalty       = 20.0
	sodiumPenalty      = 15.0
	diversityPerItem   = 25.0

	idealProteinRatio = 0.3
	idealCarbRatio    = 0.4
	idealFatRatio     = 0.3
)

var sodiumFlags = []string{"processed", "salty", "stew"}

// Scorer 將補全後的項目轉為整餐摘要
type Scorer struct {
	weights Weights
}

// NewScorer 創建評分器，權重不合法時回傳 ValidationError
func NewScorer(weights Weights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights}, nil
}

// Weights 目前的權重
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score 計算整餐摘要；空清單回傳 Unknown 摘要
func (s *Scorer) Score(items []nutrition.EnrichedFoodItem) MealSummary {
	if len(items) == 0 {
		return emptySummary()
	}

	totals := Totals(items)
	components := Components(items, totals)
	// Quality 以四捨五入後的分數分級
	score := common.Round1(common.Clamp(s.weights.Apply(components), 0, 100))

	rounded := roundComponents(components)
	return MealSummary{
		MealTotals: MealTotals{
			ItemCount:     totals.ItemCount,
			TotalCalories: common.Round1(totals.TotalCalories),
			TotalCarbs:    common.Round1(totals.TotalCarbs),
			TotalProtein:  common.Round1(totals.TotalProtein),
			TotalFat:      common.Round1(totals.TotalFat),
			TotalFiber:    common.Round1(totals.TotalFiber),
			GlycemicLoad:  common.Round1(totals.GlycemicLoad),
		},
		Score:           score,
		Quality:         QualityFor(score),
		Components:      &rounded,
		Recommendations: summaryRecommendations(components),
		Warnings:        summaryWarnings(items, totals.GlycemicLoad),
	}
}

func emptySummary() MealSummary {
	return MealSummary{
		Quality:         QualityUnknown,
		Recommendations: []string{"No foods detected"},
		Warnings:        []string{},
	}
}

// Totals 加總營養素；未知升糖指數以 50 計算升糖負荷，不回寫到項目
func Totals(items []nutrition.EnrichedFoodItem) MealTotals {
	t := MealTotals{ItemCount: len(items)}
	for _, item := range items {
		t.TotalCalories += nonNegative(item.Calories)
		t.TotalCarbs += nonNegative(item.Carbs)
		t.TotalProtein += nonNegative(item.Protein)
		t.TotalFat += nonNegative(item.Fat)
		t.TotalFiber += nonNegative(item.Fiber)
		t.GlycemicLoad += GlycemicLoad(item)
	}
	return t
}

// GlycemicLoad 單一項目的升糖負荷 = GI × 碳水 / 100
func GlycemicLoad(item nutrition.EnrichedFoodItem) float64 {
	gi := neutralGI
	if item.GlycemicIndex != nil {
		gi = *item.GlycemicIndex
	}
	return float64(gi) * nonNegative(item.Carbs) / 100
}

// Components 計算八項分數
func Components(items []nutrition.EnrichedFoodItem, totals MealTotals) ComponentScores {
	var c ComponentScores

	distinct := make(map[string]struct{}, len(items))
	for _, item := range items {
		distinct[food.Normalize(item.Name)] = struct{}{}
	}
	c.MealDiversity = clampScore(float64(len(distinct)) * diversityPerItem)

	var proteinRatio, carbRatio, fatRatio float64
	if totals.TotalCalories > 0 {
		proteinRatio = totals.TotalProtein * 4 / totals.TotalCalories
		carbRatio = totals.TotalCarbs * 4 / totals.TotalCalories
		fatRatio = totals.TotalFat * 9 / totals.TotalCalories
	}
	closeness := (1 - math.Abs(proteinRatio-idealProteinRatio)) +
		(1 - math.Abs(carbRatio-idealCarbRatio)) +
		(1 - math.Abs(fatRatio-idealFatRatio))
	c.NutrientCompleteness = clampScore(closeness / 3 * 100)

	c.GlycemicLoadScore = glycemicLoadScore(totals.GlycemicLoad)
	c.FiberAdequacy = clampScore(totals.TotalFiber / fiberTargetGrams * 100)
	c.ProteinAdequacy = clampScore(totals.TotalProtein / proteinTargetGrams * 100)

	fried, salty := 0, 0
	for _, item := range items {
		if item.HasFlag("fried") {
			fried++
		}
		for _, flag := range sodiumFlags {
			if item.HasFlag(flag) {
				salty++
				break
			}
		}
	}
	c.FatQuality = clampScore(100 - float64(fried)*friedPenalty)
	c.SodiumPenalty = clampScore(100 - float64(salty)*sodiumPenalty)
	c.DiabetesFriendly = clampScore((c.GlycemicLoadScore + c.FiberAdequacy) / 2)

	return c
}

// glycemicLoadScore <10 → 100、<20 → 80、<30 → 60，之後每單位扣 2 分
func glycemicLoadScore(gl float64) float64 {
	switch {
	case gl < 10:
		return 100
	case gl < 20:
		return 80
	case gl < 30:
		return 60
	default:
		return clampScore(60 - (gl-30)*2)
	}
}

func summaryRecommendations(c ComponentScores) []string {
	recs := []string{}
	if c.MealDiversity < 50 {
		recs = append(recs, "Add more variety - include vegetables or sides")
	}
	if c.FiberAdequacy < 60 {
		recs = append(recs, "Increase fiber - add leafy greens or whole grains")
	}
	if c.ProteinAdequacy < 60 {
		recs = append(recs, "Add more protein - fish, chicken, or legumes")
	}
	if c.GlycemicLoadScore < 60 {
		recs = append(recs, "Reduce carb-heavy items or add low-GI alternatives")
	}
	if c.FatQuality < 70 {
		recs = append(recs, "Replace fried items with grilled or steamed options")
	}
	return recs
}

func summaryWarnings(items []nutrition.EnrichedFoodItem, glycemicLoad float64) []string {
	var warnings []string
	if glycemicLoad > 30 {
		warnings = append(warnings, "⚠️ High glycemic load - monitor blood sugar")
	}

	fried := 0
	for _, item := range items {
		if item.HasFlag("fried") {
			fried++
		}
	}
	if fried >= 2 {
		warnings = append(warnings, "⚠️ Multiple fried foods - high saturated fat")
	}

	for _, item := range items {
		if msg, ok := item.HealthWarnings["diabetes"]; ok {
			warnings = append(warnings, fmt.Sprintf("⚠️ %s: %s", item.Name, msg))
		}
	}
	return dedupe(warnings)
}

func roundComponents(c ComponentScores) ComponentScores {
	return ComponentScores{
		MealDiversity:        common.Round1(c.MealDiversity),
		NutrientCompleteness: common.Round1(c.NutrientCompleteness),
		GlycemicLoadScore:    common.Round1(c.GlycemicLoadScore),
		FiberAdequacy:        common.Round1(c.FiberAdequacy),
		ProteinAdequacy:      common.Round1(c.ProteinAdequacy),
		FatQuality:           common.Round1(c.FatQuality),
		SodiumPenalty:        common.Round1(c.SodiumPenalty),
		DiabetesFriendly:     common.Round1(c.DiabetesFriendly),
	}
}

func clampScore(v float64) float64 {
	return common.Clamp(v, 0, 100)
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

// dedupe 去除重複並保留第一次出現的順序
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
