// Package advice 依餐點分數與使用者健康狀況產生建議與警告
package advice

import (
	"fmt"
	"strings"

	"meal-analyzer/internal/core/nutrition"
	"meal-analyzer/internal/core/scoring"
)

// HealthProfile 使用者健康狀況，未提供的欄位視為 false
type HealthProfile struct {
	Diabetes     bool `json:"diabetes" form:"diabetes"`
	Hypertension bool `json:"hypertension" form:"hypertension"`
	Ulcer        bool `json:"ulcer" form:"ulcer"`
	AcidReflux   bool `json:"acid_reflux" form:"acid_reflux"`
	WeightLoss   bool `json:"weight_loss" form:"weight_loss"`

	// 血糖上升預估用，可留空
	DiabetesType  string `json:"diabetes_type,omitempty" form:"diabetes_type"`
	ActivityLevel string `json:"activity_level,omitempty" form:"activity_level"`
}

// SpikeFactors 轉為血糖上升預估的個人因素
func (p HealthProfile) SpikeFactors() scoring.SpikeFactors {
	return scoring.SpikeFactors{DiabetesType: p.DiabetesType, ActivityLevel: p.ActivityLevel}
}

// Recommendations 建議結果
type Recommendations struct {
	HealthyAlternatives []string `json:"healthy_alternatives"`
	PortionAdjustments  []string `json:"portion_adjustments"`
	Additions           []string `json:"additions"`
	Warnings            []string `json:"warnings"`
}

type alternative struct {
	match string
	text  string
}

// 依名稱子字串比對，先符合者優先
var healthyAlternatives = []alternative{
	{"fried plantain", "Replace with boiled or boli (roasted) plantain (~40% fewer calories)"},
	{"fried chicken", "Use grilled or baked chicken instead"},
	{"fried rice", "Switch to brown rice or cauliflower rice"},
	{"white rice", "Use brown rice or quinoa (lower GI)"},
	{"jollof rice", "Reduce oil and add more vegetables to jollof"},
	{"french fries", "Try oven-baked potato wedges or boiled yam"},
	{"fried", "Choose a grilled, baked or steamed version"},
}

var highSodiumFoods = []string{
	"suya", "sausage", "bacon", "ham", "salami", "hot dog", "noodles", "indomie",
	"french fries", "chips", "pepper soup", "stew", "smoked", "salted", "pickled", "canned",
}

var irritantKeywords = []string{"pepper", "spicy", "chili", "suya", "fried", "stew"}

var irritantFlags = []string{"spicy", "fried", "stew"}

var refluxFlags = []string{"fried", "spicy", "acidic"}

const (
	lowScoreThreshold   = 60.0
	fatQualityThreshold = 70.0
	highGI              = 70
	diabetesGI          = 55
	diabetesCarbs       = 30.0
	weightLossCalories  = 200.0
)

// Advisor 規則式建議產生器，不持有可變狀態
type Advisor struct{}

// NewAdvisor 創建建議產生器
func NewAdvisor() *Advisor {
	return &Advisor{}
}

// Recommend 依規則表產生建議，所有規則互相獨立、可同時觸發
func (a *Advisor) Recommend(items []nutrition.EnrichedFoodItem, summary scoring.MealSummary, profile HealthProfile) Recommendations {
	rec := Recommendations{
		HealthyAlternatives: []string{},
		PortionAdjustments:  []string{},
		Additions:           []string{},
		Warnings:            []string{},
	}
	if len(items) == 0 {
		return rec
	}

	if c := summary.Components; c != nil {
		if c.FiberAdequacy < lowScoreThreshold {
			rec.Additions = append(rec.Additions, "Add leafy greens (spinach, kale) for fiber and minerals")
		}
		if c.ProteinAdequacy < lowScoreThreshold {
			rec.Additions = append(rec.Additions, "Add lean protein (fish, chicken breast, tofu)")
		}
		if c.GlycemicLoadScore < lowScoreThreshold {
			rec.PortionAdjustments = append(rec.PortionAdjustments, "Reduce carb-heavy items or add fiber and protein to slow absorption")
		}
		if c.FatQuality < fatQualityThreshold {
			rec.HealthyAlternatives = append(rec.HealthyAlternatives, "Replace fried items with grilled or steamed options")
		}
	}

	for _, item := range items {
		if item.HasFlag("fried") {
			if alt, ok := HealthyAlternative(item.Name); ok {
				rec.HealthyAlternatives = append(rec.HealthyAlternatives, alt)
			}
		}
		if item.GlycemicIndex != nil && *item.GlycemicIndex >= highGI {
			rec.PortionAdjustments = append(rec.PortionAdjustments,
				fmt.Sprintf("Reduce %s portion by 30-40%% (high GI)", item.Name))
		}
	}

	if !hasVegetable(items) {
		rec.Additions = append(rec.Additions, "Add vegetable salad or steamed vegetables")
	}

	for _, item := range items {
		rec.Warnings = append(rec.Warnings, conditionWarnings(item, profile)...)
	}

	rec.HealthyAlternatives = dedupe(rec.HealthyAlternatives)
	rec.PortionAdjustments = dedupe(rec.PortionAdjustments)
	rec.Additions = dedupe(rec.Additions)
	rec.Warnings = dedupe(rec.Warnings)
	return rec
}

// HealthyAlternative 依名稱查詢較健康的替代選項
func HealthyAlternative(name string) (string, bool) {
	lower := strings.ToLower(strings.ReplaceAll(name, "_", " "))
	for _, alt := range healthyAlternatives {
		if strings.Contains(lower, alt.match) {
			return alt.text, true
		}
	}
	return "", false
}

func conditionWarnings(item nutrition.EnrichedFoodItem, profile HealthProfile) []string {
	var warnings []string
	name := strings.ToLower(item.Name)

	if profile.Diabetes {
		gi := item.GlycemicIndex != nil && *item.GlycemicIndex > diabetesGI
		if gi || item.Carbs > diabetesCarbs {
			warnings = append(warnings, itemWarning(item, "diabetes",
				"may raise blood sugar quickly - keep the portion small"))
		}
	}
	if profile.Hypertension && containsAny(name, highSodiumFoods) {
		warnings = append(warnings, itemWarning(item, "hypertension",
			"high in sodium - limit for blood pressure control"))
	}
	if profile.Ulcer && (containsAny(name, irritantKeywords) || hasAnyFlag(item, irritantFlags)) {
		warnings = append(warnings, itemWarning(item, "ulcer",
			"may irritate the stomach lining"))
	}
	if profile.AcidReflux && hasAnyFlag(item, refluxFlags) {
		warnings = append(warnings, itemWarning(item, "acid_reflux",
			"may trigger acid reflux"))
	}
	if profile.WeightLoss && item.Calories > weightLossCalories {
		if msg, ok := item.HealthWarnings["weight_loss"]; ok {
			warnings = append(warnings, fmt.Sprintf("ℹ️ %s: %s", item.Name, msg))
		} else {
			warnings = append(warnings, fmt.Sprintf("ℹ️ %s: %.0f kcal - consider a smaller portion", item.Name, item.Calories))
		}
	}
	return warnings
}

// itemWarning 優先使用營養表中該狀況的說明
func itemWarning(item nutrition.EnrichedFoodItem, condition, fallback string) string {
	if msg, ok := item.HealthWarnings[condition]; ok && msg != "" {
		return fmt.Sprintf("⚠️ %s: %s", item.Name, msg)
	}
	return fmt.Sprintf("⚠️ %s: %s", item.Name, fallback)
}

func hasVegetable(items []nutrition.EnrichedFoodItem) bool {
	for _, item := range items {
		name := strings.ToLower(item.Name)
		if strings.Contains(name, "vegetable") || strings.Contains(name, "salad") || item.HasFlag("vegetable") {
			return true
		}
	}
	return false
}

func hasAnyFlag(item nutrition.EnrichedFoodItem, flags []string) bool {
	for _, f := range flags {
		if item.HasFlag(f) {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

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
