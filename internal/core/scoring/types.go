// Package scoring 計算餐點的營養總量、八項分數與綜合評等
package scoring

import (
	"math"

	"meal-analyzer/internal/pkg/common"
)

// Quality 綜合評等
type Quality string

const (
	QualityExcellent Quality = "Excellent"
	QualityGood      Quality = "Good"
	QualityFair      Quality = "Fair"
	QualityRisky     Quality = "Risky"
	QualityDangerous Quality = "Dangerous"
	QualityUnknown   Quality = "Unknown"
)

// QualityFor 依綜合分數分級：≥80、≥65、≥50、≥35，其餘為 Dangerous
func QualityFor(score float64) Quality {
	switch {
	case score >= 80:
		return QualityExcellent
	case score >= 65:
		return QualityGood
	case score >= 50:
		return QualityFair
	case score >= 35:
		return QualityRisky
	default:
		return QualityDangerous
	}
}

// ComponentScores 八項分數，皆介於 [0, 100]
type ComponentScores struct {
	MealDiversity        float64 `json:"meal_diversity"`
	NutrientCompleteness float64 `json:"nutrient_completeness"`
	GlycemicLoadScore    float64 `json:"glycemic_load_score"`
	FiberAdequacy        float64 `json:"fiber_adequacy"`
	ProteinAdequacy      float64 `json:"protein_adequacy"`
	FatQuality           float64 `json:"fat_quality"`
	SodiumPenalty        float64 `json:"sodium_penalty"`
	DiabetesFriendly     float64 `json:"diabetes_friendly"`
}

// Weights 綜合分數的權重，總和必須為 1
type Weights struct {
	MealDiversity        float64 `mapstructure:"meal_diversity" json:"meal_diversity"`
	NutrientCompleteness float64 `mapstructure:"nutrient_completeness" json:"nutrient_completeness"`
	GlycemicLoadScore    float64 `mapstructure:"glycemic_load_score" json:"glycemic_load_score"`
	FiberAdequacy        float64 `mapstructure:"fiber_adequacy" json:"fiber_adequacy"`
	ProteinAdequacy      float64 `mapstructure:"protein_adequacy" json:"protein_adequacy"`
	FatQuality           float64 `mapstructure:"fat_quality" json:"fat_quality"`
	SodiumPenalty        float64 `mapstructure:"sodium_penalty" json:"sodium_penalty"`
	DiabetesFriendly     float64 `mapstructure:"diabetes_friendly" json:"diabetes_friendly"`
}

// DefaultWeights 預設權重
func DefaultWeights() Weights {
	return Weights{
		MealDiversity:        0.10,
		NutrientCompleteness: 0.15,
		GlycemicLoadScore:    0.20,
		FiberAdequacy:        0.10,
		ProteinAdequacy:      0.10,
		FatQuality:           0.10,
		SodiumPenalty:        0.10,
		DiabetesFriendly:     0.15,
	}
}

func (w Weights) values() []float64 {
	return []float64{
		w.MealDiversity, w.NutrientCompleteness, w.GlycemicLoadScore, w.FiberAdequacy,
		w.ProteinAdequacy, w.FatQuality, w.SodiumPenalty, w.DiabetesFriendly,
	}
}

// Validate 權重不可為負且總和為 1
func (w Weights) Validate() error {
	var sum float64
	for _, v := range w.values() {
		if v < 0 || math.IsNaN(v) {
			return common.NewValidationError("score weights must be non-negative")
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-6 {
		return common.NewValidationError("score weights must sum to 1")
	}
	return nil
}

// Apply 以權重加總八項分數
func (w Weights) Apply(c ComponentScores) float64 {
	return w.MealDiversity*c.MealDiversity +
		w.NutrientCompleteness*c.NutrientCompleteness +
		w.GlycemicLoadScore*c.GlycemicLoadScore +
		w.FiberAdequacy*c.FiberAdequacy +
		w.ProteinAdequacy*c.ProteinAdequacy +
		w.FatQuality*c.FatQuality +
		w.SodiumPenalty*c.SodiumPenalty +
		w.DiabetesFriendly*c.DiabetesFriendly
}

// MealTotals 各營養素總量與升糖負荷
type MealTotals struct {
	ItemCount     int     `json:"item_count"`
	TotalCalories float64 `json:"total_calories"`
	TotalCarbs    float64 `json:"total_carbs"`
	TotalProtein  float64 `json:"total_protein"`
	TotalFat      float64 `json:"total_fat"`
	TotalFiber    float64 `json:"total_fiber"`
	GlycemicLoad  float64 `json:"glycemic_load"`
}

// MealSummary 整餐摘要
type MealSummary struct {
	MealTotals
	Score           float64          `json:"score"`
	Quality         Quality          `json:"quality"`
	Components      *ComponentScores `json:"components,omitempty"`
	Recommendations []string         `json:"recommendations"`
	Warnings        []string         `json:"warnings"`
}
