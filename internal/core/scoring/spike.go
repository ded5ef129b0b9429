package scoring

import (
	"math"
	"strings"

	"meal-analyzer/internal/pkg/common"
)

// 血糖上升風險等級
const (
	SpikeRiskLow      = "low"
	SpikeRiskModerate = "moderate"
	SpikeRiskHigh     = "high"
)

// 預估上升幅度上限 (mg/dL)
const maxSpike = 150

var activityMultipliers = map[string]float64{
	"sedentary":     1.3,
	"light":         1.1,
	"moderate":      1.0,
	"vigorous":      0.8,
	"very_vigorous": 0.7,
}

// SpikeFactors 影響血糖反應的個人因素，空字串表示未提供
type SpikeFactors struct {
	DiabetesType  string
	ActivityLevel string
}

// SpikePrediction 餐後血糖上升預估
type SpikePrediction struct {
	SpikeMgDL float64 `json:"spike_mg_dl"`
	RiskLevel string  `json:"risk_level"`
}

// PredictSpike 依升糖負荷估算餐後血糖上升幅度
//
// 基準為 GL×2.5，纖維每克減 2，脂肪加蛋白質每克減 0.3，每一步都不低於 0；
// 第一型糖尿病 ×1.2，再乘上活動量係數，最後限制在 [0, 150]。
func PredictSpike(totals MealTotals, factors SpikeFactors) SpikePrediction {
	spike := totals.GlycemicLoad * 2.5
	spike = math.Max(0, spike-totals.TotalFiber*2)
	spike = math.Max(0, spike-(totals.TotalFat+totals.TotalProtein)*0.3)

	if strings.EqualFold(strings.TrimSpace(factors.DiabetesType), "type 1") {
		spike *= 1.2
	}
	if m, ok := activityMultipliers[strings.ToLower(strings.TrimSpace(factors.ActivityLevel))]; ok {
		spike *= m
	}

	spike = common.Round1(common.Clamp(spike, 0, maxSpike))
	return SpikePrediction{SpikeMgDL: spike, RiskLevel: SpikeRiskFor(spike)}
}

// SpikeRiskFor ≤30 為 low，≤60 為 moderate，其餘為 high
func SpikeRiskFor(spike float64) string {
	switch {
	case spike <= 30:
		return SpikeRiskLow
	case spike <= 60:
		return SpikeRiskModerate
	default:
		return SpikeRiskHigh
	}
}
