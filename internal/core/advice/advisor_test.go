package advice

import (
	"testing"

	"meal-analyzer/internal/core/nutrition"
	"meal-analyzer/internal/core/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func friedPlantain() nutrition.EnrichedFoodItem {
	return nutrition.EnrichedFoodItem{
		Name: "fried plantain", Calories: 230, Carbs: 38, Protein: 1.5, Fat: 9, Fiber: 2.3,
		GlycemicIndex:  intPtr(65),
		Flags:          []string{"fried", "starchy"},
		HealthWarnings: map[string]string{"diabetes": "Ripe plantain raises blood sugar quickly."},
	}
}

func whiteRice() nutrition.EnrichedFoodItem {
	return nutrition.EnrichedFoodItem{
		Name: "white rice", Calories: 205, Carbs: 45, Protein: 4, Fat: 0.4, Fiber: 0.6,
		GlycemicIndex: intPtr(73),
		Flags:         []string{"carb-heavy", "starchy"},
	}
}

func summarize(t *testing.T, items []nutrition.EnrichedFoodItem) scoring.MealSummary {
	t.Helper()
	s, err := scoring.NewScorer(scoring.DefaultWeights())
	require.NoError(t, err)
	return s.Score(items)
}

func TestRecommendRuleTable(t *testing.T) {
	items := []nutrition.EnrichedFoodItem{friedPlantain(), whiteRice()}
	summary := summarize(t, items)

	rec := NewAdvisor().Recommend(items, summary, HealthProfile{})

	assert.Equal(t, []string{
		"Replace with boiled or boli (roasted) plantain (~40% fewer calories)",
	}, rec.HealthyAlternatives)
	assert.Equal(t, []string{
		"Reduce carb-heavy items or add fiber and protein to slow absorption",
		"Reduce white rice portion by 30-40% (high GI)",
	}, rec.PortionAdjustments)
	assert.Equal(t, []string{
		"Add leafy greens (spinach, kale) for fiber and minerals",
		"Add lean protein (fish, chicken breast, tofu)",
		"Add vegetable salad or steamed vegetables",
	}, rec.Additions)
	assert.Empty(t, rec.Warnings)
}

func TestRecommendFatQualityRule(t *testing.T) {
	chicken := nutrition.EnrichedFoodItem{Name: "fried chicken", Calories: 320, Carbs: 10, Protein: 28, Fat: 18, Flags: []string{"fried"}}
	items := []nutrition.EnrichedFoodItem{friedPlantain(), chicken}

	rec := NewAdvisor().Recommend(items, summarize(t, items), HealthProfile{})

	assert.Equal(t, []string{
		"Replace fried items with grilled or steamed options",
		"Replace with boiled or boli (roasted) plantain (~40% fewer calories)",
		"Use grilled or baked chicken instead",
	}, rec.HealthyAlternatives)
}

func TestRecommendVegetablePresent(t *testing.T) {
	salad := nutrition.EnrichedFoodItem{Name: "vegetable salad", Calories: 50, Carbs: 9, Protein: 2, Fat: 1, Fiber: 3.5, Flags: []string{"vegetable"}}
	items := []nutrition.EnrichedFoodItem{whiteRice(), salad}

	rec := NewAdvisor().Recommend(items, summarize(t, items), HealthProfile{})

	assert.NotContains(t, rec.Additions, "Add vegetable salad or steamed vegetables")
}

func TestRecommendDiabetesWarnings(t *testing.T) {
	items := []nutrition.EnrichedFoodItem{friedPlantain(), whiteRice()}

	rec := NewAdvisor().Recommend(items, summarize(t, items), HealthProfile{Diabetes: true})

	assert.Equal(t, []string{
		"⚠️ fried plantain: Ripe plantain raises blood sugar quickly.",
		"⚠️ white rice: may raise blood sugar quickly - keep the portion small",
	}, rec.Warnings)
}

func TestRecommendConditionWarnings(t *testing.T) {
	suya := nutrition.EnrichedFoodItem{Name: "suya", Calories: 270, Carbs: 4, Protein: 26, Fat: 16, Flags: []string{"protein", "spicy", "salty"}}
	juice := nutrition.EnrichedFoodItem{Name: "orange juice", Calories: 110, Carbs: 26, Flags: []string{"beverage", "acidic"}}
	items := []nutrition.EnrichedFoodItem{suya, juice}

	rec := NewAdvisor().Recommend(items, summarize(t, items), HealthProfile{
		Hypertension: true,
		Ulcer:        true,
		AcidReflux:   true,
		WeightLoss:   true,
	})

	assert.Equal(t, []string{
		"⚠️ suya: high in sodium - limit for blood pressure control",
		"⚠️ suya: may irritate the stomach lining",
		"⚠️ suya: may trigger acid reflux",
		"ℹ️ suya: 270 kcal - consider a smaller portion",
		"⚠️ orange juice: may trigger acid reflux",
	}, rec.Warnings)
}

func TestRecommendWarningsDeduplicated(t *testing.T) {
	items := []nutrition.EnrichedFoodItem{friedPlantain(), friedPlantain()}

	rec := NewAdvisor().Recommend(items, summarize(t, items), HealthProfile{Diabetes: true})

	assert.Equal(t, []string{"⚠️ fried plantain: Ripe plantain raises blood sugar quickly."}, rec.Warnings)
	assert.Len(t, rec.HealthyAlternatives, 2)
}

func TestRecommendEmptyMeal(t *testing.T) {
	rec := NewAdvisor().Recommend(nil, summarize(t, nil), HealthProfile{Diabetes: true})

	assert.Empty(t, rec.HealthyAlternatives)
	assert.Empty(t, rec.PortionAdjustments)
	assert.Empty(t, rec.Additions)
	assert.Empty(t, rec.Warnings)
}

func TestHealthyAlternative(t *testing.T) {
	alt, ok := HealthyAlternative("Fried_Rice")
	require.True(t, ok)
	assert.Equal(t, "Switch to brown rice or cauliflower rice", alt)

	alt, ok = HealthyAlternative("fried yam")
	require.True(t, ok)
	assert.Equal(t, "Choose a grilled, baked or steamed version", alt)

	_, ok = HealthyAlternative("boiled egg")
	assert.False(t, ok)
}
