package scoring

import (
	"math/rand"
	"testing"

	"meal-analyzer/internal/core/nutrition"
	"meal-analyzer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func jollof() nutrition.EnrichedFoodItem {
	return nutrition.EnrichedFoodItem{
		Name:           "jollof rice",
		Calories:       180,
		Carbs:          35,
		Protein:        4,
		Fat:            3,
		Fiber:          1,
		GlycemicIndex:  intPtr(72),
		Flags:          []string{"carb-heavy", "starchy"},
		HealthWarnings: map[string]string{"diabetes": "High GI; portion control."},
	}
}

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultWeights())
	require.NoError(t, err)
	return s
}

func TestScoreEmptyMeal(t *testing.T) {
	summary := newTestScorer(t).Score(nil)

	assert.Equal(t, 0, summary.ItemCount)
	assert.Equal(t, QualityUnknown, summary.Quality)
	assert.Equal(t, []string{"No foods detected"}, summary.Recommendations)
	assert.Empty(t, summary.Warnings)
	assert.Nil(t, summary.Components)
	assert.Equal(t, 0.0, summary.TotalCalories)
	assert.Equal(t, 0.0, summary.Score)
}

func TestScoreGlycemicLoad(t *testing.T) {
	summary := newTestScorer(t).Score([]nutrition.EnrichedFoodItem{jollof()})

	assert.Equal(t, 25.2, summary.GlycemicLoad)
	require.NotNil(t, summary.Components)
	assert.Equal(t, 60.0, summary.Components.GlycemicLoadScore)
}

func TestScoreSingleItemBreakdown(t *testing.T) {
	summary := newTestScorer(t).Score([]nutrition.EnrichedFoodItem{jollof()})
	c := summary.Components
	require.NotNil(t, c)

	assert.Equal(t, 1, summary.ItemCount)
	assert.Equal(t, 25.0, c.MealDiversity)
	assert.Equal(t, 75.4, c.NutrientCompleteness)
	assert.Equal(t, 12.5, c.FiberAdequacy)
	assert.Equal(t, 16.0, c.ProteinAdequacy)
	assert.Equal(t, 100.0, c.FatQuality)
	assert.Equal(t, 100.0, c.SodiumPenalty)
	assert.InDelta(t, 36.25, c.DiabetesFriendly, 0.06)

	assert.InDelta(t, 54.1, summary.Score, 0.05)
	assert.Equal(t, QualityFair, summary.Quality)
	assert.Equal(t, []string{
		"Add more variety - include vegetables or sides",
		"Increase fiber - add leafy greens or whole grains",
		"Add more protein - fish, chicken, or legumes",
	}, summary.Recommendations)
	assert.Equal(t, []string{"⚠️ jollof rice: High GI; portion control."}, summary.Warnings)
}

func TestScoreUnknownGIUsesNeutralValue(t *testing.T) {
	item := nutrition.EnrichedFoodItem{Name: "mystery", Calories: 150, Carbs: 20, Protein: 5, Fat: 5, Fiber: 2}

	summary := newTestScorer(t).Score([]nutrition.EnrichedFoodItem{item})

	assert.Equal(t, 10.0, summary.GlycemicLoad)
	assert.Nil(t, item.GlycemicIndex)
}

func TestScoreFriedAndSodiumPenalties(t *testing.T) {
	items := []nutrition.EnrichedFoodItem{
		{Name: "fried chicken", Calories: 320, Carbs: 10, Protein: 28, Fat: 18, Flags: []string{"fried", "protein"}},
		{Name: "french fries", Calories: 365, Carbs: 48, Protein: 4, Fat: 17, Fiber: 4.4, GlycemicIndex: intPtr(63), Flags: []string{"fried", "processed", "salty"}},
		{Name: "beef stew", Calories: 280, Carbs: 8, Protein: 24, Fat: 16, Fiber: 1.5, Flags: []string{"stew"}},
	}

	summary := newTestScorer(t).Score(items)
	require.NotNil(t, summary.Components)

	assert.Equal(t, 60.0, summary.Components.FatQuality)
	assert.Equal(t, 70.0, summary.Components.SodiumPenalty)
	assert.Equal(t, 75.0, summary.Components.MealDiversity)
	assert.Contains(t, summary.Recommendations, "Replace fried items with grilled or steamed options")
	assert.Contains(t, summary.Warnings, "⚠️ Multiple fried foods - high saturated fat")
}

func TestScoreHighGlycemicLoadWarning(t *testing.T) {
	items := []nutrition.EnrichedFoodItem{jollof(), jollof()}
	items[1].Name = "Jollof rice"

	summary := newTestScorer(t).Score(items)

	assert.Equal(t, 50.4, summary.GlycemicLoad)
	require.NotNil(t, summary.Components)
	assert.InDelta(t, 19.2, summary.Components.GlycemicLoadScore, 1e-9)
	// 名稱正規化後相同，只算一種
	assert.Equal(t, 25.0, summary.Components.MealDiversity)
	assert.Equal(t, "⚠️ High glycemic load - monitor blood sugar", summary.Warnings[0])
}

func TestScoreWarningsDeduplicated(t *testing.T) {
	items := []nutrition.EnrichedFoodItem{jollof(), jollof()}

	summary := newTestScorer(t).Score(items)

	count := 0
	for _, w := range summary.Warnings {
		if w == "⚠️ jollof rice: High GI; portion control." {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestScoreBounds(t *testing.T) {
	s := newTestScorer(t)
	rng := rand.New(rand.NewSource(42))
	flags := [][]string{nil, {"fried"}, {"processed"}, {"fried", "salty"}, {"stew"}}

	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(6)
		items := make([]nutrition.EnrichedFoodItem, n)
		for j := range items {
			items[j] = nutrition.EnrichedFoodItem{
				Name:     string(rune('a' + rng.Intn(26))),
				Calories: rng.Float64() * 1000,
				Carbs:    rng.Float64() * 200,
				Protein:  rng.Float64() * 100,
				Fat:      rng.Float64() * 100,
				Fiber:    rng.Float64() * 30,
				Flags:    flags[rng.Intn(len(flags))],
			}
			if rng.Intn(2) == 0 {
				items[j].GlycemicIndex = intPtr(rng.Intn(101))
			}
		}

		summary := s.Score(items)
		require.NotNil(t, summary.Components)
		c := summary.Components
		for _, v := range []float64{
			c.MealDiversity, c.NutrientCompleteness, c.GlycemicLoadScore, c.FiberAdequacy,
			c.ProteinAdequacy, c.FatQuality, c.SodiumPenalty, c.DiabetesFriendly, summary.Score,
		} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
		}
	}
}

func TestScoreQualityMatchesReportedScore(t *testing.T) {
	s := newTestScorer(t)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		items := []nutrition.EnrichedFoodItem{{
			Name:          "meal",
			Calories:      rng.Float64() * 800,
			Carbs:         rng.Float64() * 120,
			Protein:       rng.Float64() * 60,
			Fat:           rng.Float64() * 60,
			Fiber:         rng.Float64() * 15,
			GlycemicIndex: intPtr(rng.Intn(101)),
		}}
		summary := s.Score(items)
		assert.Equal(t, QualityFor(summary.Score), summary.Quality, "score=%v", summary.Score)
	}
}

func TestQualityFor(t *testing.T) {
	cases := []struct {
		score float64
		want  Quality
	}{
		{100, QualityExcellent},
		{80, QualityExcellent},
		{79.9, QualityGood},
		{65, QualityGood},
		{64.9, QualityFair},
		{50, QualityFair},
		{49.9, QualityRisky},
		{35, QualityRisky},
		{34.9, QualityDangerous},
		{0, QualityDangerous},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, QualityFor(tc.score), "score=%v", tc.score)
	}
}

func TestGlycemicLoadScoreSteps(t *testing.T) {
	assert.Equal(t, 100.0, glycemicLoadScore(9.9))
	assert.Equal(t, 80.0, glycemicLoadScore(10))
	assert.Equal(t, 60.0, glycemicLoadScore(29.9))
	assert.Equal(t, 60.0, glycemicLoadScore(30))
	assert.Equal(t, 40.0, glycemicLoadScore(40))
	assert.Equal(t, 0.0, glycemicLoadScore(80))
}

func TestWeightsValidation(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())

	w := DefaultWeights()
	w.MealDiversity = 0.5
	_, err := NewScorer(w)
	assert.True(t, common.IsValidationError(err))

	w = DefaultWeights()
	w.FatQuality = -0.1
	w.SodiumPenalty = 0.3
	assert.Error(t, w.Validate())
}
