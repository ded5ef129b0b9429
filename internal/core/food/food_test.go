package food

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Jollof_Rice ":       "jollof rice",
		"CUP_CAKES":            "cupcake",
		"cheese cake":          "cheesecake",
		"Cow_Skin":             "ponmo",
		"grilled   chicken":    "grilled chicken",
		"something unknown":    "something unknown",
		"":                     "",
		"strawberry_shortcake": "strawberry cake",
	}
	for raw, want := range cases {
		assert.Equal(t, want, Normalize(raw), "raw=%q", raw)
	}
}

func TestBeverageAndDessert(t *testing.T) {
	assert.True(t, IsBeverage("Strawberry_Milkshake"))
	assert.True(t, IsBeverage("orange juice"))
	assert.False(t, IsBeverage("jollof rice"))

	assert.True(t, IsDessert("red velvet cake"))
	assert.True(t, IsDessert("Cup_Cakes"))
	assert.False(t, IsDessert("fried plantain"))
}

func TestHeuristicName(t *testing.T) {
	name, ok := HeuristicName("a tall chocolate shake")
	require.True(t, ok)
	assert.Equal(t, "milkshake", name)

	name, ok = HeuristicName("slice of birthday cake")
	require.True(t, ok)
	assert.Equal(t, "cake", name)

	_, ok = HeuristicName("plate of beans")
	assert.False(t, ok)

	_, ok = HeuristicName("   ")
	assert.False(t, ok)
}

func TestIsDuplicateExactMatch(t *testing.T) {
	m, err := NewMatcher(DefaultSimilarityThreshold)
	require.NoError(t, err)

	assert.True(t, m.IsDuplicate("rice", []string{"chicken", "rice"}))
}

func TestIsDuplicateNearDuplicateNotMerged(t *testing.T) {
	m, err := NewMatcher(DefaultSimilarityThreshold)
	require.NoError(t, err)

	// {"fried","rice"} vs {"rice"} → 1/2 = 0.5 < 0.8
	assert.InDelta(t, 0.5, Jaccard("fried rice", "rice"), 1e-9)
	assert.False(t, m.IsDuplicate("fried rice", []string{"rice"}))
}

func TestIsDuplicateLowerThresholdMerges(t *testing.T) {
	m, err := NewMatcher(0.5)
	require.NoError(t, err)

	assert.True(t, m.IsDuplicate("fried rice", []string{"rice"}))
}

func TestIsDuplicateRequiresOverlap(t *testing.T) {
	m, err := NewMatcher(0)
	require.NoError(t, err)

	// 零門檻下仍要求至少一個共同 token
	assert.False(t, m.IsDuplicate("beans", []string{"rice", "chicken"}))
	assert.True(t, m.IsDuplicate("brown beans", []string{"rice", "beans"}))
}

func TestJaccardTokenOrderIgnored(t *testing.T) {
	assert.Equal(t, 1.0, Jaccard("rice jollof", "jollof rice"))
	assert.Equal(t, 0.0, Jaccard("", ""))
}

func TestNewMatcherRejectsInvalidThreshold(t *testing.T) {
	_, err := NewMatcher(-0.1)
	assert.Error(t, err)

	_, err = NewMatcher(1.5)
	assert.Error(t, err)
}
