package fusion

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"meal-analyzer/internal/core/food"
	"meal-analyzer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func det(name string, conf float64, src Source) DetectionItem {
	return DetectionItem{Name: name, Confidence: conf, Source: src}
}

func newTestEngine(t *testing.T, sim float64) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfidenceThreshold, sim)
	require.NoError(t, err)
	return e
}

func TestFuseAnchorPrecedence(t *testing.T) {
	e := newTestEngine(t, food.DefaultSimilarityThreshold)

	fused := e.Fuse(
		[]DetectionItem{det("rice", 0.9, SourceAnchor), det("chicken", 0.85, SourceAnchor)},
		[]DetectionItem{det("rice", 0.7, SourceAuxiliary), det("salad", 0.6, SourceAuxiliary)},
	)

	require.Len(t, fused, 3)
	assert.Equal(t, "rice", fused[0].Name)
	assert.Equal(t, 0.9, fused[0].Confidence)
	assert.Equal(t, SourceAnchor, fused[0].Source)
	assert.Equal(t, "chicken", fused[1].Name)
	assert.Equal(t, SourceAnchor, fused[1].Source)
	assert.Equal(t, "salad", fused[2].Name)
	assert.Equal(t, 0.6, fused[2].Confidence)
	assert.Equal(t, SourceAuxiliary, fused[2].Source)
}

func TestFuseAuxiliaryOverridesWhenStrictlyGreater(t *testing.T) {
	e := newTestEngine(t, food.DefaultSimilarityThreshold)

	fused := e.Fuse(
		[]DetectionItem{det("Jollof_Rice", 0.6, SourceAnchor), det("beans", 0.8, SourceAnchor)},
		[]DetectionItem{det("jollof rice", 0.95, SourceAuxiliary)},
	)

	require.Len(t, fused, 2)
	assert.Equal(t, "jollof rice", fused[0].Name)
	assert.Equal(t, 0.95, fused[0].Confidence)
	assert.Equal(t, SourceAuxiliary, fused[0].Source)
	assert.Equal(t, "jollof rice", fused[0].Key)
}

func TestFuseTieFavorsAnchor(t *testing.T) {
	e := newTestEngine(t, food.DefaultSimilarityThreshold)

	fused := e.Fuse(
		[]DetectionItem{det("rice", 0.7, SourceAnchor)},
		[]DetectionItem{det("Rice", 0.7, SourceAuxiliary)},
	)

	require.Len(t, fused, 1)
	assert.Equal(t, SourceAnchor, fused[0].Source)
}

func TestFuseFiltersLowConfidenceAuxiliary(t *testing.T) {
	e := newTestEngine(t, food.DefaultSimilarityThreshold)

	fused := e.Fuse(
		[]DetectionItem{det("rice", 0.1, SourceAnchor)},
		[]DetectionItem{det("salad", 0.29, SourceAuxiliary), det("beans", 0.3, SourceAuxiliary)},
	)

	names := namesOf(fused)
	assert.Equal(t, []string{"beans", "rice"}, names)
}

func TestFuseNearDuplicateKeptAtDefaultThreshold(t *testing.T) {
	e := newTestEngine(t, food.DefaultSimilarityThreshold)

	fused := e.Fuse(
		[]DetectionItem{det("rice", 0.9, SourceAnchor)},
		[]DetectionItem{det("fried rice", 0.8, SourceAuxiliary)},
	)

	assert.Equal(t, []string{"rice", "fried rice"}, namesOf(fused))
}

func TestFuseDropsSimilarAuxiliary(t *testing.T) {
	e := newTestEngine(t, 0.5)

	fused := e.Fuse(
		[]DetectionItem{det("rice", 0.9, SourceAnchor)},
		[]DetectionItem{det("fried rice", 0.95, SourceAuxiliary)},
	)

	require.Len(t, fused, 1)
	assert.Equal(t, "rice", fused[0].Name)
	assert.Equal(t, 0.9, fused[0].Confidence)
}

func TestFuseSkipsMalformed(t *testing.T) {
	e := newTestEngine(t, food.DefaultSimilarityThreshold)

	fused := e.Fuse(
		[]DetectionItem{det("", 0.9, SourceAnchor), det("rice", math.NaN(), SourceAnchor), det("beans", 0.7, "")},
		[]DetectionItem{det("salad", 1.5, SourceAuxiliary)},
	)

	require.Len(t, fused, 1)
	assert.Equal(t, "beans", fused[0].Name)
	assert.Equal(t, SourceAnchor, fused[0].Source)
}

func TestFuseUniqueKeys(t *testing.T) {
	e := newTestEngine(t, food.DefaultSimilarityThreshold)

	fused := e.Fuse(
		[]DetectionItem{
			det("rice", 0.5, SourceAnchor),
			det("RICE", 0.7, SourceAnchor),
			det("cup_cakes", 0.6, SourceAnchor),
		},
		[]DetectionItem{
			det("cupcakes", 0.65, SourceAuxiliary),
			det("rice ", 0.4, SourceAuxiliary),
			det("fried rice", 0.5, SourceAuxiliary),
		},
	)

	seen := map[string]bool{}
	for _, item := range fused {
		assert.False(t, seen[item.Key], "duplicate key %q", item.Key)
		seen[item.Key] = true
	}
	assert.Len(t, fused, 3)
	assert.Equal(t, 0.7, fused[0].Confidence)
	assert.Equal(t, "cupcake", fused[1].Key)
	assert.Equal(t, SourceAuxiliary, fused[1].Source)
}

func TestFuseDeterministic(t *testing.T) {
	e := newTestEngine(t, food.DefaultSimilarityThreshold)
	anchor := []DetectionItem{det("rice", 0.8, SourceAnchor), det("chicken", 0.8, SourceAnchor), det("stew", 0.6, SourceAnchor)}
	aux := []DetectionItem{det("salad", 0.8, SourceAuxiliary), det("plantain", 0.6, SourceAuxiliary)}

	first := e.Fuse(anchor, aux)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, e.Fuse(anchor, aux))
	}
	assert.Equal(t, []string{"rice", "chicken", "salad", "stew", "plantain"}, namesOf(first))
}

func TestFuseThresholdMonotonicity(t *testing.T) {
	anchor := []DetectionItem{det("jollof rice", 0.9, SourceAnchor), det("fried chicken", 0.8, SourceAnchor)}
	aux := []DetectionItem{
		det("rice", 0.7, SourceAuxiliary),
		det("chicken", 0.7, SourceAuxiliary),
		det("fried plantain", 0.6, SourceAuxiliary),
		det("jollof", 0.5, SourceAuxiliary),
	}

	prev := -1
	for _, th := range []float64{0, 0.2, 0.34, 0.5, 0.67, 0.8, 1} {
		fused := newTestEngine(t, th).Fuse(anchor, aux)
		assert.GreaterOrEqual(t, len(fused), prev, "threshold %v", th)
		prev = len(fused)
	}
}

func TestNewEngineRejectsInvalidThresholds(t *testing.T) {
	_, err := NewEngine(-0.1, 0.8)
	assert.True(t, common.IsValidationError(err))

	_, err = NewEngine(0.3, 2)
	assert.True(t, common.IsValidationError(err))
}

func TestStatistics(t *testing.T) {
	fused := []FusedItem{
		{DetectionItem: det("rice", 0.9, SourceAnchor)},
		{DetectionItem: det("chicken", 0.85, SourceAnchor)},
		{DetectionItem: det("salad", 0.6, SourceAuxiliary)},
	}

	stats := Statistics(fused)
	assert.Equal(t, 3, stats.TotalItems)
	assert.Equal(t, 2, stats.PerSourceCounts[SourceAnchor])
	assert.Equal(t, 1, stats.PerSourceCounts[SourceAuxiliary])
	assert.Equal(t, 0.783, stats.AverageConfidence)

	empty := Statistics(nil)
	assert.Equal(t, 0, empty.TotalItems)
	assert.Equal(t, 0.0, empty.AverageConfidence)
}

func TestRawDetectionToDetection(t *testing.T) {
	var raws []RawDetection
	require.NoError(t, json.Unmarshal([]byte(`[
		{"name": "rice", "confidence": 0.8},
		{"name": "beans", "confidence": 0.7, "source": "classifier", "area": 0.2},
		{"confidence": 0.5},
		{"name": "salad"}
	]`), &raws))

	item, err := raws[0].ToDetection(SourceAnchor)
	require.NoError(t, err)
	assert.Equal(t, SourceAnchor, item.Source)

	item, err = raws[1].ToDetection(SourceAnchor)
	require.NoError(t, err)
	assert.Equal(t, SourceClassifier, item.Source)
	require.NotNil(t, item.Area)
	assert.Equal(t, 0.2, *item.Area)

	_, err = raws[2].ToDetection(SourceAnchor)
	assert.True(t, errors.Is(err, common.ErrMalformedDetection))

	_, err = raws[3].ToDetection(SourceAnchor)
	assert.True(t, errors.Is(err, common.ErrMalformedDetection))
}

func namesOf(items []FusedItem) []string {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	return names
}
