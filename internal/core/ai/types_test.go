package ai

import (
	"testing"

	"meal-analyzer/internal/core/fusion"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidation(t *testing.T) {
	content := "Here you go:\n```\n{\"validated_foods\": [" +
		"{\"name\": \"Jollof Rice\", \"confidence\": 0.88, \"source\": \"LLM\"}," +
		"{\"name\": \"plantain\", \"confidence\": 0.25}," +
		"{\"name\": \"\", \"confidence\": 0.9}," +
		"{\"name\": \"salad\"}]}\n```"

	items, err := ParseValidation(content, 0.3)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "Jollof Rice", items[0].Name)
	assert.Equal(t, 0.88, items[0].Confidence)
	assert.Equal(t, fusion.SourceAuxiliary, items[0].Source)
}

func TestParseValidationUnquotedKeys(t *testing.T) {
	items, err := ParseValidation(`{validated_foods: [{name: "beans", confidence: 0.7}]}`, 0.3)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "beans", items[0].Name)
}

func TestParseValidationEmptyList(t *testing.T) {
	items, err := ParseValidation(`{"validated_foods": []}`, 0.3)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestParseValidationRejectsProse(t *testing.T) {
	_, err := ParseValidation("no food here", 0.3)
	assert.Error(t, err)

	_, err = ParseValidation("{broken", 0.3)
	assert.Error(t, err)
}

func TestBuildValidationPrompt(t *testing.T) {
	prompt := BuildValidationPrompt([]fusion.DetectionItem{{Name: "rice"}, {Name: "beans"}}, 0.3)

	assert.Contains(t, prompt, "DETECTED: rice, beans")
	assert.Contains(t, prompt, "confidence must be >= 0.3")
	assert.Contains(t, prompt, `"validated_foods"`)
}
