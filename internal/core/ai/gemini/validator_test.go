package gemini

import (
	"testing"

	"meal-analyzer/internal/core/fusion"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestParseResponse(t *testing.T) {
	result := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(
				`{"validated_foods": [{"name": "egusi soup", "confidence": 0.81}, {"name": "garnish", "confidence": 0.2}]}`,
				genai.RoleModel,
			)},
		},
	}

	items, err := parseResponse(result, defaultModel, 0.3)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "egusi soup", items[0].Name)
	assert.Equal(t, fusion.SourceAuxiliary, items[0].Source)
}

func TestParseResponseEmpty(t *testing.T) {
	_, err := parseResponse(&genai.GenerateContentResponse{}, defaultModel, 0.3)
	assert.Error(t, err)

	_, err = parseResponse(nil, defaultModel, 0.3)
	assert.Error(t, err)
}
