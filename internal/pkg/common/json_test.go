package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "here:\n```\n{\"a\":1}\n```\nthanks", `{"a":1}`},
		{"prose around", `Sure! {"a":{"b":2}} done`, `{"a":{"b":2}}`},
		{"no object", "none", "none"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSONObject(tc.in))
		})
	}
}

func TestParseJSONRejectsTrailingData(t *testing.T) {
	var v map[string]int
	require.NoError(t, ParseJSON(`{"a":1}`, &v))
	assert.Equal(t, 1, v["a"])

	assert.Error(t, ParseJSON(`{"a":1} {"b":2}`, &v))
}

func TestQuoteJSONKeys(t *testing.T) {
	assert.Equal(t, `{"name": "rice", "confidence": 0.8}`, QuoteJSONKeys(`{name: "rice", confidence: 0.8}`))
}

func TestUpstreamErrorUnwrap(t *testing.T) {
	base := errors.New("connection refused")
	err := &UpstreamError{Collaborator: "validator", Err: base}

	assert.True(t, IsUpstreamError(err))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "validator")
	assert.False(t, IsUpstreamError(base))
}

func TestClampAndRound(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-5, 0, 100))
	assert.Equal(t, 100.0, Clamp(150, 0, 100))
	assert.Equal(t, 42.0, Clamp(42, 0, 100))
	assert.Equal(t, 25.2, Round1(25.2000001))
}
