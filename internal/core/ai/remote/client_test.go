package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"meal-analyzer/internal/core/ai/provider"
	"meal-analyzer/internal/core/fusion"
	"meal-analyzer/internal/core/image"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testImage = &image.Image{Data: []byte{1, 2, 3}, Width: 200, Height: 100}

func TestDetectComputesRelativeArea(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detect", r.URL.Path)
		var req inferenceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 200, req.Width)
		assert.NotEmpty(t, req.Image)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"detections": [
			{"name": "rice", "confidence": 0.9, "bbox": {"x1": 0, "y1": 0, "x2": 100, "y2": 50}},
			{"name": "chicken", "confidence": 0.8, "area": 0.2},
			{"name": "ghost"}
		]}`))
	}))
	defer srv.Close()

	items, err := NewDetector(provider.Config{BaseURL: srv.URL}).Detect(context.Background(), testImage)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, fusion.SourceAnchor, items[0].Source)
	require.NotNil(t, items[0].Area)
	assert.InDelta(t, 0.25, *items[0].Area, 1e-9)
	require.NotNil(t, items[1].Area)
	assert.Equal(t, 0.2, *items[1].Area)
}

func TestDetectUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewDetector(provider.Config{BaseURL: srv.URL}).Detect(context.Background(), testImage)
	assert.Error(t, err)
}

func TestClassifyTopK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/classify", r.URL.Path)
		var req inferenceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.TopK)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"predictions": [
			{"label": "fried_rice", "score": 0.61},
			{"label": "", "score": 0.5},
			{"label": "paella", "score": 0.2},
			{"label": "risotto", "score": 0.1}
		]}`))
	}))
	defer srv.Close()

	items, err := NewClassifier(provider.Config{BaseURL: srv.URL}, 2).Classify(context.Background(), testImage)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "fried_rice", items[0].Name)
	assert.Equal(t, fusion.SourceClassifier, items[0].Source)
	assert.Equal(t, "paella", items[1].Name)
}

func TestRelativeArea(t *testing.T) {
	assert.Equal(t, 0.0, RelativeArea(fusion.BBox{X1: 10, X2: 5, Y2: 10}, 100, 100))
	assert.Equal(t, 0.0, RelativeArea(fusion.BBox{X2: 10, Y2: 10}, 0, 100))
	assert.Equal(t, 1.0, RelativeArea(fusion.BBox{X1: -10, Y1: -10, X2: 200, Y2: 200}, 100, 100))
	assert.InDelta(t, 0.01, RelativeArea(fusion.BBox{X2: 10, Y2: 10}, 100, 100), 1e-9)
}
