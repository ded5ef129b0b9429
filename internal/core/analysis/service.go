// Package analysis 串接偵測、合併、營養補全、評分與建議
package analysis

import (
	"context"
	"fmt"
	"time"

	"meal-analyzer/internal/core/advice"
	"meal-analyzer/internal/core/ai/provider"
	"meal-analyzer/internal/core/food"
	"meal-analyzer/internal/core/fusion"
	"meal-analyzer/internal/core/image"
	"meal-analyzer/internal/core/nutrition"
	"meal-analyzer/internal/core/scoring"
	"meal-analyzer/internal/infrastructure/metrics"
	"meal-analyzer/internal/pkg/common"

	"go.uber.org/zap"
)

// 備援種類
const (
	FallbackClassifier = "classifier"
	FallbackHeuristic  = "heuristic"
)

// Config 分析流程參數
type Config struct {
	ConfidenceThreshold     float64
	SimilarityThreshold     float64
	LowConfidence           float64 // 合併結果全部低於此值時啟用 classifier
	ClassifierMinConfidence float64
	ValidatorTimeout        time.Duration
	ReferenceArea           float64
	Weights                 scoring.Weights
}

// DefaultConfig 預設參數
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold:     fusion.DefaultConfidenceThreshold,
		SimilarityThreshold:     food.DefaultSimilarityThreshold,
		LowConfidence:           0.5,
		ClassifierMinConfidence: 0.3,
		ValidatorTimeout:        20 * time.Second,
		ReferenceArea:           nutrition.DefaultReferenceArea,
		Weights:                 scoring.DefaultWeights(),
	}
}

// Collaborators 外部協作者，皆可為 nil
type Collaborators struct {
	Detector   provider.Detector
	Validator  provider.Validator
	Classifier provider.Classifier
}

// Request 分析請求
type Request struct {
	Image           *image.Image
	DescriptionHint string
	Health          advice.HealthProfile
}

// Result 分析結果
type Result struct {
	AnalysisID      string                       `json:"analysis_id"`
	Items           []nutrition.EnrichedFoodItem `json:"items"`
	Summary         scoring.MealSummary          `json:"summary"`
	Recommendations advice.Recommendations       `json:"recommendations"`
	BloodSugarSpike *scoring.SpikePrediction     `json:"blood_sugar_spike,omitempty"`
	FusionStats     fusion.Stats                 `json:"fusion_stats"`
	Fallback        string                       `json:"fallback,omitempty"`
	CreatedAt       time.Time                    `json:"created_at"`
}

// Service 分析服務，建立後可並行使用
type Service struct {
	config   Config
	engine   *fusion.Engine
	enricher *nutrition.Enricher
	scorer   *scoring.Scorer
	advisor  *advice.Advisor
	collab   Collaborators
	metrics  *metrics.AppMetrics
}

// NewService 創建分析服務，設定錯誤時回傳 ValidationError
func NewService(cfg Config, tables *nutrition.Tables, collab Collaborators, m *metrics.AppMetrics) (*Service, error) {
	engine, err := fusion.NewEngine(cfg.ConfidenceThreshold, cfg.SimilarityThreshold)
	if err != nil {
		return nil, err
	}
	scorer, err := scoring.NewScorer(cfg.Weights)
	if err != nil {
		return nil, err
	}
	if cfg.LowConfidence < 0 || cfg.LowConfidence > 1 || cfg.ClassifierMinConfidence < 0 || cfg.ClassifierMinConfidence > 1 {
		return nil, common.NewValidationError("fallback thresholds must be within [0, 1]")
	}

	return &Service{
		config:   cfg,
		engine:   engine,
		enricher: nutrition.NewEnricher(tables, cfg.ReferenceArea),
		scorer:   scorer,
		advisor:  advice.NewAdvisor(),
		collab:   collab,
		metrics:  m,
	}, nil
}

// Enricher 使用中的營養補全器
func (s *Service) Enricher() *nutrition.Enricher {
	return s.enricher
}

// Analyze 分析一張餐點照片
//
// 協作者失敗時以空結果繼續，只有缺少照片或 ctx 取消時回傳錯誤。
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	if req.Image == nil || len(req.Image.Data) == 0 {
		return nil, common.ErrNoImage
	}
	start := time.Now()

	anchor := s.detect(ctx, req.Image)
	if err := ctx.Err(); err != nil {
		s.metrics.ObserveAnalysis("cancelled", 0, 0, string(scoring.QualityUnknown), time.Since(start))
		return nil, err
	}

	auxiliary := s.validate(ctx, req.Image, anchor)
	fused := s.engine.Fuse(anchor, auxiliary)

	fallback := ""
	if s.needsClassifier(fused) {
		if classified := s.classify(ctx, req.Image); len(classified) > 0 {
			fused = s.engine.Fuse(detections(fused), classified)
			fallback = FallbackClassifier
		}
	}
	if err := ctx.Err(); err != nil {
		s.metrics.ObserveAnalysis("cancelled", 0, 0, string(scoring.QualityUnknown), time.Since(start))
		return nil, err
	}

	if len(fused) == 0 {
		if item, ok := heuristicItem(req.DescriptionHint); ok {
			fused = []fusion.FusedItem{item}
			fallback = FallbackHeuristic
		}
	}
	if fallback != "" {
		s.metrics.IncFallback(fallback)
	}

	result := s.build(fused, req.Health)
	result.Fallback = fallback

	s.metrics.ObserveAnalysis("ok", len(fused), result.Summary.Score, string(result.Summary.Quality), time.Since(start))
	common.LogInfo("餐點分析完成",
		zap.String("analysis_id", result.AnalysisID),
		zap.Int("anchor", len(anchor)),
		zap.Int("auxiliary", len(auxiliary)),
		zap.Int("fused", len(fused)),
		zap.String("fallback", fallback),
		zap.Float64("score", result.Summary.Score),
		zap.Duration("耗時", time.Since(start)),
	)
	return result, nil
}

// ScoreDetections 不呼叫外部協作者，直接合併並評分
func (s *Service) ScoreDetections(anchor, auxiliary []fusion.DetectionItem, profile advice.HealthProfile) *Result {
	return s.build(s.engine.Fuse(anchor, auxiliary), profile)
}

func (s *Service) build(fused []fusion.FusedItem, profile advice.HealthProfile) *Result {
	items := s.enricher.EnrichAll(fused)
	summary := s.scorer.Score(items)
	result := &Result{
		AnalysisID:      common.GenerateUUID(),
		Items:           items,
		Summary:         summary,
		Recommendations: s.advisor.Recommend(items, summary, profile),
		FusionStats:     fusion.Statistics(fused),
		CreatedAt:       time.Now(),
	}
	if len(items) > 0 {
		spike := scoring.PredictSpike(summary.MealTotals, profile.SpikeFactors())
		result.BloodSugarSpike = &spike
	}
	return result
}

func (s *Service) detect(ctx context.Context, img *image.Image) []fusion.DetectionItem {
	if s.collab.Detector == nil {
		return nil
	}
	items, err := call(ctx, s, s.collab.Detector.Name(), func(ctx context.Context) ([]fusion.DetectionItem, error) {
		return s.collab.Detector.Detect(ctx, img)
	})
	if err != nil {
		return nil
	}
	return items
}

func (s *Service) validate(ctx context.Context, img *image.Image, anchor []fusion.DetectionItem) []fusion.DetectionItem {
	if s.collab.Validator == nil {
		return nil
	}
	if s.config.ValidatorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ValidatorTimeout)
		defer cancel()
	}
	items, err := call(ctx, s, s.collab.Validator.Name(), func(ctx context.Context) ([]fusion.DetectionItem, error) {
		return s.collab.Validator.Validate(ctx, img, anchor)
	})
	if err != nil {
		return nil
	}
	return items
}

func (s *Service) classify(ctx context.Context, img *image.Image) []fusion.DetectionItem {
	if s.collab.Classifier == nil {
		return nil
	}
	items, err := call(ctx, s, s.collab.Classifier.Name(), func(ctx context.Context) ([]fusion.DetectionItem, error) {
		return s.collab.Classifier.Classify(ctx, img)
	})
	if err != nil {
		return nil
	}

	kept := make([]fusion.DetectionItem, 0, len(items))
	for _, item := range items {
		if item.Confidence < s.config.ClassifierMinConfidence {
			continue
		}
		item.Source = fusion.SourceClassifier
		kept = append(kept, item)
	}
	return kept
}

// call 呼叫協作者並記錄耗時，錯誤包裝為 UpstreamError
// 協作者 panic 時視同錯誤，回傳空結果
func call(ctx context.Context, s *Service, name string, fn func(context.Context) ([]fusion.DetectionItem, error)) ([]fusion.DetectionItem, error) {
	start := time.Now()
	items, err := invoke(ctx, fn)
	elapsed := time.Since(start)
	if err != nil {
		err = &common.UpstreamError{Collaborator: name, Err: err}
	}
	common.LogUpstreamCall(name, len(items), elapsed, err)
	s.metrics.ObserveUpstream(name, elapsed, err)
	return items, err
}

func invoke(ctx context.Context, fn func(context.Context) ([]fusion.DetectionItem, error)) (items []fusion.DetectionItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			items, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// needsClassifier 合併結果為空，或全部低於 LowConfidence
func (s *Service) needsClassifier(fused []fusion.FusedItem) bool {
	for _, item := range fused {
		if item.Confidence >= s.config.LowConfidence {
			return false
		}
	}
	return true
}

func heuristicItem(hint string) (fusion.FusedItem, bool) {
	name, ok := food.HeuristicName(hint)
	if !ok {
		return fusion.FusedItem{}, false
	}
	return fusion.FusedItem{
		DetectionItem: fusion.DetectionItem{
			Name:       name,
			Confidence: food.HeuristicConfidence,
			Source:     fusion.SourceHeuristic,
		},
		Key: food.Normalize(name),
	}, true
}

func detections(fused []fusion.FusedItem) []fusion.DetectionItem {
	items := make([]fusion.DetectionItem, len(fused))
	for i, f := range fused {
		items[i] = f.DetectionItem
	}
	return items
}
