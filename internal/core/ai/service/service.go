// Package service 在輔助驗證器前加上結果快取
package service

import (
	"context"
	"errors"

	"meal-analyzer/internal/core/ai/cache"
	"meal-analyzer/internal/core/ai/provider"
	"meal-analyzer/internal/core/food"
	"meal-analyzer/internal/core/fusion"
	"meal-analyzer/internal/core/image"
	"meal-analyzer/internal/pkg/common"

	"go.uber.org/zap"
)

// CachedValidator 以照片雜湊與 anchor 名稱快取驗證結果
type CachedValidator struct {
	next  provider.Validator
	store cache.Store
}

// NewCachedValidator 包裝驗證器，store 為 nil 時直接轉呼叫
func NewCachedValidator(next provider.Validator, store cache.Store) *CachedValidator {
	return &CachedValidator{next: next, store: store}
}

// Name 協作者名稱
func (v *CachedValidator) Name() string {
	return v.next.Name()
}

// Validate 先查快取，未命中才呼叫驗證器並寫回
func (v *CachedValidator) Validate(ctx context.Context, img *image.Image, anchor []fusion.DetectionItem) ([]fusion.DetectionItem, error) {
	if v.store == nil || img == nil || img.Hash == "" || len(anchor) == 0 {
		return v.next.Validate(ctx, img, anchor)
	}

	key := cacheKey(img.Hash, anchor)
	if data, err := v.store.Get(ctx, key); err == nil {
		var items []fusion.DetectionItem
		if err := common.ParseJSONBytes(data, &items); err == nil {
			return items, nil
		}
		common.LogWarn("快取內容無法解析，重新驗證", zap.String("鍵", key))
	} else if !errors.Is(err, common.ErrCacheMiss) {
		common.LogWarn("讀取快取失敗", zap.Error(err))
	}

	items, err := v.next.Validate(ctx, img, anchor)
	if err != nil {
		return nil, err
	}

	data, err := common.ToJSON(items)
	if err != nil {
		return items, nil
	}
	if err := v.store.Set(ctx, key, []byte(data)); err != nil {
		common.LogWarn("寫入快取失敗", zap.Error(err))
	}
	return items, nil
}

func cacheKey(hash string, anchor []fusion.DetectionItem) string {
	names := make([]string, 0, len(anchor))
	for _, item := range anchor {
		names = append(names, food.Normalize(item.Name))
	}
	return cache.Key(hash, names)
}
