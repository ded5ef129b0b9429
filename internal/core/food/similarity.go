package food

import (
	"strings"

	"meal-analyzer/internal/pkg/common"

	"go.uber.org/zap"
)

// DefaultSimilarityThreshold 預設 Jaccard 門檻
// 刻意偏高，"fried rice" 與 "rice" 的相似度 0.5 不會被合併
const DefaultSimilarityThreshold = 0.8

// Matcher 以 token Jaccard 相似度判斷重複名稱
type Matcher struct {
	threshold float64
}

// NewMatcher 創建相似度比對器
func NewMatcher(threshold float64) (*Matcher, error) {
	if threshold < 0 || threshold > 1 {
		return nil, common.NewValidationError("similarity threshold must be within [0, 1]")
	}
	return &Matcher{threshold: threshold}, nil
}

// Threshold 目前門檻
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// IsDuplicate 判斷 candidate 是否與 existing 中任一鍵重複
// existing 依呼叫端給定的順序比對，第一個達門檻者即回報重複
func (m *Matcher) IsDuplicate(candidate string, existing []string) bool {
	for _, key := range existing {
		if key == candidate {
			return true
		}
	}

	candTokens := tokenSet(candidate)
	for _, key := range existing {
		sim, overlap := jaccard(candTokens, tokenSet(key))
		if overlap == 0 {
			continue
		}
		if sim >= m.threshold {
			common.LogDebug("Duplicate detected",
				zap.String("candidate", candidate),
				zap.String("existing", key),
				zap.Float64("similarity", sim),
			)
			return true
		}
	}
	return false
}

// Jaccard 計算兩個名稱的 token Jaccard 相似度
func Jaccard(a, b string) float64 {
	sim, _ := jaccard(tokenSet(a), tokenSet(b))
	return sim
}

func jaccard(a, b map[string]struct{}) (float64, int) {
	overlap := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			overlap++
		}
	}
	union := len(a) + len(b) - overlap
	if union == 0 {
		return 0, 0
	}
	return float64(overlap) / float64(union), overlap
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
