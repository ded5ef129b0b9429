package nutrition

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"meal-analyzer/internal/core/food"
	"meal-analyzer/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//go:embed data/*.json
var defaultData embed.FS

const (
	defaultNutritionFile = "data/nutrition_db.json"
	defaultGIFile        = "data/glycemic_index.json"
	defaultExtendedFile  = "data/foods_extended.json"
)

// Paths 三個查詢表的檔案路徑，空字串使用內建資料
type Paths struct {
	Nutrition     string
	GlycemicIndex string
	Extended      string
}

// Tables 唯讀的營養、升糖指數與擴充資料表，建立後不再修改
type Tables struct {
	nutrition map[string]Entry
	gi        map[string]int
	extended  map[string]ExtendedEntry

	// 部分比對時的固定順序：長鍵優先，同長度依字母
	nutritionKeys []string
	giKeys        []string
}

// NewTables 以已載入的資料建立查詢表，鍵一律正規化
func NewTables(nutrition map[string]Entry, gi map[string]int, extended []ExtendedEntry) *Tables {
	t := &Tables{
		nutrition: make(map[string]Entry, len(nutrition)),
		gi:        make(map[string]int, len(gi)),
		extended:  make(map[string]ExtendedEntry, len(extended)),
	}

	for name, entry := range nutrition {
		key := food.Normalize(name)
		if key == "" {
			continue
		}
		t.nutrition[key] = entry
	}

	for name, value := range gi {
		key := food.Normalize(name)
		if key == "" {
			continue
		}
		if value < 0 || value > 100 {
			common.LogWarn("略過超出範圍的升糖指數", zap.String("food", name), zap.Int("gi", value))
			continue
		}
		t.gi[key] = value
	}

	for _, entry := range extended {
		key := food.Normalize(entry.Name)
		if key == "" {
			continue
		}
		if entry.GlycemicIndex != nil && (*entry.GlycemicIndex < 0 || *entry.GlycemicIndex > 100) {
			common.LogWarn("略過超出範圍的升糖指數", zap.String("food", entry.Name), zap.Int("gi", *entry.GlycemicIndex))
			entry.GlycemicIndex = nil
		}
		if entry.GICategory == "" && entry.GlycemicIndex != nil {
			entry.GICategory = GICategory(*entry.GlycemicIndex)
		}
		t.extended[key] = entry
	}

	t.nutritionKeys = sortedKeys(t.nutrition)
	t.giKeys = sortedKeys(t.gi)
	return t
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Sizes 各表筆數
func (t *Tables) Sizes() (nutrition, gi, extended int) {
	return len(t.nutrition), len(t.gi), len(t.extended)
}

// lookupEntry 依精選表完全比對 → 部分比對 → 擴充資料集的順序查詢營養資料
func (t *Tables) lookupEntry(key string) (Entry, MatchTier, string) {
	if key == "" {
		return Entry{}, TierDefault, ""
	}
	if entry, ok := t.nutrition[key]; ok {
		return entry, TierExact, key
	}
	for _, k := range t.nutritionKeys {
		if strings.Contains(key, k) || strings.Contains(k, key) {
			return t.nutrition[k], TierPartial, k
		}
	}
	if ext, ok := t.extended[key]; ok {
		return Entry{
			Calories: ext.Calories,
			Carbs:    ext.Carbs,
			Protein:  ext.Protein,
			Fat:      ext.Fat,
			Fiber:    ext.Fiber,
			Flags:    ext.Flags,
		}, TierExtended, key
	}
	return Entry{}, TierDefault, ""
}

// lookupGI 升糖指數走同樣的查詢鏈，但與營養資料互相獨立
func (t *Tables) lookupGI(key string) (*int, MatchTier) {
	if key == "" {
		return nil, TierDefault
	}
	if gi, ok := t.gi[key]; ok {
		return &gi, TierExact
	}
	for _, k := range t.giKeys {
		if strings.Contains(key, k) || strings.Contains(k, key) {
			gi := t.gi[k]
			return &gi, TierPartial
		}
	}
	if ext, ok := t.extended[key]; ok && ext.GlycemicIndex != nil {
		gi := *ext.GlycemicIndex
		return &gi, TierExtended
	}
	return nil, TierDefault
}

// DefaultTables 載入內建資料
func DefaultTables() (*Tables, error) {
	return LoadTables(context.Background(), Paths{})
}

// LoadTables 並行讀取三個資料檔
// 檔案不存在時記錄警告並視為空表；格式錯誤則回傳錯誤
func LoadTables(ctx context.Context, paths Paths) (*Tables, error) {
	var (
		nutrition map[string]Entry
		gi        map[string]int
		extended  []ExtendedEntry
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return readTable(ctx, paths.Nutrition, defaultNutritionFile, &nutrition)
	})
	g.Go(func() error {
		return readTable(ctx, paths.GlycemicIndex, defaultGIFile, &gi)
	})
	g.Go(func() error {
		return readTable(ctx, paths.Extended, defaultExtendedFile, &extended)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t := NewTables(nutrition, gi, extended)
	n, gn, en := t.Sizes()
	common.LogInfo("營養資料表載入完成",
		zap.Int("nutrition", n),
		zap.Int("glycemic_index", gn),
		zap.Int("extended", en),
	)
	return t, nil
}

func readTable(ctx context.Context, path, embedded string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = defaultData.ReadFile(embedded)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			common.LogWarn("找不到資料檔，使用空表", zap.String("path", path))
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := common.ParseJSONBytes(data, v); err != nil {
		name := path
		if name == "" {
			name = embedded
		}
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}
