// Package food 食物名稱正規化、同義詞對應與相似度比對
package food

import "strings"

// synonyms 變體拼寫 → 標準名稱（鍵為已小寫、底線轉空白後的形式）
var synonyms = map[string]string{
	// 甜點
	"strawberry shortcake": "strawberry cake",
	"cup cakes":            "cupcake",
	"cupcakes":             "cupcake",
	"cheese cake":          "cheesecake",
	"birthday cake":        "cake",

	// 飲品
	"milk shake": "milkshake",
	"smoothie":   "fruit smoothie",

	// 非洲料理
	"cow skin": "ponmo",

	// 蛋白質
	"roasted chicken": "roast chicken",

	// 配菜
	"scrambled egg": "scrambled eggs",
	"mashed potato": "mashed potatoes",
	"chips":         "french fries",
	"fries":         "french fries",
}

var beverageKeywords = []string{
	"shake", "milkshake", "smoothie", "juice", "drink",
	"soda", "tea", "coffee", "water", "milk",
}

var dessertKeywords = []string{
	"cake", "cupcake", "cookie", "brownie", "pie",
	"pudding", "ice cream", "frozen yogurt", "cheesecake",
	"shortcake", "pastry", "donut", "doughnut",
}

// Clean 去除前後空白、轉小寫並把底線換成空白，不做同義詞對應
func Clean(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Normalize 將偵測器原始標籤轉為比對用的 NormalizedKey
// 未知名稱回傳清理後的字串本身，永不失敗
func Normalize(raw string) string {
	cleaned := Clean(raw)
	if canonical, ok := synonyms[cleaned]; ok {
		return canonical
	}
	return cleaned
}

// IsBeverage 名稱是否像飲品
func IsBeverage(name string) bool {
	return containsAny(Normalize(name), beverageKeywords)
}

// IsDessert 名稱是否像甜點
func IsDessert(name string) bool {
	return containsAny(Normalize(name), dessertKeywords)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// HeuristicConfidence 啟發式推測項目的信心值
const HeuristicConfidence = 0.35

// HeuristicName 沒有任何結構化偵測時，依描述提示推測一個保守的品項
// 飲品優先於甜點，兩者皆非則回傳 false
func HeuristicName(hint string) (string, bool) {
	if strings.TrimSpace(hint) == "" {
		return "", false
	}
	if IsBeverage(hint) {
		return "milkshake", true
	}
	if IsDessert(hint) {
		return "cake", true
	}
	return "", false
}
