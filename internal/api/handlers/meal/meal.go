// Package meal 餐點分析、評分與食物查詢 API
package meal

import (
	"io"
	"net/http"
	"strings"

	"meal-analyzer/internal/core/advice"
	"meal-analyzer/internal/core/analysis"
	"meal-analyzer/internal/core/fusion"
	"meal-analyzer/internal/core/image"
	"meal-analyzer/internal/core/nutrition"
	"meal-analyzer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AnalyzeRequest JSON 形式的分析請求
// image: base64、data URL 或圖片網址
type AnalyzeRequest struct {
	Image           string               `json:"image" binding:"required"`
	DescriptionHint string               `json:"description_hint,omitempty"`
	Health          advice.HealthProfile `json:"health"`
}

// ScoreRequest 直接以偵測結果評分
type ScoreRequest struct {
	Anchor    []fusion.RawDetection `json:"anchor"`
	Auxiliary []fusion.RawDetection `json:"auxiliary"`
	Health    advice.HealthProfile  `json:"health"`
}

// ScoreResponse 評分結果，Skipped 為格式錯誤而略過的偵測數
type ScoreResponse struct {
	*analysis.Result
	Skipped int `json:"skipped"`
}

// FoodResponse 單一食物查詢結果
type FoodResponse struct {
	nutrition.EnrichedFoodItem
	GICategory string `json:"gi_category,omitempty"`
}

// Handler 餐點 API 處理器
type Handler struct {
	svc    *analysis.Service
	images *image.Service
	debug  bool
}

// NewHandler 創建處理器；debug 時錯誤回應會附上細節
func NewHandler(svc *analysis.Service, images *image.Service, debug bool) *Handler {
	return &Handler{svc: svc, images: images, debug: debug}
}

// HandleAnalyze 處理 /meal/analyze，接受 multipart 上傳或 JSON
func (h *Handler) HandleAnalyze(c *gin.Context) {
	reqID := requestID(c)
	common.LogInfo("開始處理餐點分析請求",
		zap.String("request_id", reqID),
		zap.String("client_ip", c.ClientIP()),
		zap.String("content_type", c.ContentType()),
	)

	var (
		req analysis.Request
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req, err = h.bindMultipart(c)
	} else {
		req, err = h.bindJSON(c, reqID)
	}
	if err != nil {
		common.LogWarn("分析請求無效", zap.String("request_id", reqID), zap.Error(err))
		common.AbortWithError(c, err, h.debug)
		return
	}

	result, err := h.svc.Analyze(c.Request.Context(), req)
	if err != nil {
		common.LogError("餐點分析失敗", zap.String("request_id", reqID), zap.Error(err))
		common.AbortWithError(c, analysisError(err), h.debug)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) bindMultipart(c *gin.Context) (analysis.Request, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return analysis.Request{}, common.ErrNoImage.WithErr(err)
	}
	f, err := file.Open()
	if err != nil {
		return analysis.Request{}, common.ErrInvalidRequest.WithErr(err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return analysis.Request{}, common.ErrInvalidRequest.WithErr(err)
	}
	img, err := h.images.Decode(raw)
	if err != nil {
		return analysis.Request{}, err
	}

	var profile advice.HealthProfile
	if err := c.ShouldBind(&profile); err != nil {
		return analysis.Request{}, common.ErrInvalidRequest.WithErr(err)
	}
	return analysis.Request{
		Image:           img,
		DescriptionHint: c.PostForm("description_hint"),
		Health:          profile,
	}, nil
}

func (h *Handler) bindJSON(c *gin.Context, reqID string) (analysis.Request, error) {
	var body AnalyzeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return analysis.Request{}, common.ErrNoImage.WithErr(err)
	}

	img, err := h.images.DecodeString(c.Request.Context(), body.Image)
	if err != nil {
		common.LogDebug("圖片處理失敗",
			zap.String("request_id", reqID),
			zap.String("image_type", getImageType(body.Image)),
			zap.Int("image_length", len(body.Image)),
		)
		return analysis.Request{}, err
	}
	return analysis.Request{
		Image:           img,
		DescriptionHint: body.DescriptionHint,
		Health:          body.Health,
	}, nil
}

// HandleScore 處理 /meal/score，格式錯誤的偵測略過不計
func (h *Handler) HandleScore(c *gin.Context) {
	reqID := requestID(c)

	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("偵測結果格式無效", zap.String("request_id", reqID), zap.Error(err))
		common.AbortWithError(c, common.ErrInvalidDetections.WithErr(err), h.debug)
		return
	}

	anchor, skippedAnchor := toDetections(req.Anchor, fusion.SourceAnchor)
	auxiliary, skippedAux := toDetections(req.Auxiliary, fusion.SourceAuxiliary)
	skipped := skippedAnchor + skippedAux
	if skipped > 0 {
		common.LogWarn("略過格式錯誤的偵測",
			zap.String("request_id", reqID),
			zap.Int("skipped", skipped),
		)
	}

	result := h.svc.ScoreDetections(anchor, auxiliary, req.Health)
	c.JSON(http.StatusOK, ScoreResponse{Result: result, Skipped: skipped})
}

func toDetections(raw []fusion.RawDetection, source fusion.Source) ([]fusion.DetectionItem, int) {
	items := make([]fusion.DetectionItem, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		item, err := r.ToDetection(source)
		if err != nil {
			skipped++
			continue
		}
		items = append(items, item)
	}
	return items, skipped
}

// HandleFoodLookup 處理 /foods/:name
func (h *Handler) HandleFoodLookup(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		common.AbortWithError(c, common.ErrInvalidRequest, h.debug)
		return
	}

	item := h.svc.Enricher().Lookup(name)
	resp := FoodResponse{EnrichedFoodItem: item}
	if item.GlycemicIndex != nil {
		resp.GICategory = nutrition.GICategory(*item.GlycemicIndex)
	}
	c.JSON(http.StatusOK, resp)
}
