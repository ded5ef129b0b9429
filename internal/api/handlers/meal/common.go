package meal

import (
	"context"
	"errors"
	"strings"

	"meal-analyzer/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
)

// getImageType 獲取圖片類型（用於日誌記錄）
func getImageType(image string) string {
	switch {
	case image == "":
		return "empty"
	case strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://"):
		return "url"
	case strings.HasPrefix(image, "data:image/"):
		parts := strings.SplitN(image, ";base64,", 2)
		if len(parts) == 2 {
			return "base64_data_uri_" + strings.TrimPrefix(parts[0], "data:image/")
		}
		return "invalid_data_uri"
	default:
		return "base64"
	}
}

// requestID 取得請求 ID，中間件未設定時自行產生
func requestID(c *gin.Context) string {
	if id := requestid.Get(c); id != "" {
		return id
	}
	id := common.GenerateUUID()
	c.Header("X-Request-ID", id)
	return id
}

// analysisError 將分析錯誤對應為 API 錯誤
func analysisError(err error) error {
	var ce *common.CustomError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, context.DeadlineExceeded):
		return common.ErrGatewayTimeout.WithErr(err)
	case errors.Is(err, context.Canceled):
		return common.ErrRequestTimeout.WithErr(err)
	default:
		return common.ErrAnalysisFailed.WithErr(err)
	}
}
