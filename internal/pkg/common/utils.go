package common

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// Round1 四捨五入到小數點後一位
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Clamp 將數值限制在 [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AbortWithError 以自定義錯誤結束 gin 請求
func AbortWithError(c *gin.Context, err error, debug bool) {
	var ce *CustomError
	if e, ok := err.(*CustomError); ok {
		ce = e
	} else {
		ce = ErrInternalError.WithErr(err)
	}
	status := ce.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, ce.Response(debug))
}
