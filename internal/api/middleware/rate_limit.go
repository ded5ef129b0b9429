package middleware

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"meal-analyzer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimiter 令牌桶限流器
type RateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // 每秒補充的令牌數
	lastTime time.Time
}

// NewRateLimiter 創建限流器，window 內最多 requests 次
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:   float64(requests),
		capacity: float64(requests),
		rate:     float64(requests) / window.Seconds(),
		lastTime: time.Now(),
	}
}

// Allow 檢查是否允許請求
func (rl *RateLimiter) Allow() bool {
	return rl.allowAt(time.Now())
}

func (rl *RateLimiter) allowAt(now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	elapsed := now.Sub(rl.lastTime).Seconds()
	if elapsed > 0 {
		rl.tokens = math.Min(rl.capacity, rl.tokens+elapsed*rl.rate)
		rl.lastTime = now
	}

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// idleAt 閒置超過 window 的限流器已補滿令牌，可以丟棄
func (rl *RateLimiter) idleAt(now time.Time, window time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return now.Sub(rl.lastTime) > window
}

// ipLimiters 每個用戶端 IP 一個限流器，定期清除閒置者
type ipLimiters struct {
	requests int
	window   time.Duration

	mu       sync.Mutex
	limiters map[string]*RateLimiter
	lastGC   time.Time
}

func newIPLimiters(requests int, window time.Duration) *ipLimiters {
	return &ipLimiters{
		requests: requests,
		window:   window,
		limiters: make(map[string]*RateLimiter),
		lastGC:   time.Now(),
	}
}

func (l *ipLimiters) get(ip string, now time.Time) *RateLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > l.window {
		for k, rl := range l.limiters {
			if rl.idleAt(now, l.window) {
				delete(l.limiters, k)
			}
		}
		l.lastGC = now
	}

	rl, ok := l.limiters[ip]
	if !ok {
		rl = NewRateLimiter(l.requests, l.window)
		rl.lastTime = now
		l.limiters[ip] = rl
	}
	return rl
}

// RateLimit 依用戶端 IP 限流的中間件
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	limiters := newIPLimiters(requests, window)

	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP(), time.Now()).Allow() {
			common.LogInfo("Rate limit exceeded",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
			)

			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, common.ErrTooManyRequests.Response(false))
			return
		}

		c.Next()
	}
}
