// internal/api/middleware.go
package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// corsMiddleware 跨域支持
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestIDMiddleware 为每个请求分配ID，贯穿日志与响应
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// RateLimiter 简单的固定窗口限流器
type RateLimiter struct {
	visitors map[string]*visitorWindow
	mu       sync.Mutex
}

type visitorWindow struct {
	remaining int
	reset     time.Time
}

// NewRateLimiter 创建限流器并启动过期清理
func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitorWindow),
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, v := range rl.visitors {
			if now.After(v.reset) {
				delete(rl.visitors, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow 检查某个key是否还有剩余额度
func (rl *RateLimiter) Allow(key string, limit int, window time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, exists := rl.visitors[key]
	if !exists || now.After(v.reset) {
		rl.visitors[key] = &visitorWindow{
			remaining: limit - 1,
			reset:     now.Add(window),
		}
		return true
	}

	if v.remaining <= 0 {
		return false
	}
	v.remaining--
	return true
}

var rateLimiter = NewRateLimiter()

// rateLimitMiddleware 按客户端IP限流
func rateLimitMiddleware(limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !rateLimiter.Allow(key, limit, window) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			c.JSON(http.StatusTooManyRequests, &APIResponse{
				Success: false,
				Error: &APIError{
					Code:    "RATE_LIMIT_EXCEEDED",
					Message: "请求过于频繁，请稍后再试",
				},
				Timestamp: time.Now(),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GenerateRateLimit 生成接口专用限流：生成调用昂贵，按IP每小时20次
func GenerateRateLimit() gin.HandlerFunc {
	return rateLimitMiddleware(20, time.Hour)
}

// DefaultRateLimit 通用接口限流：按IP每分钟100次
func DefaultRateLimit() gin.HandlerFunc {
	return rateLimitMiddleware(100, time.Minute)
}
