package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/collab-core/pkg/response"
)

// userLimiter 按用户的令牌桶，带最近访问时间用于回收
type userLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimit 按调用方身份限流（锁心跳是高频端点，防止失控客户端刷爆 redis）。
// 未认证请求退化为按客户端 IP
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*userLimiter)
		lastGC   = time.Now()
	)
	return func(c *gin.Context) {
		key := UserID(c)
		if key == "" {
			key = c.ClientIP()
		}

		mu.Lock()
		ul, ok := limiters[key]
		if !ok {
			ul = &userLimiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
			limiters[key] = ul
		}
		ul.seen = time.Now()
		// 顺带回收 10 分钟未活跃的桶
		if time.Since(lastGC) > 10*time.Minute {
			for k, v := range limiters {
				if time.Since(v.seen) > 10*time.Minute {
					delete(limiters, k)
				}
			}
			lastGC = time.Now()
		}
		mu.Unlock()

		if !ul.lim.Allow() {
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}
