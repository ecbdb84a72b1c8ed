package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// client là limiter của một IP cùng lần cuối IP đó gọi tới.
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter cấp cho mỗi IP một token bucket: perMinute token/phút, tối đa burst.
type IPRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client

	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time
}

// NewIPRateLimiter quên các IP im lặng quá idle; goroutine dọn dẹp dừng khi ctx kết thúc.
func NewIPRateLimiter(ctx context.Context, perMinute, burst int, idle time.Duration) *IPRateLimiter {
	rl := &IPRateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
	go rl.sweepLoop(ctx)
	return rl
}

func (rl *IPRateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cl, ok := rl.clients[ip]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// Sweep xoá các IP không hoạt động và trả về số IP còn giữ.
func (rl *IPRateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > rl.idle {
			delete(rl.clients, ip)
		}
	}
	return len(rl.clients)
}

func (rl *IPRateLimiter) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}

// RateLimitByIP gắn limiter vào những route ghi tốn kém (tạo / nhân bản template).
func RateLimitByIP(rl *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Too Many Requests",
				"hint":    "Please retry in a few minutes.",
			})
			return
		}
		c.Next()
	}
}
