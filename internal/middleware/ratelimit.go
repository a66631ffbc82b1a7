package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"restroom-api/internal/metrics"
)

// 文档注释：令牌桶（每秒）
// 背景：入口侧在流量峰值时限速，出站侧约束对商业地点接口的 QPS，两处共用同一实现。
// 约束：按整秒补满，不做平滑；入口侧不排队，直接丢弃并返回 429；出站侧通过 Wait 阻塞到下一秒。
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	mu       sync.Mutex
	now      func() time.Time
}

// NewTokenBucket：qps<=0 时返回 nil，nil 桶放行一切
func NewTokenBucket(qps int) *TokenBucket {
	if qps <= 0 {
		return nil
	}
	return &TokenBucket{capacity: qps, tokens: qps, lastSec: time.Now().Unix(), now: time.Now}
}

// Allow：尝试取一个令牌
func (tb *TokenBucket) Allow() bool {
	if tb == nil {
		return true
	}
	ok, _ := tb.take()
	return ok
}

func (tb *TokenBucket) take() (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := tb.now()
	nowSec := now.Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true, 0
	}
	return false, time.Unix(nowSec+1, 0).Sub(now)
}

// Wait：阻塞到取得令牌或 ctx 结束
func (tb *TokenBucket) Wait(ctx context.Context) error {
	if tb == nil {
		return ctx.Err()
	}
	for {
		ok, d := tb.take()
		if ok {
			return nil
		}
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// RateLimit：入口限流中间件；qps<=0 时原样返回 next
func RateLimit(qps int) func(http.Handler) http.Handler {
	tb := NewTokenBucket(qps)
	return func(next http.Handler) http.Handler {
		if tb == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tb.Allow() {
				metrics.RateLimitedTotal.Inc()
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
