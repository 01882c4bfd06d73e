package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const rateWindow = time.Minute

// windowEntry tracks the request count of one client in the current window.
type windowEntry struct {
	count int
	start time.Time
}

// RateLimiter enforces a fixed one-minute window of maxRequests per client
// IP. Stale entries are swept until ctx is done.
func RateLimiter(ctx context.Context, maxRequests int) gin.HandlerFunc {
	var mu sync.Mutex
	clients := make(map[string]*windowEntry)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				mu.Lock()
				for ip, entry := range clients {
					if now.Sub(entry.start) > 2*rateWindow {
						delete(clients, ip)
					}
				}
				mu.Unlock()
			}
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		entry, exists := clients[ip]
		if !exists || now.Sub(entry.start) > rateWindow {
			clients[ip] = &windowEntry{count: 1, start: now}
			mu.Unlock()
			c.Next()
			return
		}
		if entry.count >= maxRequests {
			retryAfter := entry.start.Add(rateWindow).Sub(now)
			mu.Unlock()
			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Rate limit exceeded. Maximum %d requests per minute.", maxRequests),
			})
			return
		}
		entry.count++
		mu.Unlock()
		c.Next()
	}
}
